package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sky-flux/wcrp/dataset"
)

// writePredictions saves one whitespace-delimited row per predicted trial:
// replication, fold, student, trial, posterior-mean recall probability. With
// held-out students only their trials are written; a single-fold run has no
// held-out students, so every student's trials are written instead.
func writePredictions(path string, data *dataset.Data, results []chainResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range results {
		if err := predictResult(w, data, r); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func predictResult(w io.Writer, data *dataset.Data, r chainResult) error {
	students := r.test
	if len(students) == 0 {
		students = make([]int, data.NumStudents)
		for s := range students {
			students[s] = s
		}
	}
	for _, s := range students {
		for trial := range data.Items[s] {
			p, err := r.chain.EstimatedRecallProb(s, trial)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%d %d %d %d %.10f\n", r.replication, r.fold, s, trial, p); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeSkills saves every retained sample's item-to-skill assignment as one
// row: replication, fold, sample index, then one skill id per item. Skill ids
// are dense and private to each row.
func writeSkills(path string, results []chainResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range results {
		for sample, labels := range r.chain.SampledSkillLabels() {
			if _, err := fmt.Fprintf(w, "%d %d %d", r.replication, r.fold, sample); err != nil {
				return err
			}
			for _, label := range labels {
				if _, err := fmt.Fprintf(w, " %d", label); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}
