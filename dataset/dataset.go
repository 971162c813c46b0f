package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Data holds one dataset's immutable inputs: per-student trial sequences
// and per-item expert skill labels.
type Data struct {
	NumStudents     int
	NumItems        int
	NumExpertSkills int

	// Recalls[s][i] is the outcome of student s's i-th trial; Items[s][i]
	// is the item attempted on that trial.
	Recalls [][]bool
	Items   [][]int

	// ExpertLabels[item] is the expert-provided skill id.
	ExpertLabels []int
}

// Load reads a trial file from disk.
func Load(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	d, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return d, nil
}

// Read parses trial rows (student, item, skill, correctness) from r.
// Blank lines are skipped.
func Read(r io.Reader) (*Data, error) {
	type row struct {
		student, item, skill int
		recall               bool
	}
	var rows []row

	d := &Data{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: got %d fields, want 4", lineNo, len(fields))
		}

		vals := make([]int, 4)
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("line %d: bad field %q", lineNo, f)
			}
			vals[i] = v
		}
		if vals[3] > 1 {
			return nil, fmt.Errorf("line %d: correctness %d, want 0 or 1", lineNo, vals[3])
		}

		rows = append(rows, row{vals[0], vals[1], vals[2], vals[3] == 1})
		d.NumStudents = max(d.NumStudents, vals[0]+1)
		d.NumItems = max(d.NumItems, vals[1]+1)
		d.NumExpertSkills = max(d.NumExpertSkills, vals[2]+1)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no trials")
	}

	d.Recalls = make([][]bool, d.NumStudents)
	d.Items = make([][]int, d.NumStudents)
	d.ExpertLabels = make([]int, d.NumItems)
	for i := range d.ExpertLabels {
		d.ExpertLabels[i] = -1
	}
	for _, r := range rows {
		d.Recalls[r.student] = append(d.Recalls[r.student], r.recall)
		d.Items[r.student] = append(d.Items[r.student], r.item)
		d.ExpertLabels[r.item] = r.skill
	}

	for item, label := range d.ExpertLabels {
		if label < 0 {
			return nil, fmt.Errorf("item %d never appears (ids must be contiguous)", item)
		}
	}
	return d, nil
}
