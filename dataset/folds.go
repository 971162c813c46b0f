package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Folds holds the replication-by-student fold assignments for
// cross-validation.
type Folds struct {
	// Assignment[replication][student] is the fold index of the student.
	Assignment [][]int
	NumFolds   int
}

// LoadFolds reads a fold file from disk, validating each row against the
// dataset's student count.
func LoadFolds(path string, numStudents int) (*Folds, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()
	folds, err := ReadFolds(f, numStudents)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}
	return folds, nil
}

// ReadFolds parses whitespace-delimited fold rows from r. Every row must
// hold exactly numStudents fold indices.
func ReadFolds(r io.Reader, numStudents int) (*Folds, error) {
	folds := &Folds{}
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
		if len(fields) != numStudents {
			return nil, fmt.Errorf("line %d: got %d fold indices, want %d", lineNo, len(fields), numStudents)
		}

		row := make([]int, numStudents)
		for s, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("line %d: bad fold index %q", lineNo, f)
			}
			row[s] = v
			folds.NumFolds = max(folds.NumFolds, v+1)
		}
		folds.Assignment = append(folds.Assignment, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(folds.Assignment) == 0 {
		return nil, fmt.Errorf("no fold rows")
	}
	return folds, nil
}

// Split partitions students into training and test sets for one
// replication and test fold. With a single fold everyone trains and the
// test set is empty.
func (f *Folds) Split(replication, testFold int) (train, test []int) {
	for s, fold := range f.Assignment[replication] {
		if fold == testFold && f.NumFolds > 1 {
			test = append(test, s)
		} else {
			train = append(train, s)
		}
	}
	return train, test
}
