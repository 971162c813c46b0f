// Package dataset loads student practice data and cross-validation fold
// assignments for the wcrp sampler.
//
// The trial file is whitespace-delimited with one row per trial: student
// id, item id, expert skill id, correctness. All ids are 0-based and
// contiguous; rows are expected in trial order per student. The fold file
// has one row per replication, each row holding one fold index per student.
package dataset
