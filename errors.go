package wcrp

import "errors"

// Sentinel errors for the wcrp package.
// Use errors.Is to check: errors.Is(err, wcrp.ErrNoSamples)
var (
	ErrInvalidBeta     = errors.New("wcrp: mixing weight beta out of range [0, 1]")
	ErrNoTrainStudents = errors.New("wcrp: empty training student set")
	ErrNoItems         = errors.New("wcrp: no items")
	ErrBadIterations   = errors.New("wcrp: iteration count must exceed burn-in")
	ErrNoSamples       = errors.New("wcrp: no posterior samples recorded yet")
)
