package tnp

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by NewReducer for unusable thresholds.
	ErrInvalidConfig = errors.New("invalid reduction config")
	// ErrMalformedBatch marks input that misses required values. It aborts
	// the run; no event-level recovery is attempted.
	ErrMalformedBatch = errors.New("malformed event batch")
)

// StageError reports the stage and chunk a reduction stopped at.
type StageError struct {
	Stage string
	Chunk int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("chunk %d: stage %s: %v", e.Chunk, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
