package model

import "errors"

// Error taxonomy shared by every resolution stage. Call sites wrap these with
// context; callers test with errors.Is.
var (
	// ErrInvalidInput marks a record that cannot take part in resolution,
	// e.g. a missing or non-string name field.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration marks a caller-supplied option that can never
	// produce a meaningful run.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDegenerateInput marks fewer than two records reaching the clusterer.
	// It is a defined case, not a failure, and is only attached to log entries.
	ErrDegenerateInput = errors.New("degenerate input")
)
