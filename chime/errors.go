package chime

import "errors"

var (
	// ErrConfig indicates an inconsistent or out-of-range configuration.
	// Every validation failure wraps it; branch with errors.Is.
	ErrConfig = errors.New("chime: invalid configuration")

	// ErrComputation indicates a numeric fault during rendering, such as a
	// non-finite energy value produced by a misbehaving wind model.
	ErrComputation = errors.New("chime: computation error")
)
