package robot

import "errors"

var (
	// ErrOutOfBounds is returned for a joint or truncation index outside [0, n].
	ErrOutOfBounds = errors.New("joint index out of bounds")

	// ErrInvalidChain is returned when link lengths or home angles are malformed.
	ErrInvalidChain = errors.New("invalid kinematic chain")

	// ErrDimensionMismatch is returned when a joint vector does not have n entries.
	ErrDimensionMismatch = errors.New("joint vector dimension mismatch")

	// ErrInvalidState is returned for a joint vector holding NaN or ±Inf.
	ErrInvalidState = errors.New("non-finite joint angle")
)
