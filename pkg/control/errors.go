package control

import "errors"

var (
	// ErrSingularConfiguration is returned when the Jacobian pseudo-inverse
	// cannot be formed, typically at a kinematic singularity (fully stretched
	// or folded chain). Retrying at the same configuration cannot succeed.
	ErrSingularConfiguration = errors.New("singular configuration")

	// ErrInvalidConfig is returned for an unusable controller configuration.
	ErrInvalidConfig = errors.New("invalid controller config")
)
