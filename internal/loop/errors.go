package loop

import "codeberg.org/mutker/nasfanctl/internal/errors"

const (
	ErrInvalidSettings = errors.ErrInvalidConfig
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrActuate         = errors.ErrActuateFans
	ErrNotRunnable     = errors.ErrInvalidOperation
)
