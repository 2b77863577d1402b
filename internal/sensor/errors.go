package sensor

import "codeberg.org/mutker/nasfanctl/internal/errors"

const (
	ErrUnavailable   = errors.ErrSensorUnavailable
	ErrParseFailed   = errors.ErrorCode("sensor_parse_failed")
	ErrCommandFailed = errors.ErrorCode("sensor_command_failed")
	ErrNotFound      = errors.ErrorCode("sensor_not_found")
)
