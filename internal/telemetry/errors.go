package telemetry

import "codeberg.org/mutker/nasfanctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrorCode("telemetry_invalid_config")

	// Transport Errors
	ErrUnavailable = errors.ErrTelemetryUnavailable
	ErrConnect     = errors.ErrorCode("telemetry_connect_failed")
	ErrSendFailed  = errors.ErrorCode("telemetry_send_failed")
	ErrSinkClosed  = errors.ErrorCode("telemetry_sink_closed")

	// Operation Errors
	ErrServiceShutdown = errors.ErrorCode("telemetry_service_shutdown_failed")
)
