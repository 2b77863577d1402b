package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Initialization errors
	ErrShutdownFailed ErrorCode = "shutdown_failed"
	ErrAlreadyRunning ErrorCode = "already_running"

	// Hardware errors
	ErrPrivilegeAcquisition ErrorCode = "privilege_acquisition_failed"
	ErrChipAccess           ErrorCode = "chip_access_failed"

	// Sensor errors
	ErrSensorUnavailable ErrorCode = "sensor_unavailable"

	// Telemetry errors
	ErrTelemetryUnavailable ErrorCode = "telemetry_unavailable"

	// Application errors
	ErrMainLoop    ErrorCode = "main_loop_failed"
	ErrActuateFans ErrorCode = "actuate_fans_failed"

	// Operation errors
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Metrics errors
	ErrInitMetrics    ErrorCode = "init_metrics_failed"
	ErrCollectMetrics ErrorCode = "collect_metrics_failed"
	ErrCloseMetrics   ErrorCode = "close_metrics_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:             "Internal error occurred",
	ErrInvalidArgument:      "Invalid argument provided",
	ErrUnavailable:          "Service unavailable",
	ErrInvalidConfig:        "Invalid configuration",
	ErrMissingConfig:        "Missing configuration",
	ErrBindFlags:            "Failed to bind flags",
	ErrReadConfig:           "Failed to read configuration",
	ErrInvalidInterval:      "Invalid interval value",
	ErrShutdownFailed:       "Shutdown failed",
	ErrAlreadyRunning:       "Another instance is already running",
	ErrPrivilegeAcquisition: "Failed to acquire privileged I/O access",
	ErrChipAccess:           "Failed to access fan controller chip",
	ErrSensorUnavailable:    "Sensor unavailable",
	ErrTelemetryUnavailable: "Telemetry unavailable",
	ErrMainLoop:             "Error in main loop",
	ErrActuateFans:          "Failed to write fan effort",
	ErrTimeout:              "Operation timed out",
	ErrInvalidOperation:     "Invalid operation",
	ErrInitMetrics:          "Failed to initialize metrics",
	ErrCollectMetrics:       "Failed to collect metrics data",
	ErrCloseMetrics:         "Failed to close metrics connection",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
