package chip

import "codeberg.org/mutker/nasfanctl/internal/errors"

const (
	// Lifecycle Errors
	ErrPrivilege     = errors.ErrPrivilegeAcquisition
	ErrPortsClosed   = errors.ErrorCode("chip_ports_closed")
	ErrUnsupported   = errors.ErrorCode("chip_port_io_unsupported")
	ErrInvalidEffort = errors.ErrorCode("chip_invalid_effort")

	// Register Access Errors
	ErrRegisterWrite = errors.ErrorCode("chip_register_write_failed")
	ErrRegisterRead  = errors.ErrorCode("chip_register_read_failed")
)
