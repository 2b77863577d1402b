package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrSensorUnavailable)
	assert.Equal(t, "Sensor unavailable", err.Error())
	assert.Equal(t, errors.ErrSensorUnavailable, err.Code())

	err = errFactory.WithMessage(errors.ErrInvalidConfig, "drive_list is required")
	assert.Equal(t, "drive_list is required", err.Error())

	err = errFactory.WithData(errors.ErrChipAccess, "port 0x2e")
	assert.Equal(t, "Failed to access fan controller chip: port 0x2e", err.Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("exit status 2")
	err := errors.New().Wrap(errors.ErrSensorUnavailable, cause)

	assert.Equal(t, "Sensor unavailable: exit status 2", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestHasCode(t *testing.T) {
	inner := errors.New().New(errors.ErrTimeout)
	outer := errors.New().Wrap(errors.ErrSensorUnavailable, inner)
	wrapped := fmt.Errorf("drive sda: %w", outer)

	assert.True(t, errors.HasCode(wrapped, errors.ErrSensorUnavailable))
	assert.True(t, errors.HasCode(wrapped, errors.ErrTimeout))
	assert.False(t, errors.HasCode(wrapped, errors.ErrChipAccess))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))

	assert.Equal(t, errors.ErrSensorUnavailable, errors.CodeOf(wrapped))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(fmt.Errorf("plain")))
}

func TestUnknownCodeMessage(t *testing.T) {
	assert.Equal(t, "custom_code", errors.GetErrorMessage(errors.ErrorCode("custom_code")))
}
