package sensor

import (
	"context"
	"time"
)

// Source reads instantaneous temperatures in whole degrees Celsius.
type Source interface {
	DriveTemperature(ctx context.Context, name string) (int, error)
	CPUTemperature(ctx context.Context) (int, error)
}

// Runner executes an external command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CPU source kinds
const (
	CPUFromSensors = "sensors"
	CPUFromHwmon   = "hwmon"
)

type Config struct {
	// CPUSource is CPUFromSensors or CPUFromHwmon.
	CPUSource string
	// CPUSensorKey is the hwmon sensor key used with CPUFromHwmon.
	CPUSensorKey string
	// Timeout bounds each command; zero means no bound.
	Timeout time.Duration
	// DeviceDir is where drive names are resolved, normally /dev.
	DeviceDir string
}
