package sensor

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	block   bool
	calls   []call
}

func (f *fakeRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	key := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if err, ok := f.errs[key]; ok {
		return nil, err
	}

	return []byte(f.outputs[key]), nil
}

func TestDriveTemperature(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"smartctl -A -d sat /dev/sda": smartctlOutput,
	}}
	src := NewWithRunner(Config{CPUSource: CPUFromSensors}, runner, logger.Nop())

	temp, err := src.DriveTemperature(context.Background(), "sda")

	require.NoError(t, err)
	assert.Equal(t, 36, temp)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "smartctl", runner.calls[0].name)
	assert.Equal(t, []string{"-A", "-d", "sat", "/dev/sda"}, runner.calls[0].args)
}

func TestDriveTemperature_CommandFails(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"smartctl -A -d sat /dev/sdb": fmt.Errorf("exec: \"smartctl\": executable file not found in $PATH"),
	}}
	src := NewWithRunner(Config{}, runner, logger.Nop())

	_, err := src.DriveTemperature(context.Background(), "sdb")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
	assert.True(t, errors.HasCode(err, ErrCommandFailed))
	assert.Contains(t, err.Error(), "sdb")
}

func TestDriveTemperature_Unparsable(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"smartctl -A -d sat /dev/sdc": "garbage\n",
	}}
	src := NewWithRunner(Config{}, runner, logger.Nop())

	_, err := src.DriveTemperature(context.Background(), "sdc")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
}

func TestDriveTemperature_Timeout(t *testing.T) {
	runner := &fakeRunner{block: true}
	src := NewWithRunner(Config{Timeout: 10 * time.Millisecond}, runner, logger.Nop())

	_, err := src.DriveTemperature(context.Background(), "sda")

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTimeout))
}

func TestCPUTemperature_Sensors(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"sensors": sensorsOutput}}
	src := NewWithRunner(Config{CPUSource: CPUFromSensors}, runner, logger.Nop())

	temp, err := src.CPUTemperature(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 45, temp)
}

func TestCPUTemperature_SensorsMissingPackage(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"sensors": "nct6775-isa-0290\n"}}
	src := NewWithRunner(Config{}, runner, logger.Nop())

	_, err := src.CPUTemperature(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrSensorUnavailable))
}

func TestCPUTemperature_Hwmon(t *testing.T) {
	src := NewWithRunner(Config{CPUSource: CPUFromHwmon, CPUSensorKey: "coretemp_package_id_0"}, &fakeRunner{}, logger.Nop()).(*source)
	src.hwmon.temperatures = func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{
			{SensorKey: "acpitz", Temperature: 27.8},
			{SensorKey: "coretemp_package_id_0", Temperature: 52.9},
			{SensorKey: "coretemp_core_0", Temperature: 50},
		}, fmt.Errorf("Number of warnings: 1")
	}

	temp, err := src.CPUTemperature(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 52, temp)
}

func TestCPUTemperature_HwmonMissingKey(t *testing.T) {
	src := NewWithRunner(Config{CPUSource: CPUFromHwmon, CPUSensorKey: "k10temp_tctl"}, &fakeRunner{}, logger.Nop()).(*source)
	src.hwmon.temperatures = func(context.Context) ([]host.TemperatureStat, error) {
		return []host.TemperatureStat{{SensorKey: "coretemp_package_id_0", Temperature: 52.9}}, nil
	}

	_, err := src.CPUTemperature(context.Background())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrNotFound))
}
