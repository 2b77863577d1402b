package config_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/config"
	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nasfanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
drive_list = ["sda", "sdc"]
setpoint = 40
pwminit = 100
interval = 5
overheat = 50
pwmmin = 60
kp = 30.0
ki = 0.25
imax = 200.0
kd = 1.5
cpu_avg = 6
graphite_server = "10.0.0.5:2003"
sensor_timeout = "5s"
chip_port = 0x4e
`)

	cfg, err := config.Load(nil, config.WithConfigFile(configPath))
	require.NoError(t, err)

	assert.Equal(t, []string{"sda", "sdc"}, cfg.Drives)
	assert.Equal(t, 40, cfg.Setpoint, "Expected Setpoint 40")
	assert.Equal(t, 100, cfg.PwmInit, "Expected PwmInit 100")
	assert.Equal(t, 5, cfg.Interval, "Expected Interval 5")
	assert.Equal(t, 50, cfg.Overheat, "Expected Overheat 50")
	assert.Equal(t, 60, cfg.PwmMin, "Expected PwmMin 60")
	assert.Equal(t, 255, cfg.PwmMax, "Expected default PwmMax 255")
	assert.InDelta(t, 30.0, cfg.Kp, 1e-9)
	assert.InDelta(t, 0.25, cfg.Ki, 1e-9)
	assert.InDelta(t, 200.0, cfg.IMax, 1e-9)
	assert.InDelta(t, 1.5, cfg.Kd, 1e-9)
	assert.Equal(t, 6, cfg.CPUAverage)
	assert.Equal(t, "10.0.0.5:2003", cfg.GraphiteServer)
	assert.Equal(t, 5*time.Second, cfg.SensorTimeout)
	assert.Equal(t, 0x4e, cfg.ChipPort)
	assert.Equal(t, 5*time.Second, cfg.IntervalDuration())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NASFANCTL_CONFIG", "")
	t.Setenv("NASFANCTL_DRIVE_LIST", "sda,sdb")

	cfg, err := config.Load(nil, config.WithSearchPaths(t.TempDir()))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, []string{"sda", "sdb"}, cfg.Drives)
	assert.Equal(t, 37, cfg.Setpoint, "Expected default Setpoint 37")
	assert.Equal(t, 128, cfg.PwmInit, "Expected default PwmInit 128")
	assert.Equal(t, 10, cfg.Interval, "Expected default Interval 10")
	assert.Equal(t, 45, cfg.Overheat, "Expected default Overheat 45")
	assert.Equal(t, 80, cfg.PwmMin, "Expected default PwmMin 80")
	assert.Equal(t, 255, cfg.PwmMax, "Expected default PwmMax 255")
	assert.InDelta(t, 50.0, cfg.Kp, 1e-9)
	assert.InDelta(t, 0.5, cfg.Ki, 1e-9)
	assert.InDelta(t, 255.0, cfg.IMax, 1e-9)
	assert.InDelta(t, 0.0, cfg.Kd, 1e-9)
	assert.Equal(t, 10, cfg.CPUAverage)
	assert.Equal(t, config.CPUSourceSensors, cfg.CPUSource)
	assert.Equal(t, config.DefaultSensorTimeout, cfg.SensorTimeout)
	assert.Equal(t, 0x2e, cfg.ChipPort)
	assert.Empty(t, cfg.GraphiteServer)
	assert.False(t, cfg.MetricsEnabled)
	assert.False(t, cfg.DryRun)
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := writeConfig(t, `
drive_list = "sda"
setpoint = 40
`)

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{
		"--config", configPath,
		"--drive_list=sdb,sdd",
		"--setpoint=35",
		"--kd=2.5",
		"--chip_port=0x4e",
	}))

	cfg, err := config.Load(fs)
	require.NoError(t, err)

	assert.Equal(t, []string{"sdb", "sdd"}, cfg.Drives)
	assert.Equal(t, 35, cfg.Setpoint)
	assert.InDelta(t, 2.5, cfg.Kd, 1e-9)
	assert.Equal(t, 0x4e, cfg.ChipPort)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.Load(nil, config.WithConfigFile(configPath))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(nil, config.WithConfigFile(filepath.Join(t.TempDir(), "absent.toml")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestMissingDriveList(t *testing.T) {
	t.Setenv("NASFANCTL_CONFIG", "")

	_, err := config.Load(nil, config.WithSearchPaths(t.TempDir()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMissingConfig))
	assert.Contains(t, err.Error(), "drive_list")
}

func TestUnknownFlag(t *testing.T) {
	fs := config.NewFlagSet("test")
	err := fs.Parse([]string{"--drive_list=sda", "--fanspeed=10"})
	require.Error(t, err)
}

func TestLoadRejectsNonFiniteGains(t *testing.T) {
	t.Setenv("NASFANCTL_CONFIG", "")

	for _, arg := range []string{"--kp=NaN", "--ki=+Inf", "--imax=NaN", "--kd=-Inf"} {
		t.Run(arg, func(t *testing.T) {
			fs := config.NewFlagSet("test")
			require.NoError(t, fs.Parse([]string{"--drive_list=sda", arg}))

			_, err := config.Load(fs, config.WithSearchPaths(t.TempDir()))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Drives:           []string{"sda"},
			Interval:         10,
			PwmMin:           80,
			PwmMax:           255,
			PwmInit:          128,
			IMax:             255,
			CPUAverage:       10,
			CPUSource:        config.CPUSourceSensors,
			ChipPort:         0x2e,
			TelemetryTimeout: time.Second,
		}
	}

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		field  string
	}{
		{"drive with slash", func(c *config.Config) { c.Drives = []string{"../sda"} }, "drive_list"},
		{"zero interval", func(c *config.Config) { c.Interval = 0 }, "interval"},
		{"pwmmin above max register", func(c *config.Config) { c.PwmMin = 300 }, "pwmmin"},
		{"pwmmax below pwmmin", func(c *config.Config) { c.PwmMax = 50 }, "pwmmax"},
		{"negative pwminit", func(c *config.Config) { c.PwmInit = -1 }, "pwminit"},
		{"negative imax", func(c *config.Config) { c.IMax = -1 }, "imax"},
		{"NaN kp", func(c *config.Config) { c.Kp = math.NaN() }, "kp"},
		{"infinite ki", func(c *config.Config) { c.Ki = math.Inf(1) }, "ki"},
		{"NaN imax", func(c *config.Config) { c.IMax = math.NaN() }, "imax"},
		{"negative infinite kd", func(c *config.Config) { c.Kd = math.Inf(-1) }, "kd"},
		{"empty cpu window", func(c *config.Config) { c.CPUAverage = 0 }, "cpu_avg"},
		{"unknown cpu source", func(c *config.Config) { c.CPUSource = "ipmi" }, "cpu_source"},
		{"graphite without port", func(c *config.Config) { c.GraphiteServer = "10.0.0.1" }, "graphite_server"},
		{"graphite bad port", func(c *config.Config) { c.GraphiteServer = "10.0.0.1:99999" }, "graphite_server"},
		{"prometheus listen", func(c *config.Config) { c.PrometheusListen = "9101" }, "prometheus_listen"},
		{"metrics without db", func(c *config.Config) { c.MetricsEnabled = true }, "metrics_db"},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))

			status := cfg.Status()
			assert.False(t, status.Valid)
			require.NotEmpty(t, status.ValidationErrors)
			assert.Equal(t, tt.field, status.ValidationErrors[0].Field())
		})
	}
}

func TestControlParams(t *testing.T) {
	cfg := &config.Config{
		Setpoint: 37, Overheat: 45, PwmInit: 128, PwmMin: 80, PwmMax: 255,
		Kp: 50, Ki: 0.5, Kd: 0, IMax: 255,
	}

	p := cfg.ControlParams()
	assert.Equal(t, 37, p.Setpoint)
	assert.Equal(t, 45, p.Overheat)
	assert.Equal(t, 128, p.PwmInit)
	assert.Equal(t, 80, p.PwmMin)
	assert.Equal(t, 255, p.PwmMax)
	assert.InDelta(t, 50.0, p.Kp, 1e-9)
	assert.InDelta(t, 0.5, p.Ki, 1e-9)
	assert.InDelta(t, 255.0, p.IMax, 1e-9)
}

func TestLoadChip(t *testing.T) {
	configPath := writeConfig(t, `
chip_port = 78
dry_run = true
`)

	fs := config.NewFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config", configPath}))

	cfg, err := config.LoadChip(fs)
	require.NoError(t, err)

	assert.Empty(t, cfg.Drives)
	assert.Equal(t, 0x4e, cfg.ChipPort)
	assert.True(t, cfg.DryRun)

	_, err = config.Load(fs)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMissingConfig))
}

func TestLoadChipRejectsPort(t *testing.T) {
	t.Setenv("NASFANCTL_CONFIG", "")

	for _, port := range []string{"-1", "0", "65535", "65582"} {
		t.Run(port, func(t *testing.T) {
			fs := config.NewFlagSet("test")
			require.NoError(t, fs.Parse([]string{"--chip_port=" + port}))

			_, err := config.LoadChip(fs, config.WithSearchPaths(t.TempDir()))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}
