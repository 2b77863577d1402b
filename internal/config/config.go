package config

import (
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/control"
	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "NASFANCTL"
	defaultConfigName = "nasfanctl"
	defaultConfigType = "toml"
	defaultConfigDir  = "/etc"

	DefaultSetpoint         = 37
	DefaultPwmInit          = 128
	DefaultInterval         = 10
	DefaultOverheat         = 45
	DefaultPwmMin           = 80
	DefaultPwmMax           = 255
	DefaultKp               = 50.0
	DefaultKi               = 0.5
	DefaultIMax             = 255.0
	DefaultKd               = 0.0
	DefaultCPUAverage       = 10
	DefaultChipPort         = 0x2e
	DefaultCPUSensorKey     = "coretemp_package_id_0"
	DefaultSensorTimeout    = 30 * time.Second
	DefaultTelemetryTimeout = 2 * time.Second
	DefaultMetricsDB        = "/var/lib/nasfanctl/metrics.db"
	DefaultMetricsBatchSize = 6
	DefaultMetricsBatchTime = 60
	DefaultPIDFile          = "/run/nasfanctl.pid"

	maxRegisterValue = 255
)

type Config struct {
	Drives  []string `mapstructure:"drive_list"`
	Debug   bool     `mapstructure:"debug"`
	Verbose bool     `mapstructure:"verbose"`

	Setpoint   int     `mapstructure:"setpoint"`
	PwmInit    int     `mapstructure:"pwminit"`
	Interval   int     `mapstructure:"interval"`
	Overheat   int     `mapstructure:"overheat"`
	PwmMin     int     `mapstructure:"pwmmin"`
	PwmMax     int     `mapstructure:"pwmmax"`
	Kp         float64 `mapstructure:"kp"`
	Ki         float64 `mapstructure:"ki"`
	IMax       float64 `mapstructure:"imax"`
	Kd         float64 `mapstructure:"kd"`
	CPUAverage int     `mapstructure:"cpu_avg"`

	CPUSource     CPUSource     `mapstructure:"cpu_source"`
	CPUSensorKey  string        `mapstructure:"cpu_sensor_key"`
	SensorTimeout time.Duration `mapstructure:"sensor_timeout"`

	ChipPort int  `mapstructure:"chip_port"`
	DryRun   bool `mapstructure:"dry_run"`

	GraphiteServer   string        `mapstructure:"graphite_server"`
	TelemetryTimeout time.Duration `mapstructure:"telemetry_timeout"`
	PrometheusListen string        `mapstructure:"prometheus_listen"`

	MetricsEnabled      bool   `mapstructure:"metrics_enabled"`
	MetricsDB           string `mapstructure:"metrics_db"`
	MetricsBatchSize    int    `mapstructure:"metrics_batch_size"`
	MetricsBatchTimeout int    `mapstructure:"metrics_batch_timeout"`

	PIDFile string `mapstructure:"pid_file"`
}

// NewFlagSet returns the command line flags understood by Load. Flag names
// double as configuration file keys.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.String("config", "", "Path to configuration file (default /etc/nasfanctl.toml)")
	fs.StringSlice("drive_list", nil, "Comma-separated list of drive names, e.g. 'sda,sdc' (required)")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")
	fs.Int("setpoint", DefaultSetpoint, "Target maximum hard drive operating temperature in degrees Celsius")
	fs.Int("pwminit", DefaultPwmInit, "Initial PWM value to write")
	fs.Int("interval", DefaultInterval, "How often we poll for temperatures in seconds")
	fs.Int("overheat", DefaultOverheat, "Overheat temperature threshold in degrees Celsius")
	fs.Int("pwmmin", DefaultPwmMin, "Never drive the fans below this PWM value")
	fs.Int("pwmmax", DefaultPwmMax, "Never drive the fans above this PWM value")
	fs.Float64("kp", DefaultKp, "Proportional coefficient")
	fs.Float64("ki", DefaultKi, "Integral coefficient")
	fs.Float64("imax", DefaultIMax, "Maximum integral value")
	fs.Float64("kd", DefaultKd, "Derivative coefficient")
	fs.Int("cpu_avg", DefaultCPUAverage, "Number of CPU temperature measurements for rolling average")
	fs.String("cpu_source", string(CPUSourceSensors), "CPU temperature source: sensors or hwmon")
	fs.String("cpu_sensor_key", DefaultCPUSensorKey, "hwmon sensor key used when cpu_source=hwmon")
	fs.Duration("sensor_timeout", DefaultSensorTimeout, "Timeout for a single sensor command (0 disables)")
	fs.Int("chip_port", DefaultChipPort, "Super I/O configuration port")
	fs.Bool("dry_run", false, "Simulate the fan controller chip instead of writing I/O ports")
	fs.String("graphite_server", "", "Graphite server address in the format <ip:port>")
	fs.Duration("telemetry_timeout", DefaultTelemetryTimeout, "Timeout for connecting and writing to the Graphite server")
	fs.String("prometheus_listen", "", "Address to expose Prometheus metrics on, e.g. ':9101'")
	fs.Bool("metrics_enabled", false, "Record per-tick history to a SQLite database")
	fs.String("metrics_db", DefaultMetricsDB, "Path of the history database")
	fs.Int("metrics_batch_size", DefaultMetricsBatchSize, "Number of ticks buffered before writing history")
	fs.Int("metrics_batch_timeout", DefaultMetricsBatchTime, "Seconds between forced history flushes")
	fs.String("pid_file", DefaultPIDFile, "Path of the PID file")

	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("drive_list", []string{})
	v.SetDefault("setpoint", DefaultSetpoint)
	v.SetDefault("pwminit", DefaultPwmInit)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("overheat", DefaultOverheat)
	v.SetDefault("pwmmin", DefaultPwmMin)
	v.SetDefault("pwmmax", DefaultPwmMax)
	v.SetDefault("kp", DefaultKp)
	v.SetDefault("ki", DefaultKi)
	v.SetDefault("imax", DefaultIMax)
	v.SetDefault("kd", DefaultKd)
	v.SetDefault("cpu_avg", DefaultCPUAverage)
	v.SetDefault("cpu_source", string(CPUSourceSensors))
	v.SetDefault("cpu_sensor_key", DefaultCPUSensorKey)
	v.SetDefault("sensor_timeout", DefaultSensorTimeout)
	v.SetDefault("chip_port", DefaultChipPort)
	v.SetDefault("telemetry_timeout", DefaultTelemetryTimeout)
	v.SetDefault("metrics_db", DefaultMetricsDB)
	v.SetDefault("metrics_batch_size", DefaultMetricsBatchSize)
	v.SetDefault("metrics_batch_timeout", DefaultMetricsBatchTime)
	v.SetDefault("pid_file", DefaultPIDFile)
}

// Load merges defaults, the configuration file, NASFANCTL_* environment
// variables and flags (highest precedence) and validates the result.
// flags may be nil.
func Load(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	cfg, err := read(flags, opts...)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadChip reads configuration from the same sources as Load but only
// validates the chip settings. Commands that never run the control loop
// use it so that drive_list is not required.
func LoadChip(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	cfg, err := read(flags, opts...)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateChip(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func read(flags *pflag.FlagSet, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix:   DefaultEnvPrefix,
		searchPaths: []string{defaultConfigDir},
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	configPath := o.configPath
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Changed {
			configPath = f.Value.String()
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType(defaultConfigType)
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	cfg.Drives = normalizeDrives(cfg.Drives)

	return cfg, nil
}

// normalizeDrives flattens comma-separated entries and drops blanks.
func normalizeDrives(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, name := range strings.Split(entry, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				out = append(out, name)
			}
		}
	}

	return out
}

// Validate returns the first validation failure as a coded error.
func (c *Config) Validate() error {
	status := c.Status()
	if status.Valid {
		return nil
	}

	first := status.ValidationErrors[0]
	code := errors.ErrInvalidConfig
	if first.Field() == "drive_list" && len(c.Drives) == 0 {
		code = errors.ErrMissingConfig
	}

	return errors.New().Wrap(code, first)
}

// Status checks every field and reports all validation failures.
func (c *Config) Status() Status {
	var errs []ValidationError
	fail := func(field string, value interface{}, reason string) {
		errs = append(errs, &fieldError{field: field, value: value, reason: reason})
	}

	if len(c.Drives) == 0 {
		fail("drive_list", c.Drives, "at least one drive is required")
	}
	for _, d := range c.Drives {
		if strings.ContainsAny(d, "/ \t") {
			fail("drive_list", d, "drive names are relative to /dev and must not contain '/' or whitespace")
		}
	}
	if c.Interval < 1 {
		fail("interval", c.Interval, "must be at least 1 second")
	}
	if c.PwmMin < 0 || c.PwmMin > maxRegisterValue {
		fail("pwmmin", c.PwmMin, "must be within [0, 255]")
	}
	if c.PwmMax < c.PwmMin || c.PwmMax > maxRegisterValue {
		fail("pwmmax", c.PwmMax, "must be within [pwmmin, 255]")
	}
	if c.PwmInit < 0 || c.PwmInit > maxRegisterValue {
		fail("pwminit", c.PwmInit, "must be within [0, 255]")
	}
	for _, gain := range []struct {
		field string
		value float64
	}{
		{"kp", c.Kp}, {"ki", c.Ki}, {"imax", c.IMax}, {"kd", c.Kd},
	} {
		if math.IsNaN(gain.value) || math.IsInf(gain.value, 0) {
			fail(gain.field, gain.value, "must be a finite number")
		}
	}
	if c.IMax < 0 {
		fail("imax", c.IMax, "must not be negative")
	}
	if c.CPUAverage < 1 {
		fail("cpu_avg", c.CPUAverage, "must be at least 1")
	}
	if !c.CPUSource.IsValid() {
		fail("cpu_source", c.CPUSource, "must be 'sensors' or 'hwmon'")
	}
	if c.SensorTimeout < 0 {
		fail("sensor_timeout", c.SensorTimeout, "must not be negative")
	}
	if reason := chipPortReason(c.ChipPort); reason != "" {
		fail("chip_port", c.ChipPort, reason)
	}
	if c.GraphiteServer != "" {
		if err := validateHostPort(c.GraphiteServer); err != "" {
			fail("graphite_server", c.GraphiteServer, err)
		}
		if c.TelemetryTimeout <= 0 {
			fail("telemetry_timeout", c.TelemetryTimeout, "must be positive")
		}
	}
	if c.PrometheusListen != "" {
		if _, _, err := net.SplitHostPort(c.PrometheusListen); err != nil {
			fail("prometheus_listen", c.PrometheusListen, "expected [host]:port")
		}
	}
	if c.MetricsEnabled {
		if c.MetricsDB == "" {
			fail("metrics_db", c.MetricsDB, "required when metrics_enabled is set")
		}
		if c.MetricsBatchSize < 0 || c.MetricsBatchTimeout < 0 {
			fail("metrics_batch_size", c.MetricsBatchSize, "batching values must not be negative")
		}
	}

	return Status{Valid: len(errs) == 0, ValidationErrors: errs}
}

// ValidateChip checks only the settings needed to talk to the chip.
func (c *Config) ValidateChip() error {
	if reason := chipPortReason(c.ChipPort); reason != "" {
		return errors.New().Wrap(errors.ErrInvalidConfig,
			&fieldError{field: "chip_port", value: c.ChipPort, reason: reason})
	}

	return nil
}

// chipPortReason rejects ports whose data port (port+1) would not fit in
// the 16-bit I/O space.
func chipPortReason(port int) string {
	if port <= 0 || port > 0xfffe {
		return "must be a valid I/O port"
	}

	return ""
}

func validateHostPort(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return "expected <ip:port>"
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "port must be within [1, 65535]"
	}

	return ""
}

// ControlParams returns the immutable controller parameters.
func (c *Config) ControlParams() control.Params {
	return control.Params{
		Setpoint: c.Setpoint,
		Overheat: c.Overheat,
		PwmInit:  c.PwmInit,
		PwmMin:   c.PwmMin,
		PwmMax:   c.PwmMax,
		Kp:       c.Kp,
		Ki:       c.Ki,
		Kd:       c.Kd,
		IMax:     c.IMax,
	}
}

// IntervalDuration returns the polling interval.
func (c *Config) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
