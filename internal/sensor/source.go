package sensor

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
)

const (
	smartctlBin = "smartctl"
	sensorsBin  = "sensors"
	defaultDev  = "/dev"
)

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ExecRunner runs commands with os/exec.
func ExecRunner() Runner {
	return execRunner{}
}

type source struct {
	cfg    Config
	runner Runner
	hwmon  *hwmonReader
	log    logger.Logger
}

// New returns the production Source: smartctl for drives and either
// lm-sensors or hwmon for the CPU.
func New(cfg Config, log logger.Logger) Source {
	return NewWithRunner(cfg, ExecRunner(), log)
}

func NewWithRunner(cfg Config, runner Runner, log logger.Logger) Source {
	if cfg.DeviceDir == "" {
		cfg.DeviceDir = defaultDev
	}

	s := &source{cfg: cfg, runner: runner, log: log}
	if cfg.CPUSource == CPUFromHwmon {
		s.hwmon = newHwmonReader(cfg.CPUSensorKey)
	}

	return s
}

func (s *source) DriveTemperature(ctx context.Context, name string) (int, error) {
	device := filepath.Join(s.cfg.DeviceDir, name)

	out, err := s.run(ctx, smartctlBin, "-A", "-d", "sat", device)
	if err != nil {
		return 0, errors.New().Wrap(ErrUnavailable, fmt.Errorf("drive %s: %w", name, err))
	}

	temp, err := parseSmartctl(out)
	if err != nil {
		return 0, errors.New().Wrap(ErrUnavailable, fmt.Errorf("drive %s: %w", name, err))
	}

	return temp, nil
}

func (s *source) CPUTemperature(ctx context.Context) (int, error) {
	if s.hwmon != nil {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()

		temp, err := s.hwmon.read(ctx)
		if err != nil {
			return 0, errors.New().Wrap(ErrUnavailable, err)
		}
		return temp, nil
	}

	out, err := s.run(ctx, sensorsBin)
	if err != nil {
		return 0, errors.New().Wrap(ErrUnavailable, err)
	}

	temp, err := parseSensors(out)
	if err != nil {
		return 0, errors.New().Wrap(ErrUnavailable, err)
	}

	return temp, nil
}

func (s *source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Timeout)
	}

	return context.WithCancel(ctx)
}

func (s *source) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	errFactory := errors.New()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.runner.Output(ctx, name, args...)
	if ctx.Err() == context.DeadlineExceeded {
		s.log.Warn().Str("command", name).Dur("timeout", s.cfg.Timeout).Msg("Sensor command timed out")
		return nil, errFactory.Wrap(errors.ErrTimeout, ctx.Err())
	}
	if err != nil {
		// smartctl sets bits in its exit status for SMART warnings while
		// still printing the attribute table.
		if exitErr, ok := err.(*exec.ExitError); ok && name == smartctlBin && len(out) > 0 {
			s.log.Debug().Int("exit_code", exitErr.ExitCode()).Msg("smartctl reported warnings")
			return out, nil
		}
		return nil, errFactory.Wrap(ErrCommandFailed, err)
	}

	return out, nil
}
