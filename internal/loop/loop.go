// Package loop runs the fan control cycle: read temperatures, aggregate,
// step the PID law, drive the fans, report.
package loop

import (
	"context"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/control"
	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
	"codeberg.org/mutker/nasfanctl/internal/metrics"
	"codeberg.org/mutker/nasfanctl/internal/sensor"
	"codeberg.org/mutker/nasfanctl/internal/telemetry"
	"codeberg.org/mutker/nasfanctl/internal/thermal"
)

// Telemetry metric names, without the sink prefix
const (
	MetricMaxTemp    = "maxtemp"
	MetricP          = "p"
	MetricI          = "i"
	MetricD          = "d"
	MetricPWM        = "pwm"
	MetricCPUAverage = "cpu_avg_temp"
)

type Settings struct {
	Drives    []string
	Interval  time.Duration
	CPUWindow int
	Params    control.Params
}

type Option func(*Loop)

func WithSink(sink telemetry.Sink) Option {
	return func(l *Loop) {
		if sink != nil {
			l.sink = sink
		}
	}
}

func WithHistory(history metrics.Collector) Option {
	return func(l *Loop) {
		if history != nil {
			l.history = history
		}
	}
}

func WithClock(clock Clock) Option {
	return func(l *Loop) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// DriveReading is one drive's temperature on a tick. Temp is 0 when Err
// is set.
type DriveReading struct {
	Name string
	Temp int
	Err  error
}

// TickResult describes one pass through the loop
type TickResult struct {
	Time    time.Time
	Drives  []DriveReading
	CPU     int
	CPUErr  error
	Reading thermal.Reading
	Elapsed time.Duration
	// Controlled is false when no time had passed since the previous tick;
	// the PID state and the fans were left alone.
	Controlled bool
	Output     control.Output
	Overheat   bool
}

// Loop is sequential; only State may be called from other goroutines.
type Loop struct {
	settings   Settings
	source     sensor.Source
	actuator   Actuator
	sink       telemetry.Sink
	history    metrics.Collector
	clock      Clock
	logger     logger.Logger
	aggregator *thermal.Aggregator
	controller *control.Controller
	last       time.Time
	state      stateValue
}

func New(settings Settings, source sensor.Source, actuator Actuator, log logger.Logger, opts ...Option) (*Loop, error) {
	errFactory := errors.New()

	if settings.Interval <= 0 {
		return nil, errFactory.WithData(ErrInvalidInterval, settings.Interval)
	}
	if source == nil || actuator == nil {
		return nil, errFactory.WithMessage(ErrInvalidSettings, "temperature source and actuator are required")
	}

	l := &Loop{
		settings:   settings,
		source:     source,
		actuator:   actuator,
		sink:       telemetry.Noop(),
		history:    noopHistory{},
		clock:      SystemClock(),
		logger:     log,
		aggregator: thermal.NewAggregator(settings.CPUWindow),
		controller: control.NewController(settings.Params),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.last = l.clock.Now()

	return l, nil
}

func (l *Loop) State() State {
	return l.state.Load()
}

func (l *Loop) Controller() *control.Controller {
	return l.controller
}

func (l *Loop) Aggregator() *thermal.Aggregator {
	return l.aggregator
}

// Run ticks until ctx is done or the fans can no longer be driven. It
// returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if l.State() != Initializing {
		return errors.New().WithData(ErrNotRunnable, l.State().String())
	}
	l.state.Store(Running)
	defer l.state.Store(Stopped)

	p := l.settings.Params
	l.logger.Info().
		Strs("drives", l.settings.Drives).
		Dur("interval", l.settings.Interval).
		Int("setpoint", p.Setpoint).
		Int("pwmmin", p.PwmMin).
		Int("pwmmax", p.PwmMax).
		Float64("kp", p.Kp).
		Float64("ki", p.Ki).
		Float64("kd", p.Kd).
		Float64("imax", p.IMax).
		Msg("Control loop started")

	for {
		if ctx.Err() != nil {
			break
		}

		if _, err := l.Tick(ctx); err != nil {
			return err
		}

		if err := l.clock.Sleep(ctx, l.settings.Interval); err != nil {
			break
		}
	}

	l.logger.Info().Msg("Control loop stopped")

	return nil
}

// Tick performs one cycle. The only error is a failure to drive the fans.
// A tick whose context is cancelled while reading leaves the fans alone.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	errFactory := errors.New()
	var res TickResult

	temps := make([]int, 0, len(l.settings.Drives))
	for _, name := range l.settings.Drives {
		temp, err := l.source.DriveTemperature(ctx, name)
		if err != nil {
			l.logger.Warn().
				Code(errors.CodeOf(err)).
				Err(err).
				Str("drive", name).
				Msg("Drive temperature unavailable, counting as 0")
			temp = 0
		}
		temps = append(temps, temp)
		res.Drives = append(res.Drives, DriveReading{Name: name, Temp: temp, Err: err})
	}

	cpu, err := l.source.CPUTemperature(ctx)
	if err != nil {
		l.logger.Warn().
			Code(errors.CodeOf(err)).
			Err(err).
			Msg("CPU temperature unavailable, keeping rolling average")
		res.CPUErr = err
		res.Reading = l.aggregator.AggregateDrives(temps)
	} else {
		res.CPU = cpu
		res.Reading = l.aggregator.Aggregate(temps, cpu)
	}

	// Reads cut short by shutdown must not reach the fans
	if ctx.Err() != nil {
		return res, nil
	}

	now := l.clock.Now()
	res.Time = now

	for _, d := range res.Drives {
		l.emit(ctx, d.Name, float64(d.Temp), now)
	}
	l.emit(ctx, MetricMaxTemp, float64(res.Reading.System), now)

	l.logger.Debug().
		Ints("drives", temps).
		Int("cpu", res.CPU).
		Int("cpu_avg", res.Reading.CPUAverage).
		Int("system_temp", res.Reading.System).
		Msg("Temperatures")

	res.Elapsed = now.Sub(l.last)
	if res.Elapsed <= 0 {
		l.logger.Debug().Dur("elapsed", res.Elapsed).Msg("No time elapsed since last tick, skipping control")
		return res, nil
	}
	l.last = now

	out, err := l.controller.Step(res.Reading.System, res.Elapsed.Seconds())
	if err != nil {
		// Elapsed is positive and finite here
		return res, errFactory.Wrap(errors.ErrInternal, err)
	}
	res.Controlled = true
	res.Output = out

	if err := l.actuator.SetEffort(out.Effort); err != nil {
		l.logger.ErrorWithContext(errFactory.Wrap(ErrActuate, err), "loop", "set_effort").
			Int("effort", out.Effort).
			Msg("Failed to drive fans")
		return res, errFactory.Wrap(ErrActuate, err)
	}

	l.emit(ctx, MetricP, out.P, now)
	l.emit(ctx, MetricI, out.I, now)
	l.emit(ctx, MetricD, out.D, now)
	l.emit(ctx, MetricPWM, float64(out.Effort), now)
	l.emit(ctx, MetricCPUAverage, float64(res.Reading.CPUAverage), now)

	if err := l.history.Record(ctx, &metrics.Snapshot{
		Timestamp:  now,
		SystemTemp: res.Reading.System,
		DriveMax:   res.Reading.DriveMax,
		CPUAverage: res.Reading.CPUAverage,
		Error:      out.Error,
		P:          out.P,
		I:          out.I,
		D:          out.D,
		Effort:     out.Effort,
		Elapsed:    res.Elapsed,
	}); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to record history")
	}

	if res.Reading.System >= l.settings.Params.Overheat {
		res.Overheat = true
		l.logger.Warn().
			Int("system_temp", res.Reading.System).
			Int("overheat", l.settings.Params.Overheat).
			Int("effort", out.Effort).
			Msg("System temperature at or above overheat threshold")
	}

	l.logger.Info().
		Int("system_temp", res.Reading.System).
		Float64("error", out.Error).
		Float64("p", out.P).
		Float64("i", out.I).
		Float64("d", out.D).
		Int("pwm", out.Effort).
		Msg("")

	return res, nil
}

func (l *Loop) emit(ctx context.Context, name string, value float64, at time.Time) {
	if err := l.sink.Send(ctx, telemetry.NewSample(name, value, at)); err != nil {
		l.logger.Debug().
			Code(telemetry.ErrUnavailable).
			Err(err).
			Str("metric", name).
			Msg("Telemetry send failed")
	}
}

type noopHistory struct{}

func (noopHistory) Record(context.Context, *metrics.Snapshot) error { return nil }
func (noopHistory) Close() error                                    { return nil }
