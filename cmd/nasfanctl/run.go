package main

import (
	"context"
	"net/http"
	"syscall"
	"time"

	"codeberg.org/mutker/nasfanctl/internal/chip"
	"codeberg.org/mutker/nasfanctl/internal/config"
	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
	"codeberg.org/mutker/nasfanctl/internal/loop"
	"codeberg.org/mutker/nasfanctl/internal/metrics"
	"codeberg.org/mutker/nasfanctl/internal/pidfile"
	"codeberg.org/mutker/nasfanctl/internal/sensor"
	"codeberg.org/mutker/nasfanctl/internal/telemetry"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func runDaemon(cmd *cobra.Command, _ []string) error {
	errFactory := errors.New()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	log := logger.Get()
	log.Debug().Msg("Config loaded")

	if err := pidfile.Write(cfg.PIDFile); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Remove(cfg.PIDFile); err != nil {
			log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	fans, err := openChip(cfg, log)
	if err != nil {
		logFatal(log, err, "open_chip")
		return err
	}
	defer fans.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tel, err := telemetry.NewService(ctx, telemetry.Config{
		GraphiteServer: cfg.GraphiteServer,
		Prefix:         telemetry.DefaultPrefix,
		Timeout:        cfg.TelemetryTimeout,
		Prometheus:     cfg.PrometheusListen != "",
	}, logger.With(log, "telemetry"))
	if err != nil {
		return err
	}
	defer tel.Close()

	history, err := metrics.NewService(metrics.Config{
		DBPath:       cfg.MetricsDB,
		Enabled:      cfg.MetricsEnabled,
		BatchSize:    cfg.MetricsBatchSize,
		BatchTimeout: cfg.MetricsBatchTimeout,
	}, logger.With(log, "history"))
	if err != nil {
		return err
	}
	defer history.Close()

	source := sensor.New(sensor.Config{
		CPUSource:    string(cfg.CPUSource),
		CPUSensorKey: cfg.CPUSensorKey,
		Timeout:      cfg.SensorTimeout,
	}, logger.With(log, "sensor"))

	controlLoop, err := loop.New(loop.Settings{
		Drives:    cfg.Drives,
		Interval:  cfg.IntervalDuration(),
		CPUWindow: cfg.CPUAverage,
		Params:    cfg.ControlParams(),
	}, source, fans, logger.With(log, "loop"),
		loop.WithSink(tel),
		loop.WithHistory(history))
	if err != nil {
		return err
	}

	var g run.Group
	{
		loopCtx, stop := context.WithCancel(ctx)
		g.Add(func() error {
			return controlLoop.Run(loopCtx)
		}, func(error) {
			stop()
		})
	}
	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}
	if tel.Prometheus != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", tel.Prometheus.Handler())
		server := &http.Server{
			Addr:              cfg.PrometheusListen,
			Handler:           mux,
			ReadHeaderTimeout: shutdownTimeout,
		}
		done := make(chan struct{})

		g.Add(func() error {
			log.Info().Str("listen", cfg.PrometheusListen).Msg("Serving Prometheus metrics")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// metrics are best-effort; keep controlling the fans
				log.Warn().
					Code(telemetry.ErrUnavailable).
					Err(err).
					Msg("Prometheus endpoint unavailable")
			}
			<-done
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Debug().Err(err).Msg("Prometheus server shutdown")
			}
			close(done)
		})
	}

	err = g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("Received termination signal")
		err = nil
	}
	if err != nil {
		logFatal(log, err, "main_loop")
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}

	log.Info().Int("effort", fans.Effort()).Msg("Exiting, fans left at last effort")

	return nil
}

func openPorts(configPort uint16, dryRun bool, log logger.Logger) (chip.Ports, error) {
	if dryRun {
		log.Warn().Msg("Dry run: using simulated Super I/O chip, fans are not driven")
		return chip.NewSimulatedIT87(configPort, simulatedChipID, simulatedECBase), nil
	}

	return chip.OpenDevPort()
}

// openChip takes port privileges and initializes the fan controller. The
// ports are released again if the chip cannot be opened.
func openChip(cfg *config.Config, log logger.Logger) (chip.Controller, error) {
	ports, err := openPorts(uint16(cfg.ChipPort), cfg.DryRun, log)
	if err != nil {
		return nil, err
	}

	fans, err := chip.Open(ports, chip.Config{
		ConfigPort:    uint16(cfg.ChipPort),
		InitialEffort: cfg.PwmInit,
	}, logger.With(log, "chip"))
	if err != nil {
		ports.Close()
		return nil, err
	}

	return fans, nil
}

func logFatal(log logger.Logger, err error, operation string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		log.ErrorWithContext(coded, "main", operation).Msg("")
		return
	}
	log.Error().Err(err).Str("operation", operation).Msg("")
}
