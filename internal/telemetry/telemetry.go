package telemetry

import (
	"context"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"codeberg.org/mutker/nasfanctl/internal/logger"
)

type noopSink struct{}

// Noop returns a sink that discards every sample.
func Noop() Sink {
	return noopSink{}
}

func (noopSink) Send(context.Context, Sample) error { return nil }
func (noopSink) Close() error                       { return nil }

type multiSink []Sink

// Multi fans samples out to every sink. Each send is independent; the
// first error is returned after all sinks have been tried.
func Multi(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s == nil {
			continue
		}
		if _, ok := s.(noopSink); ok {
			continue
		}
		out = append(out, s)
	}

	switch len(out) {
	case 0:
		return Noop()
	case 1:
		return out[0]
	}
	return out
}

func (m multiSink) Send(ctx context.Context, sample Sample) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, sample); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m multiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Service is the set of sinks enabled by configuration
type Service struct {
	Sink       Sink
	Prometheus *PrometheusSink
}

// NewService builds the configured sinks. A Graphite server that cannot be
// reached disables Graphite for the lifetime of the process; this is logged
// and is not an error.
func NewService(ctx context.Context, cfg Config, log logger.Logger) (*Service, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	var sinks []Sink
	svc := &Service{}

	if cfg.GraphiteServer != "" {
		graphite, err := DialGraphite(ctx, cfg)
		if err != nil {
			log.Warn().
				Code(ErrUnavailable).
				Err(err).
				Str("server", cfg.GraphiteServer).
				Msg("Graphite server unreachable, telemetry disabled")
		} else {
			log.Info().Str("server", cfg.GraphiteServer).Msg("Streaming telemetry to Graphite")
			sinks = append(sinks, graphite)
		}
	}

	if cfg.Prometheus {
		prom, err := NewPrometheusSink()
		if err != nil {
			return nil, errFactory.Wrap(ErrInvalidConfig, err)
		}
		svc.Prometheus = prom
		sinks = append(sinks, prom)
	}

	svc.Sink = Multi(sinks...)

	return svc, nil
}

func (s *Service) Send(ctx context.Context, sample Sample) error {
	return s.Sink.Send(ctx, sample)
}

func (s *Service) Close() error {
	return s.Sink.Close()
}
