package telemetry

import (
	"time"

	"codeberg.org/mutker/nasfanctl/internal/errors"
)

const (
	DefaultPrefix  = "fancontrol"
	defaultTimeout = 2 * time.Second
)

type Config struct {
	// GraphiteServer is host:port of a Graphite plaintext receiver. Empty
	// disables the Graphite sink.
	GraphiteServer string
	Prefix         string
	Timeout        time.Duration
	// Prometheus enables the gauge sink
	Prometheus bool
}

func DefaultConfig() Config {
	return Config{
		Prefix:  DefaultPrefix,
		Timeout: defaultTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Timeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, c.Timeout)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}
