package telemetry

import (
	"context"
	"time"
)

// Sink receives named samples. Sends are best-effort; callers log and
// continue on error.
type Sink interface {
	Send(ctx context.Context, sample Sample) error
	Close() error
}

// Sample is one named value captured at a point in time
type Sample struct {
	Name  string
	Value float64
	Time  time.Time
}

func NewSample(name string, value float64, at time.Time) Sample {
	return Sample{Name: name, Value: value, Time: at}
}
