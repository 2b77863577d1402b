package metrics

import (
	"context"
	"time"
)

// Collector records one snapshot per control tick
type Collector interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository defines the interface for history storage
type Repository interface {
	Record(snapshot *Snapshot) error
	Flush() error
	Recent(ctx context.Context, limit int) ([]Snapshot, error)
	Close() error
}

// Snapshot is the state of the control loop after one tick
type Snapshot struct {
	Timestamp  time.Time
	SystemTemp int
	DriveMax   int
	CPUAverage int
	Error      float64
	P          float64
	I          float64
	D          float64
	Effort     int
	Elapsed    time.Duration
}
