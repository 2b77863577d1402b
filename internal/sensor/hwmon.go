package sensor

import (
	"context"
	"strings"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
)

type hwmonReader struct {
	key          string
	temperatures func(ctx context.Context) ([]host.TemperatureStat, error)
}

func newHwmonReader(key string) *hwmonReader {
	return &hwmonReader{
		key:          strings.ToLower(key),
		temperatures: host.SensorsTemperaturesWithContext,
	}
}

func (r *hwmonReader) read(ctx context.Context) (int, error) {
	errFactory := errors.New()

	temps, err := r.temperatures(ctx)
	// gopsutil returns partial results together with warnings
	if err != nil && len(temps) == 0 {
		return 0, errFactory.Wrap(ErrCommandFailed, err)
	}

	for _, t := range temps {
		if strings.ToLower(t.SensorKey) == r.key {
			return int(t.Temperature), nil
		}
	}

	return 0, errFactory.WithData(ErrNotFound, r.key)
}
