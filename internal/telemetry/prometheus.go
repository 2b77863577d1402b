package telemetry

import (
	"context"
	"net/http"

	"codeberg.org/mutker/nasfanctl/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fancontrol"

// PrometheusSink keeps the latest value of every sample name in a gauge
// vector on its own registry.
type PrometheusSink struct {
	registry *prometheus.Registry
	samples  *prometheus.GaugeVec
}

func NewPrometheusSink() (*PrometheusSink, error) {
	errFactory := errors.New()

	registry := prometheus.NewRegistry()
	samples := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sample",
		Help:      "Latest value reported by the fan control loop",
	}, []string{"metric"})

	for _, c := range []prometheus.Collector{
		samples,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrInvalidConfig, err)
		}
	}

	return &PrometheusSink{registry: registry, samples: samples}, nil
}

func (s *PrometheusSink) Send(_ context.Context, sample Sample) error {
	s.samples.WithLabelValues(sample.Name).Set(sample.Value)
	return nil
}

func (*PrometheusSink) Close() error {
	return nil
}

// Handler serves the sink's registry in the Prometheus exposition format
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}
