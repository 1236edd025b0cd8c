package infra

import (
	"context"

	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStatsStore expõe as decisões como contador Prometheus.
// Identifier nunca vira label (cardinalidade).
type PrometheusStatsStore struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusStatsStore(reg prometheus.Registerer, appName string) (*PrometheusStatsStore, error) {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "ratelimit_decisions_total",
		Help:        "Rate limiter admission decisions",
		ConstLabels: prometheus.Labels{"app_name": appName},
	}, []string{"method", "route", "strategy", "outcome"})

	if err := reg.Register(decisions); err != nil {
		return nil, err
	}
	return &PrometheusStatsStore{decisions: decisions}, nil
}

func (s *PrometheusStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Route
	if route == "" {
		route = ev.Endpoint
	}
	s.decisions.WithLabelValues(ev.Method, route, string(ev.Strategy), statsField(ev)).Inc()
	return nil
}

// MultiStatsStore repassa o evento para vários stores e devolve o primeiro erro.
type MultiStatsStore []domain.StatsStore

func (m MultiStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
