package infra

import (
	"context"
	"sync"

	"flowershop-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
	Failed  int64 `json:"failed"`
}

func (c *Counters) add(ev domain.StatsEvent) {
	switch {
	case ev.Failed:
		c.Failed++
	case ev.Allowed:
		c.Allowed++
	default:
		c.Denied++
	}
}

// MemoryStatsStore guarda contadores de admissão em memória.
// Útil para testes e desenvolvimento; o snapshot é servido em /-/ratelimit/stats.
//
// Não faz expiração e não é indicada para produção.
type MemoryStatsStore struct {
	mu         sync.Mutex
	total      Counters
	byEndpoint map[string]Counters
	byKey      map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byEndpoint: make(map[string]Counters),
		byKey:      make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Endpoint

	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)

	c := s.byEndpoint[route]
	c.add(ev)
	s.byEndpoint[route] = c

	if s.trackKeys && ev.Key != "" {
		k := s.byKey[string(ev.Key)]
		k.add(ev)
		s.byKey[string(ev.Key)] = k
	}
	return nil
}

// Snapshot é a forma serializável do store.
type Snapshot struct {
	Total      Counters            `json:"total"`
	ByEndpoint map[string]Counters `json:"by_endpoint"`
	ByKey      map[string]Counters `json:"by_key,omitempty"`
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Total:      s.total,
		ByEndpoint: make(map[string]Counters, len(s.byEndpoint)),
	}
	for k, v := range s.byEndpoint {
		out.ByEndpoint[k] = v
	}
	if s.trackKeys {
		out.ByKey = make(map[string]Counters, len(s.byKey))
		for k, v := range s.byKey {
			out.ByKey[k] = v
		}
	}
	return out
}
