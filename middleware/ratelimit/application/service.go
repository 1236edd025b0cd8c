package application

import (
	"context"
	"fmt"
	"time"

	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

// Request é uma tentativa de admissão já resolvida (sem HTTP).
type Request struct {
	Identifier string
	Endpoint   string
	// Route e Method só alimentam as estatísticas.
	Route  string
	Method string
	Rule   domain.Rule
}

// Service concentra a regra de admissão do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Limiter domain.Limiter
	Stats   domain.StatsStore
	// FailOpen decide o que fazer quando o store falha: admitir (true) ou barrar.
	FailOpen bool
	Now      func() time.Time
}

// Admit consulta o limiter exatamente uma vez.
//
// Retornos:
//   - admitido: Decision{Allowed: true}, nil
//   - limitado: Decision{Allowed: false, RetryAfter}, domain.ErrRateLimited
//   - falha do store: Decision{Allowed: FailOpen}, erro do store embrulhado
func (s Service) Admit(ctx context.Context, req Request) (domain.Decision, error) {
	if s.Limiter == nil || len(req.Rule.Policy) == 0 {
		return domain.Decision{Allowed: true, Remaining: -1}, nil
	}

	ev := domain.StatsEvent{
		Key:        domain.RateKey(req.Endpoint, req.Identifier),
		Identifier: req.Identifier,
		Endpoint:   req.Endpoint,
		Route:      req.Route,
		Method:     req.Method,
		Strategy:   req.Rule.Strategy,
		At:         s.now(),
	}

	res, err := s.Limiter.Check(ctx, req.Identifier, req.Endpoint, req.Rule.Policy)
	if err != nil {
		ev.Failed = true
		ev.Allowed = s.FailOpen
		s.record(ctx, ev)
		return domain.Decision{Allowed: s.FailOpen, Remaining: -1}, fmt.Errorf("rate limit check %s: %w", ev.Key, err)
	}

	dec := domain.Decision{Allowed: !res.Limited, Remaining: res.Remaining()}
	ev.Allowed = dec.Allowed
	s.record(ctx, ev)

	if res.Limited {
		dec.RetryAfter = res.RetryAfter()
		return dec, domain.ErrRateLimited
	}
	return dec, nil
}

// record é best-effort: erro de estatística nunca muda a decisão.
func (s Service) record(ctx context.Context, ev domain.StatsEvent) {
	if s.Stats == nil {
		return
	}
	if err := s.Stats.Record(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", string(ev.Key)).Msg("ratelimit stats record failed")
	}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
