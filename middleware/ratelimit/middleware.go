package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"flowershop-gateway/middleware/ratelimit/application"
	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Options struct {
	Limiter  domain.Limiter
	Rule     domain.Rule
	Resolver Resolver
	Stats    domain.StatsStore

	// FailOpen admite o request quando o store falha; senão responde 503.
	FailOpen bool

	// AddRateLimitHeaders adiciona X-RateLimit-Policy e X-RateLimit-Remaining.
	AddRateLimitHeaders bool

	// Route é o padrão da rota usado nas estatísticas. Vazio usa o padrão do chi
	// e, fora do chi, o próprio path.
	Route string
}

// NewRule valida estratégia e política na hora de registrar a rota.
func NewRule(strategy, policy string) (domain.Rule, error) {
	s, err := domain.ParseStrategy(strategy)
	if err != nil {
		return domain.Rule{}, err
	}
	p, err := domain.ParsePolicy(policy)
	if err != nil {
		return domain.Rule{}, err
	}
	return domain.Rule{Strategy: s, Policy: p}, nil
}

// Middleware aplica a regra de uma rota: resolve identificador e endpoint,
// consulta o limiter uma única vez e traduz a decisão para HTTP.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	svc := application.Service{
		Limiter:  opts.Limiter,
		Stats:    opts.Stats,
		FailOpen: opts.FailOpen,
	}
	policy := opts.Rule.Policy.String()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := zerolog.Ctx(r.Context())

			identifier, err := opts.Resolver.Identify(r, opts.Rule.Strategy)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					writeDetail(w, http.StatusUnauthorized, DetailUnauthenticated)
					return
				}
				log.Error().Err(err).Str("path", r.URL.Path).Msg("ratelimit misconfigured route")
				writeDetail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}

			endpoint := Endpoint(r)
			dec, err := svc.Admit(r.Context(), application.Request{
				Identifier: identifier,
				Endpoint:   endpoint,
				Route:      routePattern(r, opts.Route),
				Method:     r.Method,
				Rule:       opts.Rule,
			})

			if opts.AddRateLimitHeaders && policy != "" {
				w.Header().Set("X-RateLimit-Policy", policy)
				if dec.Remaining >= 0 {
					w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
				}
			}

			switch {
			case err == nil:
			case errors.Is(err, domain.ErrRateLimited):
				log.Debug().
					Str("endpoint", endpoint).
					Str("identifier", identifier).
					Str("policy", policy).
					Msg("rate limited")
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				writeDetail(w, http.StatusTooManyRequests, DetailRateLimited)
				return
			case dec.Allowed:
				log.Warn().Err(err).Str("endpoint", endpoint).Msg("rate limiter unavailable, failing open")
			default:
				log.Error().Err(err).Str("endpoint", endpoint).Msg("rate limiter unavailable")
				writeDetail(w, http.StatusServiceUnavailable, DetailUnavailable)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Limit é o atalho para rotas estáticas: parseia a regra e devolve o middleware.
func Limit(limiter domain.Limiter, strategy, policy string, opts Options) (func(http.Handler) http.Handler, error) {
	rule, err := NewRule(strategy, policy)
	if err != nil {
		return nil, fmt.Errorf("ratelimit %s %s: %w", strategy, policy, err)
	}
	opts.Limiter = limiter
	opts.Rule = rule
	return Middleware(opts), nil
}

func routePattern(r *http.Request, configured string) string {
	if configured != "" {
		return configured
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
