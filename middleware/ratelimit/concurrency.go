package ratelimit

import (
	"net/http"
	"time"

	"flowershop-gateway/middleware/ratelimit/application"
	"flowershop-gateway/middleware/ratelimit/infra"

	"github.com/rs/zerolog"
)

type ConcurrencyOptions struct {
	// Max <= 0 desliga o limite.
	Max            int
	AcquireTimeout time.Duration
}

// ConcurrencyMiddleware limita requisições em voo no gateway inteiro.
// Sem vaga dentro do AcquireTimeout responde 503.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				zerolog.Ctx(r.Context()).Warn().
					Int("max", opts.Max).
					Int("in_use", svc.InUse()).
					Msg("no concurrency slot available")
				writeDetail(w, http.StatusServiceUnavailable, DetailOverloaded)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
