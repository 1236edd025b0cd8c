// Package gateway monta o roteador HTTP do gateway: health, métricas,
// estatísticas do rate limit, rotas limitadas e o reverse proxy para a loja.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"time"

	"flowershop-gateway/internal/config"
	"flowershop-gateway/middleware/metrics"
	"flowershop-gateway/middleware/ratelimit"
	"flowershop-gateway/middleware/ratelimit/domain"
	"flowershop-gateway/middleware/ratelimit/infra"
	"flowershop-gateway/middleware/requestlog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps reúne o que o roteador precisa. Campos opcionais em nil desligam o recurso.
type Deps struct {
	Logger zerolog.Logger

	Routes  []config.Route
	Rate    config.RateConfig
	Limiter domain.Limiter
	Stats   domain.StatsStore

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	// CurrentUser resolve o usuário da estratégia USER (ex.: auth.Verifier).
	CurrentUser func(*http.Request) (string, bool)

	// Ping alimenta /healthz.
	Ping func(ctx context.Context) error

	Metrics  *metrics.HTTPMetrics
	Gatherer prometheus.Gatherer

	// StatsSnapshot serve /-/ratelimit/stats (só com stats em memória).
	StatsSnapshot func() infra.Snapshot
}

// NewRouter registra cada rota da tabela com o seu middleware de rate limit
// na frente do upstream; o resto vai direto para o upstream.
func NewRouter(d Deps, upstream http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(canonicalPath)
	r.Use(requestlog.Middleware(d.Logger))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(d.Ping))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.StatsSnapshot != nil {
		r.Get("/-/ratelimit/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, d.StatsSnapshot())
		})
	}

	// o semáforo é um só para todas as rotas do proxy
	guard := ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            d.ConcurrencyMax,
		AcquireTimeout: d.ConcurrencyTimeout,
	})
	proxied := guard(upstream)

	if d.Rate.Enabled && d.Limiter != nil {
		resolver := ratelimit.Resolver{
			TrustXForwardedFor: d.Rate.TrustXFF,
			UserHeader:         d.Rate.UserHeader,
			CurrentUser:        d.CurrentUser,
		}
		for _, route := range d.Routes {
			r.With(guard, ratelimit.Middleware(ratelimit.Options{
				Limiter:             d.Limiter,
				Rule:                route.Rule,
				Resolver:            resolver,
				Stats:               d.Stats,
				FailOpen:            d.Rate.FailOpen,
				AddRateLimitHeaders: d.Rate.AddHeaders,
				Route:               route.Path,
			})).Method(route.Method, route.Path, upstream)
		}
	}

	// outros métodos numa rota limitada seguem para a loja, sem 405 do gateway
	r.MethodNotAllowed(proxied.ServeHTTP)
	r.Handle("/*", proxied)

	return r
}

// canonicalPath reescreve a URL para a forma decodificada e limpa antes do
// roteamento. O chi casa rotas pelo RawPath quando ele existe, então
// /users/%6Cogin, /users/login/ e /users//./login precisam virar
// /users/login para cair na rota limitada e na mesma chave.
func canonicalPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean != r.URL.Path || r.URL.RawPath != "" {
			r.URL.Path = clean
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}

// NewProxy é o reverse proxy para a loja; erro de upstream vira 502.
func NewProxy(target *url.URL) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("upstream", target.String()).Msg("proxy error")
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}
	return proxy
}

func healthHandler(ping func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewServer aplica os timeouts do gateway.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
}

// Run serve até ctx encerrar e então faz shutdown gracioso (10s).
func Run(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
