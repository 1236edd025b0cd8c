package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flowershop-gateway/internal/logging"
	"flowershop-gateway/middleware/ratelimit"
	"flowershop-gateway/middleware/ratelimit/domain"
	"flowershop-gateway/middleware/ratelimit/infra"
	"flowershop-gateway/middleware/requestlog"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Exemplo: o middleware de rate limit direto no seu webserver (sem proxy).
// Com REDIS_ADDR usa o Redis; sem, a janela deslizante em memória.
func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"), false)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var limiter domain.Limiter
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer func() { _ = rdb.Close() }()
		limiter = infra.NewRedisLimiter(rdb)
	} else {
		mem := infra.NewMemoryLimiter()
		mem.StartJanitor(ctx)
		limiter = mem
	}

	byIP, err := ratelimit.Limit(limiter, "ip", "5/m;20/h", ratelimit.Options{AddRateLimitHeaders: true})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit rule")
	}
	byUser, err := ratelimit.Limit(limiter, "user", "1/s;30/m", ratelimit.Options{
		Resolver:            ratelimit.Resolver{UserHeader: "X-User-ID"},
		AddRateLimitHeaders: true,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rate limit rule")
	}

	r := chi.NewRouter()
	r.Use(requestlog.Middleware(log))
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50}))
	r.With(byIP).Post("/users/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("logged in\n"))
	})
	r.With(byUser).Get("/users/me/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]\n"))
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("example server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
