package main

import (
	"encoding/json"
	"net/http"

	"flowershop-gateway/middleware/requestlog"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type flower struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

var catalog = []flower{
	{ID: 1, Name: "Rosa vermelha", Price: 12.5},
	{ID: 2, Name: "Girassol", Price: 8},
	{ID: 3, Name: "Orquídea", Price: 45.9},
}

func newRouter(log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestlog.Middleware(log))

	r.Get("/flowers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, catalog)
	})

	r.Route("/users", func(r chi.Router) {
		for _, p := range []string{"/register", "/verify-email", "/check-code", "/resend-otp", "/login", "/refresh"} {
			path := p
			r.Post(path, func(w http.ResponseWriter, r *http.Request) {
				zerolog.Ctx(r.Context()).Info().Str("endpoint", "/users"+path).Msg("stub hit")
				writeJSON(w, http.StatusOK, map[string]string{"endpoint": "/users" + path, "status": "ok"})
			})
		}
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"id": r.Header.Get("X-User-ID")})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
