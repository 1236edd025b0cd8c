package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Mensagens devolvidas no campo "detail" das respostas de erro.
const (
	DetailRateLimited     = "Exceeded max requests. Try later."
	DetailUnauthenticated = "Not authenticated"
	DetailUnavailable     = "Rate limiter unavailable"
	DetailOverloaded      = "Too many concurrent requests"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Detail: detail})
}

// formatSeconds arredonda para cima; Retry-After nunca sai 0.
func formatSeconds(d time.Duration) string {
	s := int64(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.FormatInt(s, 10)
}
