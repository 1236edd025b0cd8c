package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão.
//
// Ele é "agnóstico de HTTP": Method/Endpoint são strings genéricas.
//
// Observação: cuidado com cardinalidade. Identifier (IP, id de usuário)
// só deve virar chave/série quando explicitamente habilitado.
type StatsEvent struct {
	Key        Key
	Identifier string
	Endpoint   string
	// Route é o padrão configurado da rota ("/users/{id}"); baixa cardinalidade.
	Route      string
	Method     string
	Strategy   Strategy

	Allowed bool
	// Failed marca checagens em que o store falhou (Allowed reflete fail-open).
	Failed bool

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// Implementações podem armazenar em Redis, Prometheus, memória, etc.
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
