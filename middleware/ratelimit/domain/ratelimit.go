package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"strings"
	"time"
)

// KeyPrefix é o prefixo de todas as chaves de rate limit no store.
const KeyPrefix = "rate_limiter"

// MaxWindows é a quantidade máxima de janelas em uma política.
const MaxWindows = 3

// Key identifica um sorted set de registros: "rate_limiter:{endpoint}:{identifier}".
type Key string

// RateKey monta a chave composta de um par (endpoint, identifier).
// Endpoints e identificadores distintos nunca compartilham contador.
func RateKey(endpoint, identifier string) Key {
	return Key(KeyPrefix + ":" + endpoint + ":" + identifier)
}

// Window é uma unidade de admissão: no máximo MaxRequests dentro de Seconds.
type Window struct {
	MaxRequests int
	Seconds     int
}

func (w Window) Duration() time.Duration {
	return time.Duration(w.Seconds) * time.Second
}

// Policy é uma sequência ordenada de 1 a 3 janelas. A ordem de entrada é
// preservada; não há deduplicação nem reordenação por tamanho.
type Policy []Window

// MaxWindow retorna a maior janela da política (horizonte de poda e TTL da chave).
// Política vazia retorna Window{}.
func MaxWindow(windows []Window) Window {
	var max Window
	for _, w := range windows {
		if w.Seconds > max.Seconds {
			max = w
		}
	}
	return max
}

// Strategy diz de onde vem o identificador de uma checagem.
type Strategy string

const (
	StrategyIP   Strategy = "ip"
	StrategyUser Strategy = "user"
)

// ParseStrategy aceita "ip" ou "user" (case-insensitive).
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyIP:
		return StrategyIP, nil
	case StrategyUser:
		return StrategyUser, nil
	}
	return "", &StrategyError{Value: s}
}

// Rule é o par estratégia + política aplicado a uma rota.
type Rule struct {
	Strategy Strategy
	Policy   Policy
}

// WindowUsage é a ocupação de uma janela ANTES do registro da tentativa atual.
type WindowUsage struct {
	Window Window
	Count  int64
}

// Exceeded indica se a janela já estava no limite quando a tentativa chegou.
func (u WindowUsage) Exceeded() bool {
	return u.Count >= int64(u.Window.MaxRequests)
}

// Remaining é quantas requisições ainda cabem na janela depois desta (nunca negativo).
func (u WindowUsage) Remaining() int64 {
	r := int64(u.Window.MaxRequests) - u.Count - 1
	if r < 0 {
		return 0
	}
	return r
}

// Result é o resultado de uma checagem de admissão.
type Result struct {
	Limited bool
	Usage   []WindowUsage
}

// Remaining retorna o menor saldo entre as janelas, ou -1 se não há janelas.
func (r Result) Remaining() int64 {
	if len(r.Usage) == 0 {
		return -1
	}
	min := r.Usage[0].Remaining()
	for _, u := range r.Usage[1:] {
		if rem := u.Remaining(); rem < min {
			min = rem
		}
	}
	return min
}

// RetryAfter é a duração da maior janela estourada. Se o cliente parar de
// chamar, depois disso todo o histórico relevante já saiu da janela.
func (r Result) RetryAfter() time.Duration {
	var d time.Duration
	for _, u := range r.Usage {
		if u.Exceeded() && u.Window.Duration() > d {
			d = u.Window.Duration()
		}
	}
	return d
}

// Limiter grava a tentativa atual e decide se ela deve ser barrada.
//
// Implementações não fazem fail-open nem fail-closed: erro do store volta
// para quem chamou, que decide a política.
type Limiter interface {
	Check(ctx context.Context, identifier, endpoint string, windows []Window) (Result, error)
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
	// Remaining é o menor saldo entre as janelas (-1 quando desconhecido).
	Remaining int64
}
