package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy é erro de configuração: política mal formada.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")

	// ErrInvalidStrategy é erro de configuração: estratégia desconhecida.
	ErrInvalidStrategy = errors.New("invalid rate limit strategy")

	// ErrUnauthenticated indica que a estratégia USER não achou um principal.
	// Nunca cai para IP nesse caso.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrRateLimited é a admissão negada, para quem não fala HTTP.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// PolicyError descreve por que uma política foi rejeitada.
type PolicyError struct {
	Policy string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("invalid rate limit policy %q: %s", e.Policy, e.Reason)
}

func (e *PolicyError) Unwrap() error { return ErrInvalidPolicy }

type StrategyError struct {
	Value string
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("invalid rate limit strategy %q: expected %q or %q", e.Value, StrategyIP, StrategyUser)
}

func (e *StrategyError) Unwrap() error { return ErrInvalidStrategy }

// IsConfigError diz se o erro é de configuração (política ou estratégia).
// Esse tipo de erro não deve ser reexecutado nem exposto ao cliente final.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidPolicy) || errors.Is(err, ErrInvalidStrategy)
}
