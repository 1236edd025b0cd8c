package domain

import "context"

// SlotPool representa as vagas de requisições simultâneas do gateway.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar.
// Ao adquirir, retorna uma função de release que deve ser chamada exatamente uma vez.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	// InUse é quantas vagas estão ocupadas agora.
	InUse() int
}
