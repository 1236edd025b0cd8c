// Package domain define contratos e tipos de domínio do rate limiter da loja:
// janelas deslizantes, políticas, estratégias de identificação e o resultado
// de uma checagem de admissão.
//
// Este pacote não depende de net/http nem do Redis. O parser de política
// também mora aqui, porque uma política inválida é erro de configuração e
// deve ser detectada no startup, antes de qualquer requisição.
package domain
