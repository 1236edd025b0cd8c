// Package ratelimit fornece os adapters HTTP (net/http) do rate limit por rota
// e do limite de concorrência do gateway.
//
// Visão geral (camadas):
//
//   - domain: tipos e contratos (janela, política, chave, Limiter), sem net/http
//   - application: admissão (Service.Admit) e vagas de concorrência, sem net/http
//   - infra: janela deslizante no Redis, versão em memória, estatísticas, semáforo
//   - ratelimit (este pacote): middlewares + resolução de identificador + tradução para status/headers
//
// Fluxo por request:
//
//  1. Resolve o identificador pela estratégia da rota (IP ou usuário)
//  2. Consulta o limiter uma vez para (endpoint, identificador)
//  3. Limitado: 429 com Retry-After; sem usuário: 401; store fora: 503 ou fail-open
//  4. Admitido: chama o próximo handler (ex.: reverse proxy)
//
// As rotas e políticas do binário (cmd/flowershop) vêm de uma tabela YAML; veja
// internal/config.
package ratelimit
