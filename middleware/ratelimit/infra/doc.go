// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - RedisLimiter: janela deslizante em sorted sets do Redis (MULTI/EXEC)
//   - MemoryLimiter: a mesma janela em memória, para uma única instância
//   - RedisStatsStore / MemoryStatsStore / PrometheusStatsStore: estatísticas de admissão
//   - ChanPool: semáforo simples para limite de concorrência
package infra
