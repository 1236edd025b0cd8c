package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"flowershop-gateway/middleware/ratelimit/domain"
)

// MemoryLimiter é a janela deslizante em memória, com a mesma semântica do
// RedisLimiter (poda, contagem antes da inserção, inserção incondicional).
//
// Vale só para UMA instância do processo: serve para desenvolvimento e testes
// (RATE_BACKEND=memory). Em produção com várias réplicas use o RedisLimiter.
type MemoryLimiter struct {
	mu           sync.Mutex
	entries      map[domain.Key]*memoryEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type memoryEntry struct {
	scores    []float64 // ordenado
	expiresAt time.Time
}

type MemoryLimiterOption func(*MemoryLimiter)

func WithMemoryClock(now func() time.Time) MemoryLimiterOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithCleanupEvery define o intervalo do StartJanitor; 0 desliga o janitor.
func WithCleanupEvery(d time.Duration) MemoryLimiterOption {
	return func(l *MemoryLimiter) { l.cleanupEvery = d }
}

func NewMemoryLimiter(opts ...MemoryLimiterOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries:      make(map[domain.Key]*memoryEntry),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check implementa domain.Limiter.
func (l *MemoryLimiter) Check(_ context.Context, identifier, endpoint string, windows []domain.Window) (domain.Result, error) {
	if len(windows) == 0 {
		return domain.Result{}, nil
	}

	key := domain.RateKey(endpoint, identifier)
	now := l.now()
	score := toScore(now)
	maxWindow := domain.MaxWindow(windows)

	l.mu.Lock()
	defer l.mu.Unlock()

	ent, ok := l.entries[key]
	if !ok || !now.Before(ent.expiresAt) {
		ent = &memoryEntry{}
		l.entries[key] = ent
	}

	// poda: remove score < now - maior janela
	cutoff := score - float64(maxWindow.Seconds)
	drop := sort.SearchFloat64s(ent.scores, cutoff)
	if drop > 0 {
		ent.scores = append(ent.scores[:0], ent.scores[drop:]...)
	}

	res := domain.Result{Usage: make([]domain.WindowUsage, len(windows))}
	for i, w := range windows {
		lo := sort.SearchFloat64s(ent.scores, score-float64(w.Seconds))
		hi := sort.Search(len(ent.scores), func(j int) bool { return ent.scores[j] > score })
		u := domain.WindowUsage{Window: w, Count: int64(hi - lo)}
		if u.Exceeded() {
			res.Limited = true
		}
		res.Usage[i] = u
	}

	pos := sort.Search(len(ent.scores), func(j int) bool { return ent.scores[j] > score })
	ent.scores = append(ent.scores, 0)
	copy(ent.scores[pos+1:], ent.scores[pos:])
	ent.scores[pos] = score
	ent.expiresAt = now.Add(maxWindow.Duration())

	return res, nil
}

// Records devolve quantos registros a chave guarda agora.
func (l *MemoryLimiter) Records(identifier, endpoint string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ent, ok := l.entries[domain.RateKey(endpoint, identifier)]; ok {
		return len(ent.scores)
	}
	return 0
}

// Cleanup remove chaves expiradas (equivalente ao EXPIRE do Redis).
func (l *MemoryLimiter) Cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if !now.Before(ent.expiresAt) {
			delete(l.entries, k)
		}
	}
}

// Len é o número de chaves vivas no mapa (inclui expiradas ainda não limpas).
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StartJanitor inicia uma goroutine que limpa chaves expiradas periodicamente.
// Pare cancelando o contexto.
func (l *MemoryLimiter) StartJanitor(ctx context.Context) {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}
