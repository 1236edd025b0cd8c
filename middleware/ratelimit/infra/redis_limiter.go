package infra

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "flowershop-gateway/middleware/ratelimit/infra"

// requestIDSeparator separa timestamp e sufixo aleatório no membro do sorted set.
const requestIDSeparator = "--"

// RedisLimiter é o rate limiter de janela deslizante sobre sorted sets do Redis.
//
// Cada checagem é um único MULTI/EXEC por chave: poda, contagem por janela,
// inserção da tentativa atual e renovação do TTL. A atomicidade vem do Redis;
// não existe lock nem cache local, então várias instâncias do gateway podem
// compartilhar o mesmo Redis sem coordenação.
type RedisLimiter struct {
	rdb     redis.Cmdable
	now     func() time.Time
	randInt func() int64
	tracer  trace.Tracer
}

type RedisLimiterOption func(*RedisLimiter)

// WithClock troca a fonte de tempo (testes).
func WithClock(now func() time.Time) RedisLimiterOption {
	return func(l *RedisLimiter) { l.now = now }
}

// WithRandom troca o gerador do sufixo do request id (testes).
func WithRandom(fn func() int64) RedisLimiterOption {
	return func(l *RedisLimiter) { l.randInt = fn }
}

func WithTracerProvider(tp trace.TracerProvider) RedisLimiterOption {
	return func(l *RedisLimiter) { l.tracer = tp.Tracer(tracerName) }
}

func NewRedisLimiter(rdb redis.Cmdable, opts ...RedisLimiterOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:     rdb,
		now:     time.Now,
		randInt: func() int64 { return rand.Int63n(1_000_000_000) },
		tracer:  otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check implementa domain.Limiter.
//
// A decisão usa as contagens de ANTES da inserção: a própria tentativa não
// conta contra ela mesma. A inserção é incondicional, então um cliente que
// continua martelando enquanto bloqueado continua sendo contado.
//
// Lista de janelas vazia nunca limita e não toca no Redis.
func (l *RedisLimiter) Check(ctx context.Context, identifier, endpoint string, windows []domain.Window) (domain.Result, error) {
	if len(windows) == 0 {
		return domain.Result{}, nil
	}

	key := string(domain.RateKey(endpoint, identifier))
	now := l.now()
	score := toScore(now)
	maxWindow := domain.MaxWindow(windows)

	ctx, span := l.tracer.Start(ctx, "ratelimit.check", trace.WithAttributes(
		attribute.String("ratelimit.endpoint", endpoint),
		attribute.Int("ratelimit.windows", len(windows)),
	))
	defer span.End()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+formatScore(score-float64(maxWindow.Seconds)))
	counts := make([]*redis.IntCmd, len(windows))
	for i, w := range windows {
		counts[i] = pipe.ZCount(ctx, key, formatScore(score-float64(w.Seconds)), formatScore(score))
	}
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: l.requestID(score)})
	pipe.Expire(ctx, key, maxWindow.Duration())

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "redis exec failed")
		return domain.Result{}, err
	}

	res := domain.Result{Usage: make([]domain.WindowUsage, len(windows))}
	for i, w := range windows {
		u := domain.WindowUsage{Window: w, Count: counts[i].Val()}
		if u.Exceeded() {
			res.Limited = true
		}
		res.Usage[i] = u
	}
	span.SetAttributes(attribute.Bool("ratelimit.limited", res.Limited))
	return res, nil
}

// IsLimited é a forma booleana de Check.
func (l *RedisLimiter) IsLimited(ctx context.Context, identifier, endpoint string, windows []domain.Window) (bool, error) {
	res, err := l.Check(ctx, identifier, endpoint, windows)
	if err != nil {
		return false, err
	}
	return res.Limited, nil
}

// KeyUsage é uma foto somente-leitura de uma chave de rate limit.
type KeyUsage struct {
	Key     domain.Key
	Windows []domain.WindowUsage
	Records int64
	// TTL negativo segue a convenção do Redis (-2 chave ausente, -1 sem expiração).
	TTL time.Duration
}

// Usage conta os registros por janela sem podar nem gravar tentativa.
func (l *RedisLimiter) Usage(ctx context.Context, identifier, endpoint string, windows []domain.Window) (KeyUsage, error) {
	key := string(domain.RateKey(endpoint, identifier))
	score := toScore(l.now())

	pipe := l.rdb.TxPipeline()
	counts := make([]*redis.IntCmd, len(windows))
	for i, w := range windows {
		counts[i] = pipe.ZCount(ctx, key, formatScore(score-float64(w.Seconds)), formatScore(score))
	}
	card := pipe.ZCard(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return KeyUsage{}, err
	}

	out := KeyUsage{
		Key:     domain.Key(key),
		Windows: make([]domain.WindowUsage, len(windows)),
		Records: card.Val(),
		TTL:     ttl.Val(),
	}
	for i, w := range windows {
		out.Windows[i] = domain.WindowUsage{Window: w, Count: counts[i].Val()}
	}
	return out, nil
}

// Reset apaga a chave. Uso administrativo (CLI), fora do caminho quente.
func (l *RedisLimiter) Reset(ctx context.Context, identifier, endpoint string) (bool, error) {
	n, err := l.rdb.Del(ctx, string(domain.RateKey(endpoint, identifier))).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// requestID: timestamp com microssegundos + sufixo aleatório, para que duas
// requisições no mesmo instante virem membros distintos.
func (l *RedisLimiter) requestID(score float64) string {
	return strconv.FormatFloat(score, 'f', 6, 64) + requestIDSeparator + strconv.FormatInt(l.randInt(), 10)
}

func toScore(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
