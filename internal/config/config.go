// Package config carrega a configuração do gateway: variáveis de ambiente
// (com .env opcional) e a tabela de rotas com políticas de rate limit.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"

	StatsBackendRedis      = "redis"
	StatsBackendMemory     = "memory"
	StatsBackendPrometheus = "prometheus"
)

type Config struct {
	AppName     string
	ListenAddr  string
	UpstreamURL string

	Redis RedisConfig
	Rate  RateConfig
	Stats StatsConfig

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	// JWTPublicKey é o PEM RS256 usado para resolver o usuário da estratégia USER.
	JWTPublicKey string

	LogLevel string
	LogJSON  bool

	MetricsEnabled bool
	OTLPEndpoint   string
	OTelSampleRate float64
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type RateConfig struct {
	Enabled    bool
	Backend    string
	RoutesFile string
	FailOpen   bool
	TrustXFF   bool
	UserHeader string
	AddHeaders bool

	// MemoryCleanup é o intervalo do janitor do backend em memória (0 desliga).
	MemoryCleanup time.Duration
}

type StatsConfig struct {
	Enabled   bool
	Backend   string
	Prefix    string
	TTL       time.Duration
	Bucket    string
	TrackKeys bool
}

// VarError aponta a variável de ambiente inválida.
type VarError struct {
	Name  string
	Value string
	Err   error
}

func (e *VarError) Error() string {
	return fmt.Sprintf("invalid %s=%q: %v", e.Name, e.Value, e.Err)
}

func (e *VarError) Unwrap() error { return e.Err }

// Load lê .env (se existir) e depois o ambiente, aplicando os padrões.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv lê apenas o ambiente do processo.
func FromEnv() (Config, error) {
	var env envReader

	cfg := Config{
		AppName:     getenvDefault("APP_NAME", "flowershop"),
		ListenAddr:  getenvDefault("LISTEN_ADDR", ":8080"),
		UpstreamURL: strings.TrimSpace(os.Getenv("UPSTREAM_URL")),
		Redis: RedisConfig{
			Host:         getenvDefault("REDIS_HOST", "localhost"),
			Port:         env.int("REDIS_PORT", 6379),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           env.int("REDIS_DB", 0),
			DialTimeout:  env.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  env.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: env.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Rate: RateConfig{
			Enabled:    env.bool("RATE_ENABLED", true),
			Backend:    strings.ToLower(getenvDefault("RATE_BACKEND", BackendRedis)),
			RoutesFile: strings.TrimSpace(os.Getenv("RATE_ROUTES_FILE")),
			FailOpen:   env.bool("RATE_FAIL_OPEN", false),
			TrustXFF:   env.bool("TRUST_XFF", false),
			UserHeader: strings.TrimSpace(os.Getenv("USER_HEADER")),
			AddHeaders: env.bool("ADD_RATELIMIT_HEADERS", false),

			MemoryCleanup: env.duration("RATE_MEMORY_CLEANUP", 2*time.Minute),
		},
		Stats: StatsConfig{
			Enabled:   env.bool("RATE_STATS_ENABLED", false),
			Backend:   strings.ToLower(getenvDefault("RATE_STATS_BACKEND", StatsBackendRedis)),
			Prefix:    getenvDefault("RATE_STATS_PREFIX", "rate_limiter:stats"),
			TTL:       env.duration("RATE_STATS_TTL", 24*time.Hour),
			Bucket:    getenvDefault("RATE_STATS_BUCKET", "minute"),
			TrackKeys: env.bool("RATE_STATS_TRACK_KEYS", false),
		},
		ConcurrencyMax:     env.int("CONCURRENCY_MAX", 100),
		ConcurrencyTimeout: env.duration("CONCURRENCY_TIMEOUT", 0),
		JWTPublicKey:       strings.ReplaceAll(os.Getenv("JWT_PUBLIC_KEY"), `\n`, "\n"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		LogJSON:            env.bool("LOG_JSON", false),
		MetricsEnabled:     env.bool("METRICS_ENABLED", true),
		OTLPEndpoint:       strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTelSampleRate:     env.float("OTEL_SAMPLE_RATIO", 1),
	}
	if env.err != nil {
		return Config{}, env.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateUpstream só vale para quem sobe o proxy (serve); os comandos
// administrativos não precisam de UPSTREAM_URL.
func (c Config) ValidateUpstream() (*url.URL, error) {
	if c.UpstreamURL == "" {
		return nil, errors.New("UPSTREAM_URL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_URL %q: expected scheme://host", c.UpstreamURL)
	}
	return u, nil
}

func (c Config) Validate() error {
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		return fmt.Errorf("REDIS_PORT must be in 1..65535, got %d", c.Redis.Port)
	}
	switch c.Rate.Backend {
	case BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("RATE_BACKEND must be %q or %q, got %q", BackendRedis, BackendMemory, c.Rate.Backend)
	}
	if c.Stats.Enabled {
		switch c.Stats.Backend {
		case StatsBackendRedis, StatsBackendMemory, StatsBackendPrometheus:
		default:
			return fmt.Errorf("RATE_STATS_BACKEND must be redis, memory or prometheus, got %q", c.Stats.Backend)
		}
		if c.Stats.Backend == StatsBackendPrometheus && !c.MetricsEnabled {
			return errors.New("RATE_STATS_BACKEND=prometheus requires METRICS_ENABLED=true")
		}
	}
	if c.Rate.MemoryCleanup < 0 {
		return fmt.Errorf("RATE_MEMORY_CLEANUP must be >= 0, got %s", c.Rate.MemoryCleanup)
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO must be in [0,1], got %v", c.OTelSampleRate)
	}
	return nil
}
