package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"flowershop-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "flowershop", cfg.AppName)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, BackendRedis, cfg.Rate.Backend)
	assert.True(t, cfg.Rate.Enabled)
	assert.False(t, cfg.Rate.FailOpen)
	assert.Equal(t, 100, cfg.ConcurrencyMax)
	assert.Equal(t, "rate_limiter:stats", cfg.Stats.Prefix)
	assert.Equal(t, 24*time.Hour, cfg.Stats.TTL)
	assert.Equal(t, 1.0, cfg.OTelSampleRate)
	assert.Equal(t, 2*time.Minute, cfg.Rate.MemoryCleanup)

	_, err = cfg.ValidateUpstream()
	assert.Error(t, err, "UPSTREAM_URL is only required by serve")
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://shop:8000")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_BACKEND", "Memory")
	t.Setenv("RATE_FAIL_OPEN", "true")
	t.Setenv("TRUST_XFF", "1")
	t.Setenv("USER_HEADER", "X-User-ID")
	t.Setenv("CONCURRENCY_TIMEOUT", "250ms")
	t.Setenv("RATE_MEMORY_CLEANUP", "30s")
	t.Setenv("JWT_PUBLIC_KEY", `-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)

	cfg, err := FromEnv()
	require.NoError(t, err)

	u, err := cfg.ValidateUpstream()
	require.NoError(t, err)
	assert.Equal(t, "shop:8000", u.Host)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr())
	assert.Equal(t, BackendMemory, cfg.Rate.Backend)
	assert.True(t, cfg.Rate.FailOpen)
	assert.True(t, cfg.Rate.TrustXFF)
	assert.Equal(t, "X-User-ID", cfg.Rate.UserHeader)
	assert.Equal(t, 250*time.Millisecond, cfg.ConcurrencyTimeout)
	assert.Equal(t, 30*time.Second, cfg.Rate.MemoryCleanup)
	assert.Contains(t, cfg.JWTPublicKey, "\nabc\n")
}

func TestFromEnv_InvalidValuesNameTheVariable(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"port not a number", "REDIS_PORT", "abc", "REDIS_PORT"},
		{"port out of range", "REDIS_PORT", "70000", "REDIS_PORT"},
		{"bad bool", "RATE_ENABLED", "maybe", "RATE_ENABLED"},
		{"bad duration", "REDIS_READ_TIMEOUT", "3", "REDIS_READ_TIMEOUT"},
		{"bad backend", "RATE_BACKEND", "etcd", "RATE_BACKEND"},
		{"negative concurrency", "CONCURRENCY_MAX", "-1", "CONCURRENCY_MAX"},
		{"sample ratio", "OTEL_SAMPLE_RATIO", "2", "OTEL_SAMPLE_RATIO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFromEnv_NegativeMemoryCleanup(t *testing.T) {
	t.Setenv("RATE_MEMORY_CLEANUP", "-1s")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_MEMORY_CLEANUP")
}

func TestFromEnv_VarErrorUnwraps(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := FromEnv()

	var verr *VarError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "REDIS_DB", verr.Name)
	assert.Equal(t, "one", verr.Value)
}

func TestFromEnv_PrometheusStatsNeedMetrics(t *testing.T) {
	t.Setenv("RATE_STATS_ENABLED", "true")
	t.Setenv("RATE_STATS_BACKEND", "prometheus")
	t.Setenv("METRICS_ENABLED", "false")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "METRICS_ENABLED")
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_NAME=from-dotenv\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Cleanup(func() { _ = os.Unsetenv("APP_NAME") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.AppName)
}

func TestDefaultRoutes(t *testing.T) {
	routes := DefaultRoutes()
	require.Len(t, routes, 6)

	byPath := map[string]Route{}
	for _, r := range routes {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, domain.StrategyIP, r.Rule.Strategy)
		byPath[r.Path] = r
	}
	assert.Equal(t, "3/m;10/h", byPath["/users/register"].Rule.Policy.String())
	assert.Equal(t, "2/m;5/h", byPath["/users/resend-otp"].Rule.Policy.String())
	assert.Equal(t, domain.Policy{{MaxRequests: 10, Seconds: 60}, {MaxRequests: 100, Seconds: 3600}}, byPath["/users/refresh"].Rule.Policy)
	assert.Equal(t, "5/m;20/h", byPath["/users/login"].Rule.Policy.String())
}

func TestDefaultRoutes_DailyCapsAreNotExpressible(t *testing.T) {
	_, err := domain.ParsePolicy("5/m;20/h;50/d")
	require.ErrorIs(t, err, domain.ErrInvalidPolicy)

	assert.Contains(t, string(defaultRoutes), "50/d")
	for _, r := range DefaultRoutes() {
		for _, w := range r.Rule.Policy {
			assert.LessOrEqual(t, w.Seconds, 3600, r.String())
		}
	}
}

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes([]byte(`
routes:
  - method: get
    path: /users/me
    strategy: USER
    policy: "1/s;30/m"
`))
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "GET", routes[0].Method)
	assert.Equal(t, domain.StrategyUser, routes[0].Rule.Strategy)
	assert.Equal(t, "GET /users/me user 1/s;30/m", routes[0].String())

	empty, err := ParseRoutes(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseRoutes_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		is   error
	}{
		{"day unit", "routes:\n  - {method: POST, path: /x, strategy: ip, policy: '20/d'}\n", domain.ErrInvalidPolicy},
		{"four windows", "routes:\n  - {method: POST, path: /x, strategy: ip, policy: '1/s;2/s;3/m;4/h'}\n", domain.ErrInvalidPolicy},
		{"bad strategy", "routes:\n  - {method: POST, path: /x, strategy: token, policy: '1/s'}\n", domain.ErrInvalidStrategy},
		{"bad method", "routes:\n  - {method: FETCH, path: /x, strategy: ip, policy: '1/s'}\n", nil},
		{"relative path", "routes:\n  - {method: POST, path: x, strategy: ip, policy: '1/s'}\n", nil},
		{"duplicate", "routes:\n  - {method: POST, path: /x, strategy: ip, policy: '1/s'}\n  - {method: post, path: /x, strategy: ip, policy: '2/s'}\n", nil},
		{"unknown field", "routes:\n  - {method: POST, path: /x, strategy: ip, policy: '1/s', burst: 3}\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoutes([]byte(tt.yaml))
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
				var rerr *RouteError
				assert.ErrorAs(t, err, &rerr)
			}
		})
	}
}

func TestLoadRoutes_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - {method: DELETE, path: '/orders/{id}', strategy: user, policy: '5/m'}\n"), 0o600))

	routes, err := LoadRoutes(path)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "/orders/{id}", routes[0].Path)

	_, err = LoadRoutes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	defaults, err := LoadRoutes("")
	require.NoError(t, err)
	assert.Len(t, defaults, 6)
}
