package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/utakatalp/league-projections/internal/cache"
)

type Config struct {
	Env      string
	LogLevel string

	// Season defaults
	Season      int
	Trials      int
	InnerTrials int
	Workers     int
	Seed        uint64

	// Data sources
	DataDir     string
	PostgresURL string
	RosterTTL   time.Duration

	// Cache
	CacheBackend    string
	CacheDir        string
	RedisURL        string
	RedisPrefix     string
	SQLitePath      string
	CacheTTL        time.Duration
	RefreshPolicy   cache.Policy
	RebuildInterval time.Duration
	RebuildBurst    int

	// Server
	MetricsAddr  string
	RefreshEvery time.Duration

	RulesPath string
}

// Load reads a .env file if there is one, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	policy, err := cache.ParsePolicy(getEnv("REFRESH_POLICY", string(cache.PolicyAsync)))
	if err != nil {
		return nil, err
	}
	seed, err := getEnvUint64("SEED", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Season:      getEnvInt("SEASON", time.Now().Year()),
		Trials:      getEnvInt("TRIALS", 10000),
		InnerTrials: getEnvInt("INNER_TRIALS", 10000),
		Workers:     getEnvInt("WORKERS", 0),
		Seed:        seed,

		DataDir:     getEnv("DATA_DIR", "data"),
		PostgresURL: getEnv("POSTGRES_URL", ""),
		RosterTTL:   getEnvDuration("ROSTER_TTL", 5*time.Minute),

		CacheBackend:    getEnv("CACHE_BACKEND", "file"),
		CacheDir:        getEnv("CACHE_DIR", "cache"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPrefix:     getEnv("REDIS_PREFIX", "leaguesim:"),
		SQLitePath:      getEnv("SQLITE_PATH", "cache/leaguesim.db"),
		CacheTTL:        getEnvDuration("CACHE_TTL", 0),
		RefreshPolicy:   policy,
		RebuildInterval: getEnvDuration("REBUILD_INTERVAL", 30*time.Second),
		RebuildBurst:    getEnvInt("REBUILD_BURST", 2),

		MetricsAddr:  getEnv("METRICS_ADDR", ":9090"),
		RefreshEvery: getEnvDuration("REFRESH_EVERY", 10*time.Minute),

		RulesPath: getEnv("RULES_PATH", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("TRIALS must be positive, got %d", c.Trials)
	}
	if c.InnerTrials <= 0 {
		return fmt.Errorf("INNER_TRIALS must be positive, got %d", c.InnerTrials)
	}
	if c.Workers < 0 {
		return fmt.Errorf("WORKERS must not be negative, got %d", c.Workers)
	}
	switch c.CacheBackend {
	case "file", "redis", "sqlite":
	default:
		return fmt.Errorf("CACHE_BACKEND must be file, redis or sqlite, got %q", c.CacheBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvUint64(key string, fallback uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
