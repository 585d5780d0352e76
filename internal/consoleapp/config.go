package consoleapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phillip-england/estatecrm/internal/envutil"
	"github.com/phillip-england/estatecrm/internal/session"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

type Config struct {
	Addr         string
	APIBaseURL   string
	APITimeout   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DemoEmail and DemoPassword prefill the sign-in form.
	DemoEmail    string
	DemoPassword string

	// RequireSession redirects tokenless requests for the dashboard back
	// to the sign-in page. Off by default.
	RequireSession bool

	SessionBackend string
	SessionTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

func DefaultConfigFromEnv() Config {
	return Config{
		Addr:           envutil.OrDefault("CONSOLE_ADDR", ":3000"),
		APIBaseURL:     envutil.OrDefault("API_BASE_URL", "http://localhost:8080"),
		APITimeout:     envutil.Duration("API_TIMEOUT", 8*time.Second),
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		DemoEmail:      envutil.OrDefault("DEMO_EMAIL", "admin"),
		DemoPassword:   envutil.OrDefault("DEMO_PASSWORD", "admin"),
		RequireSession: envutil.Bool("REQUIRE_SESSION", false),
		SessionBackend: strings.ToLower(envutil.OrDefault("SESSION_BACKEND", SessionBackendMemory)),
		SessionTTL:     envutil.Duration("SESSION_TTL", 24*time.Hour),
		RedisAddr:      envutil.OrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  envutil.OrDefault("REDIS_PASSWORD", ""),
		RedisDB:        envutil.Int("REDIS_DB", 0),
	}
}

// openStore builds the token store named by cfg.SessionBackend. The close
// func is a no-op for the memory store.
func openStore(ctx context.Context, cfg Config) (session.Store, func() error, error) {
	switch cfg.SessionBackend {
	case "", SessionBackendMemory:
		return session.NewMemoryStore(cfg.SessionTTL), func() error { return nil }, nil
	case SessionBackendRedis:
		store, err := session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_BACKEND %q", cfg.SessionBackend)
	}
}
