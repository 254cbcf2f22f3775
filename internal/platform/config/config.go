package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix = "PACT"

	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"

	IdempotencyMemory   = "memory"
	IdempotencyPostgres = "postgres"
	IdempotencyRedis    = "redis"

	AuthModeSupabase = "supabase"
	AuthModeDev      = "dev"

	// DevIssuer is the iss claim of tokens minted in dev mode.
	DevIssuer = "pact-dev"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	PublicBaseURL  string
	LogLevel       string
	NetworkTimeout time.Duration

	Storage     StorageConfig
	Idempotency IdempotencyConfig
	Auth        AuthConfig
	Session     SessionConfig
}

type StorageConfig struct {
	Backend      string
	DatabaseURL  string
	DatabasePath string
}

type IdempotencyConfig struct {
	Backend string
	Redis   RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type AuthConfig struct {
	Mode string
	// Providers are the OAuth providers offered at sign-in.
	Providers []string

	Supabase SupabaseConfig
	Dev      DevConfig
}

type SupabaseConfig struct {
	URL       string
	AnonKey   string
	JWTSecret string
	JWKSURL   string
}

type DevConfig struct {
	SigningSecret string
	TokenTTL      time.Duration
}

// SessionConfig configures the session cookie and access token verification.
type SessionConfig struct {
	CookieName   string
	CookieSecure bool
	Audience     string

	ClockSkew              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.address", "0.0.0.0:8080")
	v.SetDefault("public.base_url", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("network.timeout", 5*time.Second)

	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("database.path", "pact.db")
	v.SetDefault("idempotency.backend", IdempotencyMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("auth.mode", AuthModeSupabase)
	v.SetDefault("auth.providers", []string{"google"})
	v.SetDefault("dev.token_ttl", time.Hour)

	v.SetDefault("session.cookie_name", "pact_session")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.audience", "authenticated")
	v.SetDefault("session.clock_skew", 30*time.Second)
	// Periodic refresh picks up key rotation; the min interval bounds refreshes on unknown kids.
	v.SetDefault("session.jwks_refresh_interval", 5*time.Minute)
	v.SetDefault("session.jwks_min_refresh_interval", 10*time.Second)
}

// Load parses runtime configuration from viper.
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    v.GetString("http.address"),
		PublicBaseURL:  strings.TrimRight(strings.TrimSpace(v.GetString("public.base_url")), "/"),
		LogLevel:       v.GetString("log.level"),
		NetworkTimeout: v.GetDuration("network.timeout"),
		Storage: StorageConfig{
			Backend:      strings.ToLower(strings.TrimSpace(v.GetString("storage.backend"))),
			DatabaseURL:  v.GetString("database.url"),
			DatabasePath: v.GetString("database.path"),
		},
		Idempotency: IdempotencyConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("idempotency.backend"))),
			Redis: RedisConfig{
				Addr:     v.GetString("redis.addr"),
				Password: v.GetString("redis.password"),
				DB:       v.GetInt("redis.db"),
				TTL:      v.GetDuration("redis.ttl"),
			},
		},
		Auth: AuthConfig{
			Mode:      strings.ToLower(strings.TrimSpace(v.GetString("auth.mode"))),
			Providers: normalizeList(v.GetStringSlice("auth.providers")),
			Supabase: SupabaseConfig{
				URL:       strings.TrimRight(strings.TrimSpace(v.GetString("supabase.url")), "/"),
				AnonKey:   v.GetString("supabase.anon_key"),
				JWTSecret: v.GetString("supabase.jwt_secret"),
				JWKSURL:   v.GetString("supabase.jwks_url"),
			},
			Dev: DevConfig{
				SigningSecret: v.GetString("dev.signing_secret"),
				TokenTTL:      v.GetDuration("dev.token_ttl"),
			},
		},
		Session: SessionConfig{
			CookieName:             v.GetString("session.cookie_name"),
			CookieSecure:           v.GetBool("session.cookie_secure"),
			Audience:               v.GetString("session.audience"),
			ClockSkew:              v.GetDuration("session.clock_skew"),
			JWKSRefreshInterval:    v.GetDuration("session.jwks_refresh_interval"),
			JWKSMinRefreshInterval: v.GetDuration("session.jwks_min_refresh_interval"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// TokenIssuer is the iss claim session tokens must carry in the configured auth mode.
func (c AppConfig) TokenIssuer() string {
	if c.Auth.Mode == AuthModeDev {
		return DevIssuer
	}
	return c.Auth.Supabase.URL + "/auth/v1"
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	if u, err := url.Parse(c.PublicBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("public.base_url must be an absolute URL")
	}
	if c.NetworkTimeout <= 0 {
		return fmt.Errorf("network.timeout must be positive")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return fmt.Errorf("session.cookie_name is required")
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StoragePostgres:
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return fmt.Errorf("database.url is required for storage.backend=%s", StoragePostgres)
		}
	case StorageSQLite:
		if strings.TrimSpace(c.Storage.DatabasePath) == "" {
			return fmt.Errorf("database.path is required for storage.backend=%s", StorageSQLite)
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, postgres, sqlite (got %q)", c.Storage.Backend)
	}

	switch c.Idempotency.Backend {
	case IdempotencyMemory:
	case IdempotencyPostgres:
		if c.Storage.Backend != StoragePostgres {
			return fmt.Errorf("idempotency.backend=%s requires storage.backend=%s", IdempotencyPostgres, StoragePostgres)
		}
	case IdempotencyRedis:
		if strings.TrimSpace(c.Idempotency.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required for idempotency.backend=%s", IdempotencyRedis)
		}
	default:
		return fmt.Errorf("idempotency.backend must be one of memory, postgres, redis (got %q)", c.Idempotency.Backend)
	}

	if len(c.Auth.Providers) == 0 {
		return fmt.Errorf("auth.providers must list at least one provider")
	}

	switch c.Auth.Mode {
	case AuthModeSupabase:
		if c.Auth.Supabase.URL == "" || strings.TrimSpace(c.Auth.Supabase.AnonKey) == "" {
			return fmt.Errorf("supabase.url and supabase.anon_key are required for auth.mode=%s", AuthModeSupabase)
		}
		if strings.TrimSpace(c.Auth.Supabase.JWTSecret) == "" && strings.TrimSpace(c.Auth.Supabase.JWKSURL) == "" {
			return fmt.Errorf("one of supabase.jwt_secret or supabase.jwks_url is required")
		}
	case AuthModeDev:
		if strings.TrimSpace(c.Auth.Dev.SigningSecret) == "" {
			return fmt.Errorf("dev.signing_secret is required for auth.mode=%s", AuthModeDev)
		}
	default:
		return fmt.Errorf("auth.mode must be one of supabase, dev (got %q)", c.Auth.Mode)
	}
	return nil
}
