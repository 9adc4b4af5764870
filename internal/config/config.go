package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const minProductionSecretLen = 32

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	DBMaxConns  int32
	LogLevel    string

	RequestTimeout time.Duration

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	FrontendCallbackURL string

	GitHub OAuthConfig
	GitLab OAuthConfig
	Google OAuthConfig
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Load reads the environment, after merging a .env file when one exists.
// Malformed optional values fall back to their defaults; missing required
// values are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var env loader
	cfg := &Config{
		Port:        env.str("PORT", "8080"),
		Env:         env.str("ENV", "development"),
		DatabaseURL: env.str("DATABASE_URL", ""),
		DBMaxConns:  int32(env.positiveInt("DB_MAX_CONNS", 20)),
		LogLevel:    env.str("LOG_LEVEL", "info"),

		RequestTimeout: env.duration("REQUEST_TIMEOUT", 10*time.Second),

		JWTSecret:        env.required("JWT_SECRET"),
		JWTAccessExpiry:  env.duration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		JWTRefreshExpiry: env.duration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),

		FrontendCallbackURL: env.str("FRONTEND_CALLBACK_URL", "http://127.0.0.1:3000/oauth-success"),

		GitHub: env.oauth("GITHUB"),
		GitLab: env.oauth("GITLAB"),
		Google: env.oauth("GOOGLE"),
	}

	if cfg.IsProduction() && cfg.JWTSecret != "" && len(cfg.JWTSecret) < minProductionSecretLen {
		env.fail(fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLen))
	}
	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

type loader struct {
	errs []error
}

func (l *loader) fail(err error) {
	l.errs = append(l.errs, err)
}

func (l *loader) str(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (l *loader) required(key string) string {
	value := os.Getenv(key)
	if value == "" {
		l.fail(fmt.Errorf("%s is required", key))
	}
	return value
}

func (l *loader) positiveInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func (l *loader) duration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

// oauth reads <PREFIX>_CLIENT_ID, _CLIENT_SECRET and _REDIRECT_URL. A
// provider with a client id but no secret is a misconfiguration.
func (l *loader) oauth(prefix string) OAuthConfig {
	c := OAuthConfig{
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		RedirectURL:  os.Getenv(prefix + "_REDIRECT_URL"),
	}
	if c.ClientID != "" && c.ClientSecret == "" {
		l.fail(fmt.Errorf("%s_CLIENT_SECRET is required when %s_CLIENT_ID is set", prefix, prefix))
	}
	return c
}
