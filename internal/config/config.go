package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultSeedPassword is the password of seeded accounts unless SEED_PASSWORD
// overrides it. It is refused in prod.
const DefaultSeedPassword = "Password123!"

var (
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required")
	ErrDefaultSeedPassword = errors.New("SEED_PASSWORD must be set when SEED_USERS is enabled in prod")
)

type Config struct {
	Env  string
	Port int

	Store      string
	DBURL      string
	DBMaxConns int32

	JWTSecret  string
	BcryptCost int

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	IdentityCacheTTL time.Duration

	OTelEnabled  bool
	OTelEndpoint string

	CORSAllowedOrigins []string
	LoginRateLimit     int
	LoginRateWindow    time.Duration
	MaxBodyBytes       int64
	MaxUploadBytes     int64

	PhoneRegion  string
	SeedUsers    bool
	SeedPassword string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Every malformed value is
// reported, not just the first.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env{get: getenv}

	cfg := Config{
		Env:  e.getString("APP_ENV", "dev"),
		Port: e.getInt("PORT", 8080),

		Store:      strings.ToLower(e.getString("STORE", StorePostgres)),
		DBURL:      e.getString("DATABASE_URL", ""),
		DBMaxConns: int32(e.getInt("DB_MAX_CONNS", 10)),

		JWTSecret:  e.getString("JWT_SECRET", ""),
		BcryptCost: e.getInt("BCRYPT_COST", 10),

		RedisAddr:        e.getString("REDIS_ADDR", ""),
		RedisPassword:    e.getString("REDIS_PASSWORD", ""),
		RedisDB:          e.getInt("REDIS_DB", 0),
		IdentityCacheTTL: e.getDuration("IDENTITY_CACHE_TTL", 0),

		OTelEnabled:  e.getBool("OTEL_ENABLED", false),
		OTelEndpoint: e.getString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		CORSAllowedOrigins: e.getList("CORS_ALLOWED_ORIGINS"),
		LoginRateLimit:     e.getInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:    e.getDuration("LOGIN_RATE_WINDOW", time.Minute),
		MaxBodyBytes:       int64(e.getInt("MAX_BODY_BYTES", 1<<20)),
		MaxUploadBytes:     int64(e.getInt("MAX_UPLOAD_BYTES", 5<<20)),

		PhoneRegion:  strings.ToUpper(e.getString("PHONE_REGION", "VN")),
		SeedUsers:    e.getBool("SEED_USERS", false),
		SeedPassword: e.getString("SEED_PASSWORD", DefaultSeedPassword),
	}

	if cfg.DBURL == "" {
		cfg.DBURL = buildDBURL(&e)
	}

	if cfg.JWTSecret == "" {
		e.errs = append(e.errs, ErrMissingJWTSecret)
	}
	if cfg.SeedUsers {
		if err := cfg.CheckSeedPassword(); err != nil {
			e.errs = append(e.errs, err)
		}
	}
	if cfg.Store != StorePostgres && cfg.Store != StoreMemory {
		e.errs = append(e.errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store))
	}

	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(e.errs...))
	}
	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

// CheckSeedPassword refuses to seed prod accounts with the well-known default.
func (c Config) CheckSeedPassword() error {
	if c.IsProd() && c.SeedPassword == DefaultSeedPassword {
		return ErrDefaultSeedPassword
	}
	return nil
}

func buildDBURL(e *env) string {
	host := e.getString("DB_HOST", "127.0.0.1")
	port := e.getString("DB_PORT", "5432")
	user := e.getString("DB_USER", "staffauth")
	pass := e.getString("DB_PASSWORD", "staffauth")
	name := e.getString("DB_NAME", "staffauth")
	ssl := e.getString("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds work done on behalf of a request.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, duration)
}

type env struct {
	get  func(string) string
	errs []error
}

func (e *env) getString(key, fallback string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) getInt(key string, fallback int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return fallback
	}
	num, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return num
}

func (e *env) getBool(key string, fallback bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func (e *env) getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func (e *env) getList(key string) []string {
	var out []string
	for _, part := range strings.Split(e.get(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
