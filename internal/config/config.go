// Package config reads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite3"

	DefaultServerPort      = 5000
	DefaultMongoDatabase   = "quicktask"
	DefaultSQLitePath      = "quicktask.db"
	DefaultJWTTTL          = 24 * time.Hour
	DefaultCacheTTL        = 5 * time.Minute
	DefaultRequestTimeout  = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultRateLimit       = 5
	DefaultRateLimitWindow = 15 * time.Minute

	MinJWTSecretLength = 32
)

type Config struct {
	Store  StoreConfig
	Server ServerConfig
	Auth   AuthConfig
	Cache  CacheConfig
	Log    LogConfig
}

type StoreConfig struct {
	Driver     string
	Postgres   PostgresConfig
	MongoURI   string
	MongoDB    string
	SQLitePath string
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		p.Host, p.User, p.Password, p.DB, p.Port, p.SSLMode)
}

type ServerConfig struct {
	Port            int
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

type AuthConfig struct {
	JWTSecret       string
	JWTTTL          time.Duration
	RateLimit       int
	RateLimitWindow time.Duration
}

// CacheConfig enables the Redis dashboard cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads envFile (a missing file is ignored) and then the process
// environment. Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	var errs []error
	cfg := &Config{
		Store: StoreConfig{
			Driver: getString("STORE_DRIVER", DriverPostgres),
			Postgres: PostgresConfig{
				Host:     os.Getenv("POSTGRES_HOST"),
				Port:     os.Getenv("POSTGRES_PORT"),
				User:     os.Getenv("POSTGRES_USER"),
				Password: os.Getenv("POSTGRES_PASSWORD"),
				DB:       os.Getenv("POSTGRES_DB"),
				SSLMode:  os.Getenv("POSTGRES_SSLMODE"),
			},
			MongoURI:   os.Getenv("MONGODB_URI"),
			MongoDB:    getString("MONGODB_DATABASE", DefaultMongoDatabase),
			SQLitePath: getString("SQLITE_PATH", DefaultSQLitePath),
		},
		Server: ServerConfig{
			Port:            getInt("SERVER_PORT", DefaultServerPort, &errs),
			AllowedOrigins:  getList("ALLOWED_ORIGINS"),
			RequestTimeout:  getDuration("REQUEST_TIMEOUT", DefaultRequestTimeout, &errs),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout, &errs),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			JWTTTL:          getDuration("JWT_TTL", DefaultJWTTTL, &errs),
			RateLimit:       getInt("RATE_LIMIT", DefaultRateLimit, &errs),
			RateLimitWindow: getDuration("RATE_LIMIT_WINDOW", DefaultRateLimitWindow, &errs),
		},
		Cache: CacheConfig{
			RedisAddr: os.Getenv("REDIS_ADDR"),
			TTL:       getDuration("CACHE_TTL", DefaultCacheTTL, &errs),
		},
		Log: LogConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "text"),
		},
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every missing or out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres:
		required := map[string]string{
			"POSTGRES_HOST":     c.Store.Postgres.Host,
			"POSTGRES_PORT":     c.Store.Postgres.Port,
			"POSTGRES_USER":     c.Store.Postgres.User,
			"POSTGRES_PASSWORD": c.Store.Postgres.Password,
			"POSTGRES_DB":       c.Store.Postgres.DB,
			"POSTGRES_SSLMODE":  c.Store.Postgres.SSLMode,
		}
		for _, name := range []string{"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_SSLMODE"} {
			if required[name] == "" {
				errs = append(errs, fmt.Errorf("environment variable %s must be set", name))
			}
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("environment variable MONGODB_URI must be set"))
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("environment variable SQLITE_PATH must be set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver))
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", MinJWTSecretLength))
	}
	if c.Auth.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.Auth.RateLimit <= 0 || c.Auth.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 || c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT and SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_FORMAT %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
