package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration, read from GRC_* variables.
type Config struct {
	Server  Server
	Storage Storage
	Redis   RedisConfig
	Kafka   KafkaConfig
	Blob    BlobConfig
	Auth    AuthConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr       string
	LogLevel   string
	AdminToken string
	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool
}

// Storage selects where committed state is persisted.
type Storage struct {
	// Driver is one of memory, postgres or sqlite.
	Driver string
	// DatabaseDriver is the database/sql driver for postgres: pgx or postgres (lib/pq).
	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string
}

// RedisConfig configures the optional session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
}

// BlobConfig configures where export artifacts are written.
type BlobConfig struct {
	// Driver is memory or s3.
	Driver     string
	Bucket     string
	Region     string
	Endpoint   string
	Prefix     string
	PathStyle  bool
	PresignTTL time.Duration
}

// AuthConfig configures sessions and password login throttling.
type AuthConfig struct {
	JWTSigningKey    string
	SessionTTL       time.Duration
	DefaultUserEmail string
	DevLogin         bool
	LoginAttempts    int
	LoginWindow      time.Duration
	LoginLockout     time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:          get("GRC_ADDR", ":8080"),
			LogLevel:      get("GRC_LOG_LEVEL", "info"),
			AdminToken:    get("GRC_ADMIN_TOKEN", ""),
			SecureCookies: strings.EqualFold(get("GRC_SECURE_COOKIES", "false"), "true"),
		},
		Storage: Storage{
			Driver:         strings.ToLower(get("GRC_STORAGE_DRIVER", "memory")),
			DatabaseDriver: strings.ToLower(get("GRC_DATABASE_DRIVER", "pgx")),
			DatabaseURL:    get("GRC_DATABASE_URL", ""),
			SQLitePath:     get("GRC_SQLITE_PATH", "grc.db"),
		},
		Redis: RedisConfig{
			URL:          get("GRC_REDIS_URL", ""),
			PoolSize:     integer("GRC_REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("GRC_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("GRC_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("GRC_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("GRC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			AuditTopic:    get("GRC_KAFKA_AUDIT_TOPIC", "grc.audit"),
			RelayInterval: duration("GRC_KAFKA_RELAY_INTERVAL", time.Second),
		},
		Blob: BlobConfig{
			Driver:     strings.ToLower(get("GRC_BLOB_DRIVER", "memory")),
			Bucket:     get("GRC_BLOB_S3_BUCKET", ""),
			Region:     get("GRC_BLOB_S3_REGION", "us-east-1"),
			Endpoint:   get("GRC_BLOB_S3_ENDPOINT", ""),
			Prefix:     get("GRC_BLOB_S3_PREFIX", "exports/"),
			PathStyle:  strings.EqualFold(get("GRC_BLOB_S3_PATH_STYLE", "false"), "true"),
			PresignTTL: duration("GRC_BLOB_PRESIGN_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			// Development default; override in any shared environment.
			JWTSigningKey:    get("GRC_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			SessionTTL:       duration("GRC_SESSION_TTL", 12*time.Hour),
			DefaultUserEmail: get("GRC_DEFAULT_USER_EMAIL", "user@example.com"),
			DevLogin:         get("GRC_DEV_LOGIN", "true") == "true",
			LoginAttempts:    integer("GRC_LOGIN_ATTEMPTS", 5),
			LoginWindow:      duration("GRC_LOGIN_WINDOW", 15*time.Minute),
			LoginLockout:     duration("GRC_LOGIN_LOCKOUT", 15*time.Minute),
		},
	}
	if brokers := get("GRC_KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}

	switch cfg.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if cfg.Storage.DatabaseURL == "" {
			errs = append(errs, "GRC_DATABASE_URL is required for the postgres storage driver")
		}
		if cfg.Storage.DatabaseDriver != "pgx" && cfg.Storage.DatabaseDriver != "postgres" {
			errs = append(errs, fmt.Sprintf("GRC_DATABASE_DRIVER: unsupported driver %q", cfg.Storage.DatabaseDriver))
		}
	default:
		errs = append(errs, fmt.Sprintf("GRC_STORAGE_DRIVER: unsupported driver %q", cfg.Storage.Driver))
	}
	switch cfg.Blob.Driver {
	case "memory":
	case "s3":
		if cfg.Blob.Bucket == "" {
			errs = append(errs, "GRC_BLOB_S3_BUCKET is required for the s3 blob driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("GRC_BLOB_DRIVER: unsupported driver %q", cfg.Blob.Driver))
	}
	if cfg.Auth.LoginAttempts < 1 {
		errs = append(errs, "GRC_LOGIN_ATTEMPTS must be at least 1")
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Storage.Driver != "postgres" {
		errs = append(errs, "GRC_KAFKA_BROKERS requires the postgres storage driver (outbox)")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}
