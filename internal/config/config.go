// Package config loads server settings from flags, the environment and an
// optional .env file. Flags win over the environment, which wins over the
// built-in defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/closet/internal/db"
)

// Config holds the server settings.
type Config struct {
	Dialect db.Dialect
	DSN     string
	Addr    string
	LogPath string

	// AdminSecret is the plaintext shared admin secret. AdminSecretHash is a
	// bcrypt hash of it; when both are empty a secret is generated on first
	// run and its hash stored in the database.
	AdminSecret     string
	AdminSecretHash string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	PaymentHandle string
}

// Usage is printed for -h.
const Usage = `Usage: closet [flags]

Flags:
  -d, -db <dsn>           database file or DSN (env DB_DSN, default: closet.sqlite3)
      -driver <name>      sqlite or postgres (env DB_DRIVER, default: sqlite)
  -a, -addr <host:port>   listen address (env ADDR, default: :8080)
  -l, -log <path>         log file path (env LOG_FILE, default: stdout/stderr only)
      -redis <host:port>  cache the item listing in Redis (env REDIS_ADDR)
      -cache-ttl <dur>    listing cache lifetime (env CACHE_TTL, default: 30s)
      -payment <handle>   payment handle shown at checkout (env PAYMENT_HANDLE)
  -h, -help               show this help and exit

Environment only:
  ADMIN_SECRET, ADMIN_SECRET_HASH, REDIS_PASSWORD, REDIS_DB, ENV_FILE
`

// LoadEnvFile loads variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load parses args on top of the environment.
func Load(args []string, output io.Writer) (*Config, error) {
	envFile := getenv("ENV_FILE", ".env")
	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	flags := flag.NewFlagSet("closet", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.Usage = func() { fmt.Fprint(output, Usage) }

	var driver string
	flags.StringVar(&driver, "driver", getenv("DB_DRIVER", "sqlite"), "")

	var dsn string
	flags.StringVar(&dsn, "db", getenv("DB_DSN", "closet.sqlite3"), "")
	flags.StringVar(&dsn, "d", getenv("DB_DSN", "closet.sqlite3"), "")

	var addr string
	flags.StringVar(&addr, "addr", getenv("ADDR", ":8080"), "")
	flags.StringVar(&addr, "a", getenv("ADDR", ":8080"), "")

	var logPath string
	flags.StringVar(&logPath, "log", getenv("LOG_FILE", ""), "")
	flags.StringVar(&logPath, "l", getenv("LOG_FILE", ""), "")

	var redisAddr string
	flags.StringVar(&redisAddr, "redis", getenv("REDIS_ADDR", ""), "")

	ttl, err := time.ParseDuration(getenv("CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	flags.DurationVar(&ttl, "cache-ttl", ttl, "")

	var payment string
	flags.StringVar(&payment, "payment", getenv("PAYMENT_HANDLE", ""), "")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	dialect, err := db.ParseDialect(driver)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", ttl)
	}

	redisDB, err := strconv.Atoi(getenv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return &Config{
		Dialect:         dialect,
		DSN:             dsn,
		Addr:            addr,
		LogPath:         logPath,
		AdminSecret:     os.Getenv("ADMIN_SECRET"),
		AdminSecretHash: os.Getenv("ADMIN_SECRET_HASH"),
		RedisAddr:       redisAddr,
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		CacheTTL:        ttl,
		PaymentHandle:   payment,
	}, nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
