package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/closet/internal/api"
	"github.com/erazemk/closet/internal/auth"
	"github.com/erazemk/closet/internal/cache"
	"github.com/erazemk/closet/internal/config"
	"github.com/erazemk/closet/internal/db"
	"github.com/erazemk/closet/internal/inventory"
	"github.com/erazemk/closet/internal/referral"
	"github.com/erazemk/closet/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. If logPath is non-empty, all
// levels are also written to that file. The returned cleanup may be nil.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	database, err := db.Connect(cfg.Dialect, cfg.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(database, cfg.Dialect); err != nil {
		database.Close()
		return fmt.Errorf("migrating database: %w", err)
	}

	st := store.New(database, cfg.Dialect)
	defer st.Close()

	slog.Info("database ready", "driver", string(cfg.Dialect))

	adminHash, err := adminSecretHash(ctx, cfg, st)
	if err != nil {
		return err
	}

	jwtSecret, err := st.GetJWTSecret(ctx)
	if err != nil {
		return fmt.Errorf("getting jwt secret: %w", err)
	}

	var items inventory.Store = st
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		items = cache.NewListingCache(st, rdb, cfg.CacheTTL)
		slog.Info("listing cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}

	router := api.NewRouter(api.Deps{
		Items:           inventory.NewService(items),
		Referrals:       referral.NewService(st),
		Tokens:          st,
		JWTSecret:       jwtSecret,
		AdminSecretHash: adminHash,
		PaymentHandle:   cfg.PaymentHandle,
		Ping:            st.Ping,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// adminSecretHash resolves the admin secret hash. A plaintext secret from the
// environment wins, then a configured hash, then the stored one. On first run
// with none of these a secret is generated, stored and printed once.
func adminSecretHash(ctx context.Context, cfg *config.Config, st *store.Store) (string, error) {
	switch {
	case cfg.AdminSecret != "":
		return auth.HashSecret(cfg.AdminSecret, bcrypt.DefaultCost)
	case cfg.AdminSecretHash != "":
		return cfg.AdminSecretHash, nil
	}

	hash, ok, err := st.GetSetting(ctx, store.SettingAdminSecretHash)
	if err != nil {
		return "", fmt.Errorf("loading admin secret: %w", err)
	}
	if ok {
		return hash, nil
	}

	secret, err := auth.GenerateSecret(20)
	if err != nil {
		return "", fmt.Errorf("generating admin secret: %w", err)
	}
	candidate, err := auth.HashSecret(secret, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	stored, err := st.EnsureSetting(ctx, store.SettingAdminSecretHash, candidate)
	if err != nil {
		return "", fmt.Errorf("storing admin secret: %w", err)
	}
	if stored == candidate {
		printAdminSecret(secret)
	}
	return stored, nil
}

// printAdminSecret prints a freshly generated admin secret to stdout.
func printAdminSecret(secret string) {
	fmt.Println("Admin secret generated:")
	fmt.Printf("  %s\n", secret)
	fmt.Println()
	fmt.Println("Save this secret, it cannot be recovered.")
	fmt.Println("Set ADMIN_SECRET to replace it.")
	fmt.Println()
}
