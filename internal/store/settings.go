package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"

	"github.com/erazemk/closet/internal/model"
)

// Setting keys.
const (
	SettingJWTSecret       = "jwt_secret"
	SettingAdminSecretHash = "admin_secret_hash"
)

// GetSetting returns a setting's value and whether it exists.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT value FROM settings WHERE key = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, model.Storage("getting setting", err)
	}
	return value, true, nil
}

// EnsureSetting stores candidate under key unless a value already exists,
// then returns whichever value is stored. Insert-then-read avoids a TOCTOU
// race between concurrently starting processes.
func (s *Store) EnsureSetting(ctx context.Context, key, candidate string) (string, error) {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`),
		key, candidate,
	)
	if err != nil {
		return "", model.Storage("storing setting", err)
	}

	value, _, err := s.GetSetting(ctx, key)
	return value, err
}

// GetJWTSecret retrieves the token signing secret, generating and storing
// one on first use.
func (s *Store) GetJWTSecret(ctx context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", model.Storage("generating jwt secret", err)
	}
	return s.EnsureSetting(ctx, SettingJWTSecret, hex.EncodeToString(buf))
}
