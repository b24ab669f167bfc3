package store

import (
	"context"
	"time"

	"github.com/erazemk/closet/internal/model"
)

// RevokeToken adds a token's JTI to the revocation list.
func (s *Store) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES (?, ?) ON CONFLICT (jti) DO NOTHING`),
		jti, expiresAt.UTC(),
	)
	if err != nil {
		return model.Storage("revoking token", err)
	}

	// Opportunistically clean up expired revocations.
	_, _ = s.db.ExecContext(ctx, s.q(
		`DELETE FROM revoked_tokens WHERE expires_at < ?`), s.Now(),
	)

	return nil
}

// IsTokenRevoked checks if a token's JTI has been revoked.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM revoked_tokens WHERE jti = ?`), jti,
	).Scan(&count)
	if err != nil {
		return false, model.Storage("checking token revocation", err)
	}
	return count > 0, nil
}
