package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/erazemk/closet/internal/model"
)

// RegisterCode adds an active referral code and reports whether it was new.
// Registering a code that already exists is a no-op.
func (s *Store) RegisterCode(ctx context.Context, code string) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO referral_codes (code, active, created_at) VALUES (?, TRUE, ?)
		 ON CONFLICT (code) DO NOTHING`),
		code, s.Now(),
	)
	if err != nil {
		return false, model.Storage("registering referral code", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, model.Storage("registering referral code", err)
	}
	return n == 1, nil
}

// IsCodeActive reports whether code exists and is active.
func (s *Store) IsCodeActive(ctx context.Context, code string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM referral_codes WHERE code = ? AND active = TRUE`), code,
	).Scan(&count)
	if err != nil {
		return false, model.Storage("validating referral code", err)
	}
	return count > 0, nil
}

// RecordUsage records that userCode redeemed usedCode. The check and the
// insert run in one transaction, and the (user_code, used_code) primary key
// settles concurrent redemptions of the same pair: the loser inserts nothing
// and gets ErrAlreadyUsed.
func (s *Store) RecordUsage(ctx context.Context, userCode, usedCode string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Storage("beginning transaction", err)
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRowContext(ctx, s.q(
		`SELECT active FROM referral_codes WHERE code = ?`), usedCode,
	).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrInvalidCode
	}
	if err != nil {
		return model.Storage("checking referral code", err)
	}
	if !active {
		return model.ErrInvalidCode
	}

	result, err := tx.ExecContext(ctx, s.q(
		`INSERT INTO referral_usage (user_code, used_code, used_at) VALUES (?, ?, ?)
		 ON CONFLICT (user_code, used_code) DO NOTHING`),
		userCode, usedCode, s.Now(),
	)
	if err != nil {
		return model.Storage("recording referral usage", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return model.Storage("recording referral usage", err)
	}
	if n == 0 {
		return model.ErrAlreadyUsed
	}

	if err := tx.Commit(); err != nil {
		return model.Storage("committing referral usage", err)
	}
	return nil
}

// CountUsages returns how many codes userCode has redeemed.
func (s *Store) CountUsages(ctx context.Context, userCode string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT COUNT(*) FROM referral_usage WHERE user_code = ?`), userCode,
	).Scan(&count)
	if err != nil {
		return 0, model.Storage("counting referral usage", err)
	}
	return count, nil
}

// ListUsages returns the codes userCode has redeemed, oldest first.
func (s *Store) ListUsages(ctx context.Context, userCode string) ([]model.ReferralUsage, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT user_code, used_code, used_at FROM referral_usage
		 WHERE user_code = ? ORDER BY used_at, used_code`), userCode,
	)
	if err != nil {
		return nil, model.Storage("listing referral usage", err)
	}
	defer rows.Close()

	usages := []model.ReferralUsage{}
	for rows.Next() {
		var u model.ReferralUsage
		if err := rows.Scan(&u.UserCode, &u.UsedCode, &u.UsedAt); err != nil {
			return nil, model.Storage("scanning referral usage", err)
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Storage("listing referral usage", err)
	}
	return usages, nil
}
