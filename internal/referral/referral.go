// Package referral is the referral ledger: buyers register codes, redeem
// other buyers' codes once each, and earn one discount per redeemed code.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/erazemk/closet/internal/model"
)

// MaxCodeLength bounds referral codes.
const MaxCodeLength = 64

// Issued codes are CodePrefix followed by issuedCodeLength random characters.
const (
	CodePrefix       = "REF"
	issuedCodeLength = 8
	issueAttempts    = 5
)

// ErrCodeSpaceExhausted is returned when Issue keeps drawing taken codes.
var ErrCodeSpaceExhausted = errors.New("could not issue an unused referral code")

// Store persists referral codes and their usage. RecordUsage must leave at
// most one row per (userCode, usedCode) pair no matter how many callers race.
type Store interface {
	RegisterCode(ctx context.Context, code string) (bool, error)
	IsCodeActive(ctx context.Context, code string) (bool, error)
	RecordUsage(ctx context.Context, userCode, usedCode string) error
	CountUsages(ctx context.Context, userCode string) (int, error)
	ListUsages(ctx context.Context, userCode string) ([]model.ReferralUsage, error)
}

// Service implements the referral ledger on top of a Store.
type Service struct {
	store Store
}

// NewService returns a Service backed by store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Register adds code as an active referral code. Registering an existing
// code succeeds without changing it.
func (s *Service) Register(ctx context.Context, code string) error {
	if err := checkCode("code", code); err != nil {
		return err
	}
	_, err := s.store.RegisterCode(ctx, code)
	return err
}

// Issue generates a fresh code, registers it and returns it.
func (s *Service) Issue(ctx context.Context) (string, error) {
	for range issueAttempts {
		code, err := generateCode()
		if err != nil {
			return "", fmt.Errorf("generating referral code: %w", err)
		}

		created, err := s.store.RegisterCode(ctx, code)
		if err != nil {
			return "", err
		}
		if created {
			slog.Info("referral code issued", "code", code)
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Validate reports whether code is a known, active referral code.
func (s *Service) Validate(ctx context.Context, code string) (bool, error) {
	if code == "" || len(code) > MaxCodeLength {
		return false, nil
	}
	return s.store.IsCodeActive(ctx, code)
}

// Use redeems usedCode on behalf of userCode. It fails with
// model.ErrInvalidCode if usedCode is unknown or inactive and with
// model.ErrAlreadyUsed if the pair was redeemed before.
//
// Redeeming one's own code is allowed.
func (s *Service) Use(ctx context.Context, userCode, usedCode string) error {
	if err := checkCode("userCode", userCode); err != nil {
		return err
	}
	if err := checkCode("usedCode", usedCode); err != nil {
		return err
	}

	err := s.store.RecordUsage(ctx, userCode, usedCode)
	switch {
	case err == nil:
		slog.Info("referral code redeemed", "user", userCode, "code", usedCode)
	case errors.Is(err, model.ErrInvalidCode), errors.Is(err, model.ErrAlreadyUsed):
		slog.Info("referral code rejected", "user", userCode, "code", usedCode, "reason", err)
	}
	return err
}

// DiscountCount returns the number of distinct codes userCode redeemed.
func (s *Service) DiscountCount(ctx context.Context, userCode string) (int, error) {
	if userCode == "" {
		return 0, nil
	}
	return s.store.CountUsages(ctx, userCode)
}

// Usages lists the codes userCode redeemed, oldest first.
func (s *Service) Usages(ctx context.Context, userCode string) ([]model.ReferralUsage, error) {
	if userCode == "" {
		return []model.ReferralUsage{}, nil
	}
	return s.store.ListUsages(ctx, userCode)
}

func generateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, issuedCodeLength)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return CodePrefix + string(result), nil
}

func checkCode(field, code string) error {
	if code == "" {
		return model.Invalid(field, "required")
	}
	if len(code) > MaxCodeLength {
		return model.Invalid(field, "too long")
	}
	return nil
}
