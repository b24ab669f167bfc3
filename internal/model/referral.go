package model

import "time"

// ReferralUsage records that UserCode redeemed UsedCode. Codes are opaque and
// case-sensitive. A pair is recorded at most once.
type ReferralUsage struct {
	UserCode string    `json:"user_code"`
	UsedCode string    `json:"used_code"`
	UsedAt   time.Time `json:"used_at"`
}
