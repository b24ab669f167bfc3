// Package pricing computes referral-discounted prices.
package pricing

import "github.com/shopspring/decimal"

// MinUnit is the smallest amount a price can be charged in. A discounted
// price that falls below it is clamped to zero.
var MinUnit = decimal.New(1, -2)

var half = decimal.New(5, -1)

// Price halves original once per redeemed referral code. Halving is exact in
// decimal arithmetic, so the result never drifts, goes negative or becomes
// NaN; once it drops below MinUnit it is clamped to zero. Negative counts are
// treated as zero and non-positive originals price at zero.
func Price(original decimal.Decimal, discountCount int) decimal.Decimal {
	if original.Sign() <= 0 {
		return decimal.Zero
	}

	p := original
	for range max(discountCount, 0) {
		p = p.Mul(half)
		if p.LessThan(MinUnit) {
			return decimal.Zero
		}
	}
	return p
}

// Quote is the price of one item for one buyer.
type Quote struct {
	Original  decimal.Decimal `json:"original_price"`
	Final     decimal.Decimal `json:"final_price"`
	Discounts int             `json:"discount_count"`
}

// NewQuote prices original for a buyer with discountCount redeemed codes.
func NewQuote(original decimal.Decimal, discountCount int) Quote {
	return Quote{
		Original:  original,
		Final:     Price(original, discountCount),
		Discounts: max(discountCount, 0),
	}
}

// Display formats the final price with two decimal places, as shown to the
// buyer.
func (q Quote) Display() string {
	return q.Final.StringFixed(2)
}
