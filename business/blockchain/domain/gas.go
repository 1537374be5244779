package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// GasPrice is the legacy gas price attached to farm transactions.
type GasPrice struct {
	Wei       *big.Int
	Capped    bool
	FetchedAt time.Time
}

// NewGasPrice copies wei, clamping it to limit when limit is non-nil.
func NewGasPrice(wei, limit *big.Int) *GasPrice {
	p := &GasPrice{Wei: new(big.Int).Set(wei), FetchedAt: time.Now()}
	if limit != nil && p.Wei.Cmp(limit) > 0 {
		p.Wei.Set(limit)
		p.Capped = true
	}
	return p
}

// Gwei returns the price in gwei.
func (p *GasPrice) Gwei() float64 {
	f, _ := decimal.NewFromBigInt(p.Wei, -9).Float64()
	return f
}
