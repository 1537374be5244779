// Package domain contains the price records produced by the pricing context.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenPrice is the outcome of one price lookup. Price is 0 when Err is set.
type TokenPrice struct {
	Address   common.Address
	Price     float64
	Err       error
	FetchedAt time.Time
}

// Known reports whether a usable price was resolved.
func (p TokenPrice) Known() bool {
	return p.Err == nil && p.Price > 0
}
