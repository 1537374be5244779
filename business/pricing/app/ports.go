// Package app contains the price oracle and its source port.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// PriceSource fetches a spot price for one token.
type PriceSource interface {
	FetchPrice(ctx context.Context, token common.Address) (float64, error)
}
