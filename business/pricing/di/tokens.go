// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/fd1az/savvy-farm/business/pricing/app"
	"github.com/fd1az/savvy-farm/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Oracle = di.NewToken[*app.Oracle]("pricing.Oracle")
)

// Private dependency tokens - internal to pricing module
var (
	PriceSource = di.NewToken[app.PriceSource]("pricing:priceSource")
)

func GetOracle(c di.ServiceRegistry) *app.Oracle {
	return di.GetToken(c, Oracle)
}

func GetPriceSource(c di.ServiceRegistry) app.PriceSource {
	return di.GetToken(c, PriceSource)
}
