package app

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/savvy-farm/business/pricing/domain"
	"github.com/fd1az/savvy-farm/internal/logger"
)

// Oracle resolves token prices, degrading to zero on failure.
type Oracle struct {
	source PriceSource
	logger logger.LoggerInterface
	now    func() time.Time
}

// NewOracle creates an Oracle over source.
func NewOracle(source PriceSource, log logger.LoggerInterface) *Oracle {
	return &Oracle{source: source, logger: log, now: time.Now}
}

// GetPrice returns the token's price, or 0 when it cannot be fetched.
func (o *Oracle) GetPrice(ctx context.Context, token common.Address) float64 {
	return o.lookup(ctx, token).Price
}

// FetchPrices looks up every token on its own goroutine and calls fn as each
// resolves, in no particular order. fn may run concurrently. The returned
// channel closes once every lookup has reported.
func (o *Oracle) FetchPrices(ctx context.Context, tokens []common.Address, fn func(domain.TokenPrice)) <-chan struct{} {
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(len(tokens))
	for _, token := range tokens {
		go func(token common.Address) {
			defer wg.Done()
			fn(o.lookup(ctx, token))
		}(token)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	return done
}

func (o *Oracle) lookup(ctx context.Context, token common.Address) domain.TokenPrice {
	price, err := o.source.FetchPrice(ctx, token)
	if err != nil {
		o.logger.Warn(ctx, "price unavailable, using zero", "token", token.Hex(), "error", err)
		price = 0
	}
	return domain.TokenPrice{
		Address:   token,
		Price:     price,
		Err:       err,
		FetchedAt: o.now(),
	}
}
