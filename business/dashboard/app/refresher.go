package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	blockchainDomain "github.com/fd1az/savvy-farm/business/blockchain/domain"
	farmApp "github.com/fd1az/savvy-farm/business/farm/app"
	pricingDomain "github.com/fd1az/savvy-farm/business/pricing/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/logger"
)

// ErrRefresherStarted is returned by a second Start.
var ErrRefresherStarted = errors.New("refresher already started")

// RefresherConfig holds refresh loop settings.
type RefresherConfig struct {
	// Timeout bounds one read cycle.
	Timeout time.Duration
	// ReadConcurrency bounds concurrent metadata and staker reads.
	ReadConcurrency int
	// MinSpacing is the minimum time between cycle starts.
	MinSpacing time.Duration
	// SourceName labels the chain connection for reporters.
	SourceName string
}

// DefaultRefresherConfig returns sensible defaults.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Timeout:         20 * time.Second,
		ReadConcurrency: 8,
		MinSpacing:      time.Second,
		SourceName:      "chain",
	}
}

// Refresher runs one read cycle per tick and feeds the results to the
// aggregator. Ticks come from new blocks and from Trigger; ticks arriving
// during a cycle collapse into one.
type Refresher struct {
	gateway    farmApp.Gateway
	prices     PriceFetcher
	blocks     BlockSource
	aggregator *Aggregator
	reporters  []Reporter
	config     RefresherConfig
	logger     logger.LoggerInterface

	trigger chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	last    time.Time
}

// NewRefresher creates a new Refresher.
func NewRefresher(
	gateway farmApp.Gateway,
	prices PriceFetcher,
	blocks BlockSource,
	aggregator *Aggregator,
	config RefresherConfig,
	log logger.LoggerInterface,
	reporters ...Reporter,
) *Refresher {
	if config.ReadConcurrency <= 0 {
		config.ReadConcurrency = DefaultRefresherConfig().ReadConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefresherConfig().Timeout
	}
	if config.SourceName == "" {
		config.SourceName = DefaultRefresherConfig().SourceName
	}
	return &Refresher{
		gateway:    gateway,
		prices:     prices,
		blocks:     blocks,
		aggregator: aggregator,
		reporters:  reporters,
		config:     config,
		logger:     log,
		trigger:    make(chan struct{}, 1),
	}
}

// Start subscribes to new blocks and begins the refresh loop. The first
// cycle runs immediately.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrRefresherStarted
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info(ctx, "starting refresher", "readConcurrency", r.config.ReadConcurrency)

	var blocks <-chan *blockchainDomain.Block
	if r.blocks != nil {
		var err error
		blocks, err = r.blocks.SubscribeBlocks(ctx)
		if err != nil {
			return err
		}
	}

	r.Trigger()

	r.wg.Add(1)
	go r.run(ctx, blocks)

	return nil
}

// Trigger requests a refresh without blocking.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Wait blocks until the loop started by Start has exited.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "refresher stopping", "reason", ctx.Err())
			return
		case block, ok := <-blocks:
			if !ok {
				r.logger.Warn(ctx, "block stream closed, refreshing on demand only")
				blocks = nil
				continue
			}
			if block != nil {
				r.onNewBlock(ctx, block)
			}
		case <-r.trigger:
		}

		if !r.pace(ctx) {
			return
		}
		drain(blocks)
		select {
		case <-r.trigger:
		default:
		}

		if err := r.Refresh(ctx); err != nil {
			r.logger.Debug(ctx, "refresh cycle incomplete", "error", err)
		}
	}
}

func (r *Refresher) onNewBlock(ctx context.Context, block *blockchainDomain.Block) {
	r.logger.Debug(ctx, "processing block", "number", block.Number, "hash", block.Hash.Hex())

	connected := r.blocks.ConnectionState() == blockchainDomain.StateConnected
	latency := time.Duration(0)
	if !block.Timestamp.IsZero() {
		latency = time.Since(block.Timestamp)
	}
	for _, rep := range r.reporters {
		rep.UpdateConnectionStatus(r.config.SourceName, connected, latency)
	}
}

// pace waits out MinSpacing since the previous cycle started.
func (r *Refresher) pace(ctx context.Context) bool {
	r.mu.Lock()
	first := r.last.IsZero()
	wait := r.config.MinSpacing - time.Since(r.last)
	r.mu.Unlock()

	if first || wait <= 0 {
		return true
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func drain(blocks <-chan *blockchainDomain.Block) {
	for {
		select {
		case _, ok := <-blocks:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Refresh runs one read cycle: list the registered tokens, keep the active
// ones, then read metadata, staker data and prices concurrently. Every read
// failure is logged and leaves the previous value in place. The returned
// error is set only when the token list itself could not be read or no
// active check succeeded; the previous snapshot is kept in both cases.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.last = time.Now()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	start := time.Now()

	addrs, err := r.gateway.ListTokenAddresses(ctx)
	if err != nil {
		r.logger.Warn(ctx, "token list unavailable, keeping previous snapshot", "error", err)
		return err
	}

	active, err := r.activeTokens(ctx, addrs)
	if err != nil {
		r.logger.Warn(ctx, "active checks unavailable, keeping previous snapshot", "error", err)
		return err
	}
	gen := r.aggregator.BeginRefresh(active)

	pricesDone := r.prices.FetchPrices(ctx, active, func(p pricingDomain.TokenPrice) {
		r.aggregator.ApplyPrice(gen, p.Address, p.Price)
	})

	staker := r.gateway.Account()

	var g errgroup.Group
	g.SetLimit(r.config.ReadConcurrency)
	for _, addr := range active {
		g.Go(func() error {
			md, err := r.gateway.GetTokenMetadata(ctx, addr)
			if err != nil {
				r.logger.Warn(ctx, "token metadata unavailable", "token", addr.Hex(), "error", err)
				return nil
			}
			r.aggregator.ApplyMetadata(gen, md)
			return nil
		})

		if staker == (common.Address{}) {
			continue
		}
		g.Go(func() error {
			sd, err := r.gateway.GetStakerData(ctx, addr, staker)
			if err != nil {
				r.logger.Warn(ctx, "staker data unavailable", "token", addr.Hex(), "error", err)
				return nil
			}
			r.aggregator.ApplyStakerData(gen, addr, sd)
			return nil
		})
	}
	_ = g.Wait()

	select {
	case <-pricesDone:
	case <-ctx.Done():
	}

	r.logger.Debug(ctx, "refresh completed",
		"generation", gen,
		"tokens", len(active),
		"ready", r.aggregator.Ready(),
		"duration", time.Since(start),
	)
	return nil
}

// activeTokens filters addrs by the batched active check. An address whose
// check failed keeps its place only if it was already tracked. When every
// check failed the batch as a whole is treated as a failed read.
func (r *Refresher) activeTokens(ctx context.Context, addrs []common.Address) ([]common.Address, error) {
	if len(addrs) == 0 {
		return addrs, nil
	}

	results := r.gateway.AreTokensActive(ctx, addrs)
	active := make([]common.Address, 0, len(results))
	var firstErr error
	failed := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			if firstErr == nil {
				firstErr = res.Err
			}
			r.logger.Debug(ctx, "active check failed", "token", res.Address.Hex(), "error", res.Err)
			if r.aggregator.IsTracked(res.Address) {
				active = append(active, res.Address)
			}
		case res.Active:
			active = append(active, res.Address)
		}
	}

	if failed > 0 && failed == len(results) {
		return nil, apperror.New(apperror.CodeContractReadFailed,
			apperror.WithCause(firstErr),
			apperror.WithContext("tokenIsActive"))
	}
	if failed > 0 {
		r.logger.Warn(ctx, "some active checks failed", "failed", failed, "total", len(results))
	}
	return active, nil
}
