package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/savvy-farm/business/blockchain/domain"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/circuitbreaker"
	"github.com/fd1az/savvy-farm/internal/logger"
)

// ErrSubscriberClosed is returned by Subscribe after Close.
var ErrSubscriberClosed = errors.New("subscriber is closed")

// SubscriberConfig holds configuration for the block subscriber.
type SubscriberConfig struct {
	WSURL          string        // WebSocket endpoint (primary, optional)
	HTTPURL        string        // HTTP endpoint (fallback)
	PollInterval   time.Duration // Polling interval for HTTP fallback
	InitialBackoff time.Duration // First WS reconnect delay
	MaxBackoff     time.Duration // Reconnect delay ceiling
	MaxReconnects  int           // Consecutive WS reconnect attempts before giving up, 0 = unlimited
	BufferSize     int           // Block channel buffer size
	Dialer         Dialer
}

// DefaultSubscriberConfig returns defaults tuned for BSC's 3s blocks.
func DefaultSubscriberConfig(wsURL, httpURL string) SubscriberConfig {
	return SubscriberConfig{
		WSURL:          wsURL,
		HTTPURL:        httpURL,
		PollInterval:   3 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  10,
		BufferSize:     16,
		Dialer:         DialEthClient,
	}
}

type subscriberMetrics struct {
	blocksReceived   metric.Int64Counter
	subscribeErrors  metric.Int64Counter
	connectionState  metric.Int64Gauge
	blockLatency     metric.Float64Histogram
	httpFallbackUsed metric.Int64Counter
}

// Subscriber implements BlockSubscriber.
// WebSocket head subscriptions are primary; HTTP polling covers gaps while
// the socket is down or absent.
type Subscriber struct {
	config SubscriberConfig
	logger logger.LoggerInterface

	wsClient   NodeClient
	httpClient NodeClient
	clientMu   sync.RWMutex

	state      domain.ConnectionState
	stateMu    sync.RWMutex
	usingHTTP  atomic.Bool
	lastBlock  atomic.Uint64
	reconnects atomic.Int32
	subscribed atomic.Bool

	blocks  chan *domain.Block
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  atomic.Bool

	httpCB *circuitbreaker.CircuitBreaker[*types.Header]

	tracer  trace.Tracer
	metrics *subscriberMetrics
}

// NewSubscriber creates a new block subscriber.
func NewSubscriber(cfg SubscriberConfig, log logger.LoggerInterface) (*Subscriber, error) {
	if cfg.Dialer == nil {
		cfg.Dialer = DialEthClient
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	s := &Subscriber{
		config: cfg,
		logger: log,
		state:  domain.StateDisconnected,
		blocks: make(chan *domain.Block, cfg.BufferSize),
		tracer: otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	httpCfg := circuitbreaker.DefaultConfig("chain-http")
	httpCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		s.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	s.httpCB = circuitbreaker.New[*types.Header](httpCfg)

	return s, nil
}

func (s *Subscriber) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &subscriberMetrics{}

	s.metrics.blocksReceived, err = meter.Int64Counter(
		"chain_blocks_received_total",
		metric.WithDescription("Total blocks received"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return err
	}

	s.metrics.subscribeErrors, err = meter.Int64Counter(
		"chain_subscribe_errors_total",
		metric.WithDescription("Total head subscription errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"chain_connection_state",
		metric.WithDescription("Node connection state (0=disconnected, 1=connecting, 2=connected, 3=reconnecting)"),
		metric.WithUnit("{state}"),
	)
	if err != nil {
		return err
	}

	s.metrics.blockLatency, err = meter.Float64Histogram(
		"chain_block_latency_ms",
		metric.WithDescription("Latency from block timestamp to receipt"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.httpFallbackUsed, err = meter.Int64Counter(
		"chain_http_fallback_total",
		metric.WithDescription("Times HTTP polling took over from the socket"),
		metric.WithUnit("{fallback}"),
	)
	return err
}

// Subscribe dials the node and starts emitting new heads. Calling it again
// returns the same channel.
func (s *Subscriber) Subscribe(ctx context.Context) (<-chan *domain.Block, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	ctx, span := s.tracer.Start(ctx, "chain.subscribe",
		trace.WithAttributes(
			attribute.String("ws_url", s.config.WSURL),
			attribute.String("http_url", s.config.HTTPURL),
		),
	)
	defer span.End()

	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		cancel()
		span.RecordError(ErrSubscriberClosed)
		return nil, ErrSubscriberClosed
	}
	if s.subscribed.Load() {
		cancel()
		return s.blocks, nil
	}

	s.setState(ctx, domain.StateConnecting)

	httpErr := s.connectHTTP(ctx)
	wsErr := errors.New("no websocket endpoint")
	if s.config.WSURL != "" {
		wsErr = s.connectWS(ctx)
	}

	if httpErr != nil && wsErr != nil {
		cancel()
		s.setState(ctx, domain.StateDisconnected)
		err := apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithCause(errors.Join(httpErr, wsErr)),
			apperror.WithContext("no reachable node endpoint"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return nil, err
	}

	s.cancel = cancel
	s.subscribed.Store(true)

	if wsErr != nil {
		s.logger.Warn(ctx, "websocket unavailable, polling over http", "error", wsErr)
		s.usingHTTP.Store(true)
		s.metrics.httpFallbackUsed.Add(ctx, 1)
	}
	if httpErr != nil {
		s.logger.Warn(ctx, "http endpoint unavailable, relying on websocket", "error", httpErr)
	} else {
		s.spawn(func() { s.runHTTPPoller(runCtx) })
	}
	if s.config.WSURL != "" {
		s.spawn(func() { s.runWS(runCtx) })
	}

	s.setState(ctx, domain.StateConnected)
	span.SetStatus(codes.Ok, "subscribed")

	return s.blocks, nil
}

func (s *Subscriber) spawn(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Subscriber) connectWS(ctx context.Context) error {
	client, err := s.config.Dialer(ctx, s.config.WSURL)
	if err != nil {
		return err
	}

	s.clientMu.Lock()
	s.wsClient = client
	s.clientMu.Unlock()

	s.logger.Info(ctx, "websocket connected", "url", s.config.WSURL)
	return nil
}

func (s *Subscriber) connectHTTP(ctx context.Context) error {
	if s.config.HTTPURL == "" {
		return errors.New("no http endpoint")
	}

	client, err := s.config.Dialer(ctx, s.config.HTTPURL)
	if err != nil {
		return err
	}

	s.clientMu.Lock()
	s.httpClient = client
	s.clientMu.Unlock()

	return nil
}

func (s *Subscriber) dropWS() {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
}

// runWS keeps a head subscription alive, reconnecting with exponential
// backoff. HTTP polling serves blocks whenever the socket is down.
func (s *Subscriber) runWS(ctx context.Context) {
	attempt := 0

	for ctx.Err() == nil {
		s.clientMu.RLock()
		client := s.wsClient
		s.clientMu.RUnlock()

		if client == nil {
			if !s.reconnectWS(ctx, &attempt) {
				return
			}
			continue
		}

		headers := make(chan *types.Header, s.config.BufferSize)
		sub, err := client.SubscribeNewHead(ctx, headers)
		if err != nil {
			s.metrics.subscribeErrors.Add(ctx, 1)
			s.logger.Warn(ctx, "head subscription failed", "error", err)
			s.fallBackToHTTP(ctx)
			s.dropWS()
			continue
		}

		attempt = 0
		s.usingHTTP.Store(false)
		s.setState(ctx, domain.StateConnected)

		err = s.consumeHeads(ctx, headers, sub)
		sub.Unsubscribe()
		if ctx.Err() != nil {
			return
		}

		s.metrics.subscribeErrors.Add(ctx, 1)
		s.logger.Warn(ctx, "head subscription dropped", "error", err)
		s.fallBackToHTTP(ctx)
		s.dropWS()
	}
}

func (s *Subscriber) fallBackToHTTP(ctx context.Context) {
	if !s.usingHTTP.Swap(true) {
		s.metrics.httpFallbackUsed.Add(ctx, 1)
	}
}

// reconnectWS waits out the backoff for the current attempt and redials.
// It returns false once ctx is done or attempts are exhausted.
func (s *Subscriber) reconnectWS(ctx context.Context, attempt *int) bool {
	*attempt++
	if s.config.MaxReconnects > 0 && *attempt > s.config.MaxReconnects {
		s.logger.Error(ctx, "websocket reconnect attempts exhausted, staying on http",
			"attempts", *attempt-1)
		return false
	}

	s.setState(ctx, domain.StateReconnecting)
	s.reconnects.Add(1)

	delay := backoff(s.config.InitialBackoff, s.config.MaxBackoff, *attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}

	if err := s.connectWS(ctx); err != nil {
		s.logger.Warn(ctx, "websocket reconnect failed", "attempt", *attempt, "error", err)
	}
	return ctx.Err() == nil
}

// backoff doubles initial per attempt, capped at ceiling.
func backoff(initial, ceiling time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return d
}

func (s *Subscriber) consumeHeads(ctx context.Context, headers <-chan *types.Header, sub ethereum.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			if err == nil {
				err = errors.New("subscription closed")
			}
			return err
		case header, ok := <-headers:
			if !ok {
				return errors.New("header channel closed")
			}
			s.processHeader(ctx, header, "ws")
		}
	}
}

// runHTTPPoller polls the head while the socket is not serving blocks.
func (s *Subscriber) runHTTPPoller(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	if s.usingHTTP.Load() {
		s.pollLatestBlock(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.usingHTTP.Load() {
				s.pollLatestBlock(ctx)
			}
		}
	}
}

func (s *Subscriber) pollLatestBlock(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "chain.poll_block")
	defer span.End()

	header, err := s.fetchHeader(ctx, nil)
	if err != nil {
		if ctx.Err() == nil {
			span.RecordError(err)
			s.logger.Warn(ctx, "block poll failed", "error", err)
		}
		return
	}

	s.processHeader(ctx, header, "http")
}

func (s *Subscriber) fetchHeader(ctx context.Context, number *big.Int) (*types.Header, error) {
	s.clientMu.RLock()
	client := s.httpClient
	if client == nil {
		client = s.wsClient
	}
	s.clientMu.RUnlock()

	if client == nil {
		return nil, apperror.New(apperror.CodeChainConnectionFailed,
			apperror.WithContext("no node client"))
	}

	return s.httpCB.Execute(func() (*types.Header, error) {
		return client.HeaderByNumber(ctx, number)
	})
}

// processHeader emits header as a block unless it is not newer than the last
// one emitted.
func (s *Subscriber) processHeader(ctx context.Context, header *types.Header, source string) {
	if header == nil || header.Number == nil {
		return
	}

	number := header.Number.Uint64()
	for {
		last := s.lastBlock.Load()
		if number <= last {
			return
		}
		if s.lastBlock.CompareAndSwap(last, number) {
			break
		}
	}

	block := headerToBlock(header)

	latency := time.Since(block.Timestamp).Milliseconds()
	attrs := metric.WithAttributes(attribute.String("source", source))
	s.metrics.blocksReceived.Add(ctx, 1, attrs)
	s.metrics.blockLatency.Record(ctx, float64(latency), attrs)

	select {
	case s.blocks <- block:
	case <-ctx.Done():
	default:
		s.logger.Warn(ctx, "block channel full, dropping block", "block", number)
	}
}

func headerToBlock(h *types.Header) *domain.Block {
	return &domain.Block{
		Number:    h.Number.Uint64(),
		Hash:      h.Hash(),
		Timestamp: time.Unix(int64(h.Time), 0),
		BaseFee:   h.BaseFee,
	}
}

// LatestBlock retrieves the current head.
func (s *Subscriber) LatestBlock(ctx context.Context) (*domain.Block, error) {
	ctx, span := s.tracer.Start(ctx, "chain.latest_block")
	defer span.End()

	if !s.hasClient() {
		if err := s.connectHTTP(ctx); err != nil {
			span.RecordError(err)
			return nil, apperror.New(apperror.CodeChainConnectionFailed, apperror.WithCause(err))
		}
	}

	header, err := s.fetchHeader(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if apperror.IsAppError(err) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get latest block"))
	}

	span.SetAttributes(attribute.Int64("block", header.Number.Int64()))
	return headerToBlock(header), nil
}

// ChainID returns the chain id reported by the node.
func (s *Subscriber) ChainID(ctx context.Context) (*big.Int, error) {
	if !s.hasClient() {
		if err := s.connectHTTP(ctx); err != nil {
			return nil, apperror.New(apperror.CodeChainConnectionFailed, apperror.WithCause(err))
		}
	}

	s.clientMu.RLock()
	client := s.httpClient
	if client == nil {
		client = s.wsClient
	}
	s.clientMu.RUnlock()

	id, err := client.ChainID(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get chain id"))
	}
	return id, nil
}

func (s *Subscriber) hasClient() bool {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return s.httpClient != nil || s.wsClient != nil
}

// State returns the current connection state.
func (s *Subscriber) State() domain.ConnectionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Status returns detailed connection status.
func (s *Subscriber) Status() domain.ConnectionStatus {
	return domain.ConnectionStatus{
		State:      s.State(),
		LastBlock:  s.lastBlock.Load(),
		LastUpdate: time.Now(),
		Reconnects: int(s.reconnects.Load()),
		UsingHTTP:  s.usingHTTP.Load(),
	}
}

func (s *Subscriber) setState(ctx context.Context, state domain.ConnectionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	var v int64
	switch state {
	case domain.StateConnecting:
		v = 1
	case domain.StateConnected:
		v = 2
	case domain.StateReconnecting:
		v = 3
	}
	s.metrics.connectionState.Record(ctx, v)
}

// Close stops all goroutines, then closes the block channel and clients.
func (s *Subscriber) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	close(s.blocks)

	s.clientMu.Lock()
	if s.wsClient != nil {
		s.wsClient.Close()
		s.wsClient = nil
	}
	if s.httpClient != nil {
		s.httpClient.Close()
		s.httpClient = nil
	}
	s.clientMu.Unlock()

	s.setState(context.Background(), domain.StateDisconnected)
	return nil
}
