// Package pancakeswap implements PriceSource over the PancakeSwap info API.
package pancakeswap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/savvy-farm/business/pricing/app"
	"github.com/fd1az/savvy-farm/internal/apperror"
	"github.com/fd1az/savvy-farm/internal/cache"
	"github.com/fd1az/savvy-farm/internal/circuitbreaker"
	"github.com/fd1az/savvy-farm/internal/httpclient"
	"github.com/fd1az/savvy-farm/internal/logger"
	"github.com/fd1az/savvy-farm/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/savvy-farm/business/pricing/infra/pancakeswap"
	meterName  = "github.com/fd1az/savvy-farm/business/pricing/infra/pancakeswap"

	// DefaultBaseURL is the PancakeSwap info API.
	DefaultBaseURL = "https://api.pancakeswap.info/api/v2"

	tokensEndpoint = "tokens/"
)

// ErrPriceUnavailable is returned when the API has no usable price for a token.
var ErrPriceUnavailable = errors.New("pancakeswap: price unavailable")

// Ensure Client implements PriceSource.
var _ app.PriceSource = (*Client)(nil)

// Config holds configuration for the price client.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int           // 0 disables client-side limiting
	CacheTTL          time.Duration // 0 disables caching
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		RequestsPerMinute: 120,
		CacheTTL:          15 * time.Second,
	}
}

type clientMetrics struct {
	lookups     metric.Int64Counter
	failures    metric.Int64Counter
	cacheHits   metric.Int64Counter
	lookupLatMs metric.Float64Histogram
}

// Client fetches token prices from the PancakeSwap API.
type Client struct {
	config  Config
	http    httpclient.Client
	limiter *ratelimit.Limiter
	cache   *cache.Cache[common.Address, float64]
	cb      *circuitbreaker.CircuitBreaker[float64]
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *clientMetrics
}

// tokenResponse is the body of GET /tokens/{address}.
type tokenResponse struct {
	UpdatedAt int64 `json:"updated_at"`
	Data      *struct {
		Name   string           `json:"name"`
		Symbol string           `json:"symbol"`
		Price  json.RawMessage `json:"price"`
	} `json:"data"`
}

type apiError struct {
	Status  int
	Message string `json:"error"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pancakeswap API error %d: %s", e.Status, e.Message)
}

// NewClient creates a new price client.
func NewClient(cfg Config, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	tracer := otel.Tracer(tracerName)

	httpClient, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("pancakeswap"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithTracer(tracer),
		httpclient.WithBodyTracing(true, false),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	c := &Client{
		config:  cfg,
		http:    httpClient,
		limiter: ratelimit.New("pancakeswap", cfg.RequestsPerMinute),
		cache:   cache.New[common.Address, float64](time.Minute),
		logger:  log,
		tracer:  tracer,
	}

	cbCfg := circuitbreaker.DefaultConfig("pancakeswap")
	cbCfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrPriceUnavailable)
	}
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.logger.Info(context.Background(), "circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.cb = circuitbreaker.New[float64](cbCfg)

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.lookups, err = meter.Int64Counter(
		"price_lookups_total",
		metric.WithDescription("Total token price lookups"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	c.metrics.failures, err = meter.Int64Counter(
		"price_lookup_failures_total",
		metric.WithDescription("Token price lookups that fell back to zero"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	c.metrics.cacheHits, err = meter.Int64Counter(
		"price_cache_hits_total",
		metric.WithDescription("Token price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	c.metrics.lookupLatMs, err = meter.Float64Histogram(
		"price_lookup_latency_ms",
		metric.WithDescription("Price API latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// FetchPrice returns the token's USD price.
func (c *Client) FetchPrice(ctx context.Context, token common.Address) (float64, error) {
	ctx, span := c.tracer.Start(ctx, "pancakeswap.fetch_price",
		trace.WithAttributes(attribute.String("token", token.Hex())))
	defer span.End()

	c.metrics.lookups.Add(ctx, 1)

	if price, ok := c.cache.Get(ctx, token); ok {
		c.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return 0, c.fail(ctx, span, token, err)
	}

	start := time.Now()
	price, err := c.cb.Execute(func() (float64, error) {
		return c.request(ctx, token)
	})
	c.metrics.lookupLatMs.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		return 0, c.fail(ctx, span, token, err)
	}

	if c.config.CacheTTL > 0 {
		c.cache.Set(ctx, token, price, c.config.CacheTTL)
	}

	span.SetAttributes(attribute.Float64("price", price))
	span.SetStatus(codes.Ok, "fetched")
	return price, nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, token common.Address, err error) error {
	c.metrics.failures.Add(ctx, 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, "price fetch failed")

	if apperror.GetCode(err) == apperror.CodeCircuitOpen {
		return err
	}
	return apperror.New(apperror.CodePriceFetchFailed,
		apperror.WithCause(err),
		apperror.WithContext(token.Hex()))
}

func (c *Client) request(ctx context.Context, token common.Address) (float64, error) {
	var body tokenResponse
	_, err := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "tokens")),
		httpclient.WithResponseErrorHandler(errorHandler),
	).
		SetResult(&body).
		Get(ctx, tokensEndpoint+token.Hex())
	if err != nil {
		return 0, err
	}

	return parsePrice(body)
}

// parsePrice accepts data.price as a JSON string or number. Absent, blank
// or malformed prices mean the token is unlisted, not that the API is down.
func parsePrice(body tokenResponse) (float64, error) {
	if body.Data == nil || len(body.Data.Price) == 0 || string(body.Data.Price) == "null" {
		return 0, fmt.Errorf("%w: missing data.price", ErrPriceUnavailable)
	}

	raw := string(body.Data.Price)
	var quoted string
	if err := json.Unmarshal(body.Data.Price, &quoted); err == nil {
		raw = strings.TrimSpace(quoted)
	}
	if raw == "" {
		return 0, fmt.Errorf("%w: blank data.price", ErrPriceUnavailable)
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid price %q", ErrPriceUnavailable, raw)
	}
	if price.IsNegative() {
		return 0, fmt.Errorf("%w: negative price %s", ErrPriceUnavailable, price)
	}
	f, _ := price.Float64()
	return f, nil
}

// errorHandler maps API error statuses; 404 means the token is not listed.
func errorHandler(status int, body []byte) error {
	if status < http.StatusBadRequest {
		return nil
	}

	apiErr := &apiError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrPriceUnavailable, apiErr.Error())
	}
	return apiErr
}

// Close stops the cache janitor.
func (c *Client) Close() error {
	c.cache.Close()
	return nil
}
