package apm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fd1az/savvy-farm/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type Provider string

const (
	ZipkinProvider   Provider = "ZIPKIN_PROVIDER"
	OTLPGRPCProvider Provider = "OTLP_GRPC_PROVIDER"
	OTLPHTTPProvider Provider = "OTLP_HTTP_PROVIDER"
	ConsoleProvider  Provider = "CONSOLE_PROVIDER"
	EmptyProvider    Provider = "EMPTY_PROVIDER"
)

// ParseProvider maps a config value ("zipkin", "otlp-grpc", ...) to a Provider.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zipkin":
		return ZipkinProvider
	case "otlp", "otlp-grpc", "grpc":
		return OTLPGRPCProvider
	case "otlp-http", "http", "http/protobuf":
		return OTLPHTTPProvider
	case "console", "stdout":
		return ConsoleProvider
	default:
		return EmptyProvider
	}
}

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type TracerOptions struct {
	provider    Provider
	serviceName string
	endpoint    string
	headers     map[string]string
}

type TracerOption func(*TracerOptions)

// WithProvider selects the span exporter.
func WithProvider(provider Provider) TracerOption {
	return func(o *TracerOptions) {
		o.provider = provider
	}
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) TracerOption {
	return func(o *TracerOptions) {
		o.serviceName = name
	}
}

// WithEndpoint sets the collector endpoint URL.
func WithEndpoint(url string) TracerOption {
	return func(o *TracerOptions) {
		o.endpoint = url
	}
}

// WithHeaders parses "k1=v1,k2=v2" exporter headers.
func WithHeaders(raw string) TracerOption {
	return func(o *TracerOptions) {
		o.headers = parseHeaders(raw)
	}
}

func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && k != "" {
			headers[k] = v
		}
	}
	return headers
}

func newExporter(opts *TracerOptions) (sdktrace.SpanExporter, error) {
	ctx := context.Background()

	switch opts.provider {
	case ZipkinProvider:
		return zipkin.New(opts.endpoint)
	case OTLPGRPCProvider:
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(opts.endpoint),
			otlptracegrpc.WithHeaders(opts.headers),
		)
	case OTLPHTTPProvider:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(opts.endpoint),
			otlptracehttp.WithHeaders(opts.headers),
		)
	default:
		return nil, fmt.Errorf("apm: no exporter for provider %s", opts.provider)
	}
}

// NewTraceProvider installs the global tracer provider. Failures to build an
// exporter are logged and fall back to the empty provider.
func NewTraceProvider(log logger.LoggerInterface, options ...TracerOption) TraceProvider {
	opts := &TracerOptions{
		provider:    EmptyProvider,
		serviceName: os.Getenv("OTEL_SERVICE_NAME"),
	}

	for _, opt := range options {
		opt(opts)
	}

	switch opts.provider {
	case EmptyProvider:
		return NewEmptyTraceProvider()
	case ConsoleProvider:
		tp, err := NewConsoleTraceProvider(os.Stderr)
		if err != nil {
			log.Error(context.Background(), "console tracer init failed", "error", err)
			return NewEmptyTraceProvider()
		}
		return tp
	}

	exp, err := newExporter(opts)
	if err != nil {
		log.Error(context.Background(), "trace exporter init failed, tracing disabled",
			"provider", opts.provider, "error", err)
		return NewEmptyTraceProvider()
	}

	log.Info(context.Background(), "tracing enabled", "provider", opts.provider, "endpoint", opts.endpoint)

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.provider", string(opts.provider)),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	// Set trace propagator
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	return &traceProvider{
		tp,
	}
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	if err := o.tp.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}
