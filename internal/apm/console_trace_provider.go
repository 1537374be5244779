package apm

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type emptyTraceProvider struct{}

// NewEmptyTraceProvider returns a provider that leaves the global no-op tracer in place.
func NewEmptyTraceProvider() TraceProvider {
	return emptyTraceProvider{}
}

func (emptyTraceProvider) Stop() error {
	return nil
}

type consoleTraceProvider struct {
	tp *sdktrace.TracerProvider
}

// NewConsoleTraceProvider exports spans synchronously as JSON to w.
func NewConsoleTraceProvider(w io.Writer) (TraceProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	// Set global trace provider
	otel.SetTracerProvider(tp)

	return &consoleTraceProvider{tp}, nil
}

func (c *consoleTraceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.tp.Shutdown(ctx)
}
