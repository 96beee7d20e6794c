// Package telemetry wires OpenTelemetry tracing for stepviz.
//
// Packages call otel.Tracer directly. Until Init installs a provider the
// global no-op tracer is used, so spans cost nothing in normal runs.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the span exporter.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Stdout exports spans as pretty JSON. When false Init is a no-op.
	Stdout bool

	// Writer overrides the stdout exporter destination.
	Writer io.Writer
}

// Init installs the global tracer provider. The returned shutdown flushes
// pending spans and is always non-nil.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }
	if ctx == nil {
		return noop, errors.New("telemetry: nil context")
	}
	if !cfg.Stdout {
		return noop, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return noop, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
