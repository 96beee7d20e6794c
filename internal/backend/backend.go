// Package backend compiles and runs complete C++ programs.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stepviz/internal/config"
	"stepviz/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrUnavailable means the program never ran: the service could not be
// reached, refused the request or the toolchain is missing. Compile errors and
// non-zero exits are reported through RunResult instead.
var ErrUnavailable = errors.New("execution backend unavailable")

// Backend executes a full program with the given stdin.
type Backend interface {
	Execute(ctx context.Context, source, stdin string) (model.RunResult, error)
}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepviz_backend_requests_total",
		Help: "Backend executions by backend and result",
	}, []string{"backend", "result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stepviz_backend_request_duration_seconds",
		Help:    "Backend execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"backend"})
)

var tracer = otel.Tracer("stepviz.backend")

// New builds the backend selected by cfg.Kind.
func New(cfg config.BackendConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case "piston":
		return Instrument("piston", NewPiston(cfg.PistonURL, cfg.CppVersion,
			WithRateLimit(cfg.RequestsPerSecond),
			WithTimeout(cfg.Timeout),
			WithLogger(logger),
		)), nil
	case "local":
		return Instrument("local", NewLocal(cfg.Compiler, cfg.CompilerFlags, logger)), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
}

// Instrument wraps b with a span and Prometheus accounting under name.
func Instrument(name string, b Backend) Backend {
	return &instrumented{name: name, next: b}
}

type instrumented struct {
	name string
	next Backend
}

func (i *instrumented) Execute(ctx context.Context, source, stdin string) (model.RunResult, error) {
	ctx, span := tracer.Start(ctx, "backend.Execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("backend", i.name),
		attribute.Int("source_bytes", len(source)),
	)

	start := time.Now()
	res, err := i.next.Execute(ctx, source, stdin)
	requestDuration.WithLabelValues(i.name).Observe(time.Since(start).Seconds())

	result := "success"
	switch {
	case err != nil:
		result = "unavailable"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !res.Success:
		result = "failure"
	}
	requestsTotal.WithLabelValues(i.name, result).Inc()
	span.SetAttributes(attribute.String("result", result))
	return res, err
}
