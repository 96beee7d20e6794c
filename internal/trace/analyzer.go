package trace

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"stepviz/internal/backend"
	"stepviz/internal/flowchart"
	"stepviz/internal/logging"
	"stepviz/internal/model"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// DefaultStepLimit bounds a Python trace when no limit is configured.
const DefaultStepLimit = 1000

// Analyzer turns source code into a step-by-step execution trace.
type Analyzer struct {
	strategies map[model.Language]Strategy
	logger     *slog.Logger
	stepLimit  int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithStepLimit caps the number of Python steps recorded.
func WithStepLimit(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.stepLimit = n
		}
	}
}

// NewAnalyzer wires the C++ backend and the Python interpreter. Either may be
// nil, in which case that language reports a backend failure.
func NewAnalyzer(b backend.Backend, in Interpreter, opts ...Option) *Analyzer {
	a := &Analyzer{
		logger:    slog.Default(),
		stepLimit: DefaultStepLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "analyzer")
	a.strategies = make(map[model.Language]Strategy)
	if b != nil {
		a.strategies[model.LanguageCpp] = &CppStrategy{backend: b}
	}
	if in != nil {
		a.strategies[model.LanguagePython] = &PythonStrategy{interp: in, stepLimit: a.stepLimit}
	}
	return a
}

// Strategy returns the strategy for lang.
func (a *Analyzer) Strategy(lang model.Language) (Strategy, error) {
	if s, ok := a.strategies[lang]; ok {
		return s, nil
	}
	switch lang {
	case model.LanguageCpp, model.LanguagePython:
		return nil, newAnalysisError(ErrBackendFailure, fmt.Sprintf("no execution backend configured for %s", lang))
	}
	return nil, newAnalysisError(ErrUnsupportedLanguage, fmt.Sprintf("unsupported language %q", lang))
}

// AnalyzeLocally produces the flowchart and execution trace for source.
// It never panics and never returns a nil Steps slice; failures are reported
// through Error and ErrorKind, with the flowchart still filled in.
func (a *Analyzer) AnalyzeLocally(ctx context.Context, source string, lang model.Language, stdin string) (resp model.SimulationResponse) {
	runID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "trace.AnalyzeLocally", oteltrace.WithAttributes(
		attribute.String("language", string(lang)),
		attribute.String("run_id", runID),
	))
	defer span.End()
	logger := logging.WithTrace(ctx, a.logger).With("run_id", runID, "language", lang)
	start := time.Now()

	var chart string
	defer func() {
		if r := recover(); r != nil {
			logger.Error("analysis panicked", "panic", r, "stack", string(debug.Stack()))
			resp = model.SimulationResponse{
				Steps:     []model.ExecutionStep{},
				Flowchart: chart,
				Error:     fmt.Sprintf("internal error: %v", r),
				ErrorKind: model.ErrorKindInternal,
			}
		}

		outcome := resp.Outcome()
		analysesTotal.WithLabelValues(string(lang), string(outcome)).Inc()
		analysisDuration.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())
		span.SetAttributes(
			attribute.String("outcome", string(outcome)),
			attribute.Int("steps", len(resp.Steps)),
		)
		if outcome == model.OutcomeError {
			analysisErrors.WithLabelValues(string(resp.ErrorKind)).Inc()
			span.SetStatus(codes.Error, string(resp.ErrorKind))
		} else {
			stepsPerTrace.WithLabelValues(string(lang)).Observe(float64(len(resp.Steps)))
		}
		logger.Info("analysis finished",
			"outcome", outcome,
			"steps", len(resp.Steps),
			"duration", time.Since(start),
		)
	}()

	chart = flowchart.Build(source)
	resp = model.SimulationResponse{Steps: []model.ExecutionStep{}, Flowchart: chart}

	strategy, err := a.Strategy(lang)
	if err != nil {
		return a.fail(resp, err, logger)
	}

	t, err := strategy.Trace(ctx, source, stdin)
	resp.Output = t.Output
	if err != nil {
		span.RecordError(err)
		return a.fail(resp, err, logger)
	}

	for i := range t.Steps {
		t.Steps[i].FlowchartNodeID = flowchart.NodeID(t.Steps[i].Line)
	}
	MarkChanges(t.Steps)
	if err := CheckSteps(t.Steps); err != nil {
		logger.Warn("trace invariant violated", "error", err)
	}
	if t.Steps != nil {
		resp.Steps = t.Steps
	}
	return resp
}

func (a *Analyzer) fail(resp model.SimulationResponse, err error, logger *slog.Logger) model.SimulationResponse {
	resp.Error = err.Error()
	resp.ErrorKind = ErrorKind(err)
	logger.Warn("analysis failed", "kind", resp.ErrorKind, "error", err)
	return resp
}

// Run executes source without tracing. The error is non-nil only when the
// program could not be run at all; it wraps ErrBackendFailure and the
// result then carries the diagnostic with Success false.
func (a *Analyzer) Run(ctx context.Context, source string, lang model.Language, stdin string) (model.RunResult, error) {
	ctx, span := tracer.Start(ctx, "trace.Run", oteltrace.WithAttributes(attribute.String("language", string(lang))))
	defer span.End()

	strategy, err := a.Strategy(lang)
	if err != nil {
		return model.RunResult{Success: false, Output: err.Error()}, err
	}
	res, err := strategy.Run(ctx, source, stdin)
	if err != nil {
		span.RecordError(err)
		wrapped := fmt.Errorf("%w: %v", ErrBackendFailure, err)
		return model.RunResult{Success: false, Output: "Error: " + err.Error()}, wrapped
	}
	return res, nil
}
