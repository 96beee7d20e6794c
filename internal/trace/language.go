package trace

import (
	"context"
	"strconv"

	"stepviz/internal/backend"
	"stepviz/internal/interp"
	"stepviz/internal/model"
)

// Interpreter is an exclusive-lease Python session.
type Interpreter interface {
	Exclusive(ctx context.Context, fn func(interp.Runtime) error) error
}

// Trace is what a strategy extracted from one traced run. Output is the
// program's own output, with trace framing removed.
type Trace struct {
	Steps  []model.ExecutionStep
	Output string
}

// Strategy defines how one language is traced and run.
type Strategy interface {
	Name() model.Language
	Trace(ctx context.Context, source, stdin string) (Trace, error)
	Run(ctx context.Context, source, stdin string) (model.RunResult, error)
}

// CppStrategy instruments the source and runs it on a backend.
type CppStrategy struct {
	backend backend.Backend
}

func (s *CppStrategy) Name() model.Language {
	return model.LanguageCpp
}

func (s *CppStrategy) Trace(ctx context.Context, source, stdin string) (Trace, error) {
	res, err := s.backend.Execute(ctx, Instrument(source), stdin)
	if err != nil {
		return Trace{}, newAnalysisError(ErrBackendFailure,
			"Failed to connect to the compilation server: "+err.Error())
	}
	if !res.Success {
		return Trace{Output: res.Output}, newAnalysisError(ErrTracerFailure, "Compilation Error:\n"+res.Output)
	}

	steps, err := ParseOutput(res.Output)
	if err != nil {
		return Trace{Output: res.Output}, newAnalysisError(ErrMalformedTrace, "Failed to read trace output: "+err.Error())
	}
	return Trace{Steps: steps, Output: ProgramOutput(res.Output)}, nil
}

func (s *CppStrategy) Run(ctx context.Context, source, stdin string) (model.RunResult, error) {
	return s.backend.Execute(ctx, source, stdin)
}

// PythonStrategy runs the tracer script inside the interpreter.
type PythonStrategy struct {
	interp    Interpreter
	stepLimit int
}

func (s *PythonStrategy) Name() model.Language {
	return model.LanguagePython
}

func (s *PythonStrategy) Trace(ctx context.Context, source, stdin string) (Trace, error) {
	var res model.RunResult
	err := s.interp.Exclusive(ctx, func(rt interp.Runtime) error {
		// Both globals and the run share one lease so no other caller's
		// source can slip in between.
		rt.SetGlobal(GlobalUserCode, source)
		rt.SetGlobal(GlobalStepLimit, strconv.Itoa(s.stepLimit))
		var err error
		res, err = rt.Execute(ctx, PythonTracerScript, stdin)
		return err
	})
	if err != nil {
		return Trace{}, newAnalysisError(ErrBackendFailure, "Failed to run the Python interpreter: "+err.Error())
	}
	if !res.Success {
		return Trace{Output: res.Output}, newAnalysisError(ErrTracerFailure, res.Output)
	}

	program, payload, err := SplitTracePayload(res.Output)
	if err != nil {
		return Trace{Output: res.Output}, newAnalysisError(ErrMalformedTrace,
			"Failed to generate trace. Python error likely occurred.")
	}
	steps, err := DecodeTracePayload(payload)
	if err != nil {
		return Trace{Output: program}, newAnalysisError(ErrMalformedTrace,
			"Failed to parse trace data: "+err.Error())
	}
	if len(steps) == 0 && hasUserTraceback(program) {
		return Trace{Steps: steps, Output: program}, newAnalysisError(ErrTracerFailure, program)
	}
	return Trace{Steps: steps, Output: program}, nil
}

func (s *PythonStrategy) Run(ctx context.Context, source, stdin string) (model.RunResult, error) {
	var res model.RunResult
	err := s.interp.Exclusive(ctx, func(rt interp.Runtime) error {
		var err error
		res, err = rt.Execute(ctx, source, stdin)
		return err
	})
	return res, err
}
