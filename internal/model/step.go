package model

import (
	"fmt"
	"strings"
)

// Version is the stepviz release version.
const Version = "0.3.1"

// Language identifies the source language of a program.
type Language string

const (
	LanguageCpp    Language = "cpp"
	LanguagePython Language = "python"
)

// ParseLanguage accepts the canonical names plus a few common aliases.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpp", "c++", "cxx", "cc":
		return LanguageCpp, nil
	case "python", "py", "python3":
		return LanguagePython, nil
	}
	return "", fmt.Errorf("unsupported language %q", s)
}

// Variable is one named binding inside a stack frame at a point in time.
type Variable struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	Address   string `json:"address,omitempty"`   // Heap key when IsPointer is set
	IsPointer bool   `json:"isPointer"`           // True iff the binding references a heap object
	PointsTo  string `json:"pointsTo,omitempty"`  // Same heap key, kept for renderers drawing arrows
	Highlight bool   `json:"highlight,omitempty"` // New or changed since the previous step
}

// StackFrame is one call frame. Variables keep the insertion order of the
// originating scope.
type StackFrame struct {
	ID           string     `json:"id"`
	FunctionName string     `json:"functionName"`
	Variables    []Variable `json:"variables"`
	Line         int        `json:"line,omitempty"`
}

// HeapObject is a traced value whose identity matters.
type HeapObject struct {
	Address string `json:"address"`
	Type    string `json:"type"`
	Value   string `json:"value"`
	Color   string `json:"color,omitempty"`
}

// ExecutionStep is one snapshot of the program. Stack[0] is the innermost
// (currently executing) frame. Heap is cumulative across a trace.
type ExecutionStep struct {
	StepID          int          `json:"stepId"`
	Line            int          `json:"line"`
	Description     string       `json:"description"`
	Stack           []StackFrame `json:"stack"`
	Heap            []HeapObject `json:"heap"`
	ConsoleOutput   string       `json:"consoleOutput,omitempty"`   // Output produced since the previous step
	FlowchartNodeID string       `json:"flowchartNodeId,omitempty"` // "L{line}"
}

// HeapAddresses returns the set of heap keys present in this step.
func (s ExecutionStep) HeapAddresses() map[string]bool {
	addrs := make(map[string]bool, len(s.Heap))
	for _, h := range s.Heap {
		addrs[h.Address] = true
	}
	return addrs
}

// ErrorKind classifies a failed analysis.
type ErrorKind string

const (
	ErrorKindBackend   ErrorKind = "backend"   // Execution backend unreachable or failed before tracing
	ErrorKindTracer    ErrorKind = "tracer"    // The instrumented/traced run failed
	ErrorKindMalformed ErrorKind = "malformed" // Trace payload missing or undecodable
	ErrorKindInternal  ErrorKind = "internal"  // Unexpected fault inside the analyzer
)

// Outcome is the terminal state of a SimulationResponse.
type Outcome string

const (
	OutcomeSteps Outcome = "steps"
	OutcomeEmpty Outcome = "empty" // Ran, but nothing was captured
	OutcomeError Outcome = "error"
)

// SimulationResponse is the result of one "visualize" invocation.
type SimulationResponse struct {
	Steps     []ExecutionStep `json:"steps"`
	Flowchart string          `json:"flowchart,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorKind ErrorKind       `json:"errorKind,omitempty"`
	Output    string          `json:"output,omitempty"` // Program output with trace framing removed
}

// Outcome reports which terminal state the response is in.
func (r SimulationResponse) Outcome() Outcome {
	switch {
	case r.Error != "":
		return OutcomeError
	case len(r.Steps) == 0:
		return OutcomeEmpty
	default:
		return OutcomeSteps
	}
}

// ConsoleUpTo returns the cumulative program output up to and including step idx.
func (r SimulationResponse) ConsoleUpTo(idx int) string {
	var sb strings.Builder
	for i := 0; i <= idx && i < len(r.Steps); i++ {
		sb.WriteString(r.Steps[i].ConsoleOutput)
	}
	return sb.String()
}

// RunResult is what an execution backend or interpreter reports for one run.
type RunResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"` // Stdout on success, diagnostics otherwise
}
