package trace

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"stepviz/internal/model"
)

// PythonTracerScript is executed inside the embedded interpreter. It runs the
// global user_code_to_trace under a line hook and prints the steps as JSON
// between TraceStartSentinel and TraceEndSentinel after all program output.
//
//go:embed tracer.py
var PythonTracerScript string

const (
	TraceStartSentinel = "___TRACE_START___"
	TraceEndSentinel   = "___TRACE_END___"

	// GlobalUserCode and GlobalStepLimit are the interpreter globals the
	// tracer script reads.
	GlobalUserCode  = "user_code_to_trace"
	GlobalStepLimit = "trace_step_limit"

	// userCodeFile is the synthetic file name user code is compiled under.
	userCodeFile = "<user_code>"
)

// SplitTracePayload separates real program output from the JSON trace.
//
// The end sentinel is the last one in the stream. The payload is a single
// JSON line, so the start sentinel is the last occurrence before it that is
// followed by a newline. Program output that happens to contain sentinel
// text before that point does not confuse the split.
func SplitTracePayload(output string) (program, payload string, err error) {
	end := strings.LastIndex(output, TraceEndSentinel)
	if end == -1 {
		return "", "", fmt.Errorf("%w: %s not found", ErrMalformedTrace, TraceEndSentinel)
	}
	head := output[:end]

	start := strings.LastIndex(head, TraceStartSentinel+"\n")
	if start == -1 {
		return "", "", fmt.Errorf("%w: %s not found", ErrMalformedTrace, TraceStartSentinel)
	}

	program = strings.TrimSuffix(head[:start], "\n")
	payload = strings.TrimSpace(head[start+len(TraceStartSentinel)+1:])
	return program, payload, nil
}

// DecodeTracePayload decodes the tracer's JSON step array.
func DecodeTracePayload(payload string) ([]model.ExecutionStep, error) {
	var steps []model.ExecutionStep
	if err := json.Unmarshal([]byte(payload), &steps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTrace, err)
	}
	for i := range steps {
		if steps[i].Stack == nil {
			steps[i].Stack = []model.StackFrame{}
		}
		if steps[i].Heap == nil {
			steps[i].Heap = []model.HeapObject{}
		}
		for j := range steps[i].Stack {
			if steps[i].Stack[j].Variables == nil {
				steps[i].Stack[j].Variables = []model.Variable{}
			}
		}
	}
	if steps == nil {
		steps = []model.ExecutionStep{}
	}
	return steps, nil
}

// hasUserTraceback reports whether the tracer printed an exception raised by
// user code.
func hasUserTraceback(program string) bool {
	return strings.Contains(program, `File "`+userCodeFile+`"`)
}
