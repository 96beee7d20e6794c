package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func framed(program, payload string) string {
	return program + "\n" + TraceStartSentinel + "\n" + payload + "\n" + TraceEndSentinel + "\n"
}

func TestSplitTracePayload(t *testing.T) {
	program, payload, err := SplitTracePayload(framed("24\n", `[{"stepId":1}]`))
	require.NoError(t, err)
	assert.Equal(t, "24\n", program)
	assert.Equal(t, `[{"stepId":1}]`, payload)
}

func TestSplitTracePayload_SentinelTextInProgramOutput(t *testing.T) {
	noisy := "print says " + TraceStartSentinel + "\n" + TraceEndSentinel + " too\n"
	program, payload, err := SplitTracePayload(framed(noisy, "[]"))
	require.NoError(t, err)
	assert.Equal(t, noisy, program)
	assert.Equal(t, "[]", payload)
}

func TestSplitTracePayload_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"no sentinels", "Traceback (most recent call last):\n"},
		{"truncated", "x\n" + TraceStartSentinel + "\n[{\"stepId\":1"},
		{"end only", "x\n" + TraceEndSentinel + "\n"},
		{"misordered", TraceEndSentinel + "\n" + TraceStartSentinel + "\n[]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := SplitTracePayload(tt.output)
			assert.ErrorIs(t, err, ErrMalformedTrace)
		})
	}
}

func TestDecodeTracePayload(t *testing.T) {
	steps, err := DecodeTracePayload(`[{"stepId":1,"line":2,"description":"Line 2 in <module>","stack":[{"id":"1","functionName":"<module>","variables":null}],"heap":null}]`)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.NotNil(t, steps[0].Heap)
	assert.NotNil(t, steps[0].Stack[0].Variables)

	steps, err = DecodeTracePayload("null")
	require.NoError(t, err)
	assert.NotNil(t, steps)

	_, err = DecodeTracePayload("[{")
	assert.ErrorIs(t, err, ErrMalformedTrace)
}

func TestHasUserTraceback(t *testing.T) {
	assert.True(t, hasUserTraceback("Traceback (most recent call last):\n  File \"<user_code>\", line 1, in <module>\nNameError: x\n"))
	assert.True(t, hasUserTraceback("  File \"<user_code>\", line 1\n    def\n       ^\nSyntaxError: invalid syntax\n"))
	assert.False(t, hasUserTraceback("all good\n"))
}

func TestPythonTracerScript_Embedded(t *testing.T) {
	for _, want := range []string{GlobalUserCode, GlobalStepLimit, TraceStartSentinel, TraceEndSentinel, userCodeFile, "settrace"} {
		assert.True(t, strings.Contains(PythonTracerScript, want), "tracer script mentions %s", want)
	}
}
