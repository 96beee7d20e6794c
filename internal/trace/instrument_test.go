package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cppSample = `#include <iostream>
using namespace std;

int main() {
    int x = 5;
    // comment;
    for (int i = 0; i < 2; i++) {
        x += i;
    }
    cout << x << endl;
    return 0;
}`

func userLines(t *testing.T, instrumented string) []string {
	t.Helper()
	_, body, ok := strings.Cut(instrumented, "#line 1\n")
	require.True(t, ok, "prelude must end with #line 1")
	return strings.Split(strings.TrimSuffix(body, "\n"), "\n")
}

func TestInstrument_KeepsLineNumbering(t *testing.T) {
	out := userLines(t, Instrument(cppSample))
	src := strings.Split(cppSample, "\n")
	require.Len(t, out, len(src))
	for i := range src {
		assert.True(t, strings.HasPrefix(out[i], src[i]), "line %d starts with the original text", i+1)
	}
}

func TestInstrument_Hooks(t *testing.T) {
	out := userLines(t, Instrument(cppSample))

	tests := []struct {
		line int
		hook string // empty means no hook
	}{
		{1, ""},                                // #include
		{2, ""},                                // using
		{4, `__stepviz_trace(4, "main");`},     // opens main: depth 1
		{5, `__stepviz_trace(5, "main");`},     // statement in main
		{6, ""},                                // comment
		{7, `__stepviz_trace(7, "func");`},     // loop header: depth 2
		{8, `__stepviz_trace(8, "func");`},     // loop body
		{9, ""},                                // closing brace
		{10, `__stepviz_trace(10, "main");`},   // back to depth 1
		{11, `__stepviz_trace(11, "main");`},   // return
		{12, ""},                               // depth 0
	}
	for _, tt := range tests {
		got := out[tt.line-1]
		if tt.hook == "" {
			assert.NotContains(t, got, "__stepviz_trace", "line %d", tt.line)
			continue
		}
		assert.True(t, strings.HasSuffix(got, " "+tt.hook), "line %d: %q", tt.line, got)
	}
}

func TestInstrument_Prelude(t *testing.T) {
	out := Instrument("int main() {\n}\n")
	assert.True(t, strings.HasPrefix(out, "#include <iostream>"))
	assert.Contains(t, out, `"`+TraceSentinel+`"`)
	assert.Contains(t, out, "std::endl")
}

func TestInstrument_TopLevelStatementsUntouched(t *testing.T) {
	out := userLines(t, Instrument("int g = 1;\nint main() { return g; }"))
	assert.Equal(t, "int g = 1;", out[0])
	// opens and closes on one line: depth returns to 0
	assert.Equal(t, "int main() { return g; }", out[1])
}
