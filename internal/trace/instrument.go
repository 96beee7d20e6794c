package trace

import (
	"fmt"
	"strings"
)

// TraceSentinel prefixes every record the instrumented program prints.
const TraceSentinel = "__TRACE__|"

// cppPrelude defines the trace hook. "#line 1" makes compiler diagnostics
// refer to the user's own line numbers.
const cppPrelude = `#include <iostream>
#include <vector>
#include <map>
static void __stepviz_trace(int line, const char* fn) {
    std::cout << "` + TraceSentinel + `" << line << "|" << fn << "|" << std::endl;
}
#line 1
`

// Instrument rewrites C++ source so that it prints a trace record after
// every statement-like line inside a block.
//
// This is a line heuristic, not a parse: brace depth is tracked per raw
// line, and a line at depth > 0 ending in ';' or '{' gets a hook call
// appended on the same physical line. Type bodies and braceless if/else
// chains can therefore fail to compile once instrumented. Variables are
// not captured, only line progression.
func Instrument(source string) string {
	var sb strings.Builder
	sb.WriteString(cppPrelude)

	depth := 0
	lines := strings.Split(source, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		trimmed := strings.TrimSpace(line)
		lineNum := i + 1

		sb.WriteString(line)

		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "using") {
			sb.WriteString("\n")
			continue
		}

		if strings.Contains(trimmed, "{") {
			depth++
		}
		if strings.Contains(trimmed, "}") {
			depth--
		}

		if depth > 0 && (strings.HasSuffix(trimmed, ";") || strings.HasSuffix(trimmed, "{")) && !strings.HasPrefix(trimmed, "//") {
			fn := "func"
			if depth == 1 {
				fn = "main"
			}
			fmt.Fprintf(&sb, " __stepviz_trace(%d, %q);", lineNum, fn)
		}
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n")

	return sb.String()
}
