package flowchart

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nodeDecl = regexp.MustCompile(`(?m)^(L\d+)(\{|\[\[|\[)"`)

func declaredNodes(graph string) []string {
	var ids []string
	for _, m := range nodeDecl.FindAllStringSubmatch(graph, -1) {
		ids = append(ids, m[1])
	}
	return ids
}

func TestBuild_OneNodePerMeaningfulLine(t *testing.T) {
	src := strings.Join([]string{
		"#include <iostream>",
		"",
		"// entry point",
		"int main() {",
		"    int x = 5;",
		"    if (x > 3) {",
		"        x++;",
		"    }",
		"    return 0;",
		"}",
	}, "\n")

	graph := Build(src)

	assert.True(t, strings.HasPrefix(graph, "graph TD;\n"))
	assert.Equal(t, []string{"L4", "L5", "L6", "L7", "L8", "L9", "L10"}, declaredNodes(graph))
	assert.Equal(t, 1, strings.Count(graph, "Start((Start))"))
	assert.Contains(t, graph, "Start((Start)) --> L4;")
	assert.Contains(t, graph, "End((End))")
}

func TestBuild_Shapes(t *testing.T) {
	src := "x = 1\nwhile x < 3:\n    x += 1\nreturn x\nprint(x)\n"
	graph := Build(src)

	assert.Contains(t, graph, `L1["x = 1"];`)
	assert.Contains(t, graph, "L1 --> L2;")
	assert.Contains(t, graph, `L2{"while x < 3:"};`)
	assert.Contains(t, graph, "L2 -- True --> L3;")
	assert.Contains(t, graph, "L3 --> L4;")
	assert.Contains(t, graph, `L4[["return x"]];`)
	assert.Contains(t, graph, "L4 --> End((End));")
	// no fall-through out of a return
	assert.NotContains(t, graph, "L4 --> L5")
	// last process node has no successor
	assert.Contains(t, graph, `L5["printx"];`)
	assert.NotContains(t, graph, "L5 -->")
}

func TestBuild_ReturnInsideDecisionReachesEnd(t *testing.T) {
	tests := []struct {
		name string
		src  string
		id   string
	}{
		{"cpp", "int f(int x) {\n    if (x > 0) return 1;\n    x++;\n}\n", "L2"},
		{"python", "def f(x):\n    if x: return 1\n    x += 1\n", "L2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := Build(tt.src)
			assert.Contains(t, graph, tt.id+"{")
			assert.Contains(t, graph, tt.id+" -- True --> L3;")
			assert.Contains(t, graph, tt.id+" --> End((End));")
		})
	}
}

func TestBuild_NoFalseEdge(t *testing.T) {
	graph := Build("if a:\n    b()\n")
	assert.NotContains(t, graph, "False")
}

func TestBuild_KeywordBoundary(t *testing.T) {
	graph := Build("format = 1\nforeach = 2\nfor i in range(3):\n    pass\n")
	assert.Contains(t, graph, `L1["format = 1"];`)
	assert.Contains(t, graph, `L2["foreach = 2"];`)
	assert.Contains(t, graph, `L3{"for i in range3:"};`)
}

func TestBuild_LabelSanitizing(t *testing.T) {
	graph := Build(`std::cout << "Hello, World!" << std::endl;`)

	ids := declaredNodes(graph)
	require.Len(t, ids, 1)
	assert.Contains(t, graph, `L1["std::cout << Hello,..."];`)
}

func TestBuild_Empty(t *testing.T) {
	for _, src := range []string{"", "\n\n", "# only a comment\n// another"} {
		graph := Build(src)
		assert.Equal(t, "graph TD;\nStart((Start)) --> End((End));\n", graph)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	src := "def f(n):\n    if n < 2:\n        return 1\n    return n * f(n - 1)\nprint(f(4))\n"
	assert.Equal(t, Build(src), Build(src))
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "L12", NodeID(12))
}
