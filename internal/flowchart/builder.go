// Package flowchart turns raw source lines into a Mermaid control-flow graph.
//
// The graph is built from text alone, without executing anything. Node ids
// are "L{line}" so a runtime line number maps to a node by formatting alone.
package flowchart

import (
	"fmt"
	"strings"
	"unicode"
)

const labelLimit = 20

// NodeID returns the graph node id for a 1-based source line.
func NodeID(line int) string {
	return fmt.Sprintf("L%d", line)
}

type sourceLine struct {
	text string
	num  int
}

// Build returns a `graph TD` description of source. It never fails; source
// without meaningful lines yields Start --> End.
//
// Decision nodes only get their "True" edge. The false branch is not drawn.
func Build(source string) string {
	lines := meaningfulLines(source)

	var sb strings.Builder
	sb.WriteString("graph TD;\n")

	if len(lines) == 0 {
		sb.WriteString("Start((Start)) --> End((End));\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Start((Start)) --> %s;\n", NodeID(lines[0].num))

	for i, cur := range lines {
		id := NodeID(cur.num)
		label := sanitizeLabel(cur.text)

		var next string
		if i+1 < len(lines) {
			next = NodeID(lines[i+1].num)
		}

		switch {
		case isDecision(cur.text):
			fmt.Fprintf(&sb, "%s{\"%s\"};\n", id, label)
			if next != "" {
				fmt.Fprintf(&sb, "%s -- True --> %s;\n", id, next)
			}
			if strings.Contains(cur.text, "return") {
				fmt.Fprintf(&sb, "%s --> End((End));\n", id)
			}
		case strings.Contains(cur.text, "return"):
			// control does not fall through a return
			fmt.Fprintf(&sb, "%s[[\"%s\"]];\n", id, label)
			fmt.Fprintf(&sb, "%s --> End((End));\n", id)
		default:
			fmt.Fprintf(&sb, "%s[\"%s\"];\n", id, label)
			if next != "" {
				fmt.Fprintf(&sb, "%s --> %s;\n", id, next)
			}
		}
	}

	return sb.String()
}

// IsMeaningful reports whether a raw line produces a node.
func IsMeaningful(line string) bool {
	t := strings.TrimSpace(line)
	return t != "" && !strings.HasPrefix(t, "//") && !strings.HasPrefix(t, "#")
}

func meaningfulLines(source string) []sourceLine {
	var out []sourceLine
	for i, raw := range strings.Split(source, "\n") {
		if !IsMeaningful(raw) {
			continue
		}
		out = append(out, sourceLine{text: strings.TrimSpace(raw), num: i + 1})
	}
	return out
}

var decisionKeywords = []string{"if", "while", "for"}

func isDecision(text string) bool {
	for _, kw := range decisionKeywords {
		if !strings.HasPrefix(text, kw) {
			continue
		}
		rest := text[len(kw):]
		if rest == "" {
			return true
		}
		r := []rune(rest)[0]
		// "format = 1" is not a for loop
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return true
		}
	}
	return false
}

func sanitizeLabel(text string) string {
	runes := []rune(text)
	truncated := len(runes) > labelLimit
	if truncated {
		runes = runes[:labelLimit]
	}
	label := strings.Map(func(r rune) rune {
		switch r {
		case '"', '(', ')':
			return -1
		}
		return r
	}, string(runes))
	if truncated {
		label += "..."
	}
	return label
}
