package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"stepviz/internal/model"
)

// Parser decodes the output of an instrumented C++ program into steps.
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads the combined output stream and returns a channel of steps in
// stepId order. It runs asynchronously.
//
// A step is held back until the next record (or EOF) so that its
// ConsoleOutput holds exactly the output printed between the previous
// record and its own. Output after the last record goes to the last step.
func (p *Parser) Parse(r io.Reader) (chan model.ExecutionStep, chan error) {
	steps := make(chan model.ExecutionStep)
	errs := make(chan error, 1) // Buffered to avoid blocking if receiver stops

	go func() {
		defer close(steps)
		defer close(errs)

		scanner := bufio.NewScanner(r)
		// Programs can print very long lines
		buf := make([]byte, 0, 1024*1024)
		scanner.Buffer(buf, 10*1024*1024)

		var (
			console strings.Builder
			pending *model.ExecutionStep
			stepID  int
		)

		for scanner.Scan() {
			line := strings.TrimSuffix(scanner.Text(), "\r")

			idx := strings.Index(line, TraceSentinel)
			if idx == -1 {
				console.WriteString(line)
				console.WriteString("\n")
				continue
			}

			// text before the sentinel was printed without a newline
			console.WriteString(line[:idx])

			step, ok := parseRecord(line[idx:])
			if !ok {
				continue
			}
			if pending != nil {
				steps <- *pending
			}
			stepID++
			step.StepID = stepID
			step.ConsoleOutput = console.String()
			console.Reset()
			pending = &step
		}

		if pending != nil {
			pending.ConsoleOutput += console.String()
			steps <- *pending
		}
		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("reading trace output: %w", err)
		}
	}()

	return steps, errs
}

// ParseOutput decodes a complete output text.
func ParseOutput(output string) ([]model.ExecutionStep, error) {
	steps, errs := NewParser().Parse(strings.NewReader(output))

	all := []model.ExecutionStep{}
	for step := range steps {
		all = append(all, step)
	}
	if err := <-errs; err != nil {
		return all, err
	}
	return all, nil
}

// ProgramOutput returns the output with every trace record removed.
func ProgramOutput(output string) string {
	var sb strings.Builder
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		if idx := strings.Index(line, TraceSentinel); idx != -1 {
			sb.WriteString(line[:idx])
			continue
		}
		sb.WriteString(line)
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// parseRecord decodes "__TRACE__|<line>|<func>|<name=value;...>".
func parseRecord(record string) (model.ExecutionStep, bool) {
	parts := strings.SplitN(record, "|", 4)
	if len(parts) < 3 {
		return model.ExecutionStep{}, false
	}
	lineNum, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || lineNum < 1 {
		return model.ExecutionStep{}, false
	}
	fn := parts[2]

	variables := []model.Variable{}
	if len(parts) == 4 {
		for _, pair := range strings.Split(parts[3], ";") {
			if pair == "" {
				continue
			}
			name, value, _ := strings.Cut(pair, "=")
			variables = append(variables, model.Variable{
				Name:  name,
				Type:  "auto",
				Value: value,
			})
		}
	}

	return model.ExecutionStep{
		Line:        lineNum,
		Description: fmt.Sprintf("Executing line %d", lineNum),
		Stack: []model.StackFrame{{
			ID:           "0",
			FunctionName: fn,
			Variables:    variables,
			Line:         lineNum,
		}},
		// heap tracking is not supported for C++
		Heap: []model.HeapObject{},
	}, true
}
