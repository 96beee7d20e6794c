package trace

import (
	"fmt"
	"strings"

	"stepviz/internal/model"
)

// GenerateReport renders a response as plain text. Verbose adds every frame,
// variable and heap object per step, plus the Mermaid flowchart.
func GenerateReport(resp model.SimulationResponse, verbose bool) string {
	var sb strings.Builder

	sb.WriteString("stepviz report\n")
	sb.WriteString("==============\n")
	fmt.Fprintf(&sb, "Outcome: %s", resp.Outcome())
	if n := len(resp.Steps); n > 0 {
		fmt.Fprintf(&sb, " (%d steps)", n)
	}
	sb.WriteString("\n")

	if resp.Error != "" {
		fmt.Fprintf(&sb, "\nError [%s]:\n", resp.ErrorKind)
		sb.WriteString(indent(resp.Error, "  "))
		sb.WriteString("\n")
	}

	if len(resp.Steps) > 0 {
		sb.WriteString("\nSteps\n-----\n")
		for _, step := range resp.Steps {
			writeStep(&sb, step, verbose)
		}
	}

	if resp.Output != "" {
		sb.WriteString("\nProgram output\n--------------\n")
		sb.WriteString(resp.Output)
		if !strings.HasSuffix(resp.Output, "\n") {
			sb.WriteString("\n")
		}
	}

	if verbose && resp.Flowchart != "" {
		sb.WriteString("\nFlowchart (mermaid)\n-------------------\n")
		sb.WriteString(resp.Flowchart)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeStep(sb *strings.Builder, step model.ExecutionStep, verbose bool) {
	fn := ""
	if len(step.Stack) > 0 {
		fn = step.Stack[0].FunctionName
	}
	fmt.Fprintf(sb, "%4d  %s line %-4d %-12s depth=%d\n",
		step.StepID, model.IconCurrentLine, step.Line, fn, len(step.Stack))

	if verbose {
		for _, frame := range step.Stack {
			fmt.Fprintf(sb, "        %s %s [%s]\n", model.IconFrame, frame.FunctionName, frame.ID)
			for _, v := range frame.Variables {
				if v.IsPointer {
					fmt.Fprintf(sb, "            %s %s %s (%s)\n", v.Name, model.IconPointer, v.Address, v.Type)
				} else {
					fmt.Fprintf(sb, "            %s = %s (%s)\n", v.Name, v.Value, v.Type)
				}
			}
		}
		for _, h := range step.Heap {
			fmt.Fprintf(sb, "        %s %s %s = %s\n", model.IconHeap, h.Address, h.Type, h.Value)
		}
	}
	if step.ConsoleOutput != "" {
		fmt.Fprintf(sb, "        out: %q\n", step.ConsoleOutput)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
