package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stepviz/internal/model"
	"stepviz/internal/trace"
)

var errNoAnalyzer = errors.New("no analyzer configured")

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	currentLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	normalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	changedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")) // Orange

	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")). // Sky Blue/Cyan
			Bold(true)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const helpText = `stepviz step viewer

  n / → / l      next step
  p / ← / h      previous step
  0 / Home       first step
  G / End        last step
  g              jump to step number
  f              toggle flowchart panel
  r              report (v: verbose, Esc: close)
  PgUp / PgDn    scroll the details panel
  ?              this help
  q / Ctrl+C     quit

The left panel shows the source with the line about to run marked ▶.
The right panel shows the call stack (innermost frame first), the heap
and the output printed so far. Variables marked * changed this step.`

func (m AppModel) View() string {
	if m.Loading {
		return "\n  Tracing program... please wait.\n"
	}
	if m.Err != nil {
		return fmt.Sprintf("\n  Error: %v\n", m.Err)
	}
	if m.ShowHelp {
		return m.renderHelpDialog()
	}
	if m.ShowReport {
		return m.renderReportPopup()
	}

	width := m.WindowSize.Width
	height := m.WindowSize.Height

	netWidth := width - 6
	if netWidth < 20 {
		netWidth = 20
	}
	leftWidth := netWidth / 2
	rightWidth := netWidth - leftWidth

	boxHeight := height - 6
	if boxHeight < 6 {
		boxHeight = 6
	}
	interiorHeight := boxHeight - 2

	borderColor := lipgloss.Color("63")
	activeColor := lipgloss.Color("205")

	left := lipgloss.NewStyle().
		Width(leftWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(activeColor).
		Render(m.renderSource(leftWidth, interiorHeight))

	var rightContent string
	if m.ShowFlow {
		rightContent = m.renderFlow(rightWidth, interiorHeight)
	} else {
		vp := m.DetailsViewport
		vp.Width = rightWidth
		vp.Height = interiorHeight
		rightContent = vp.View()
	}
	right := lipgloss.NewStyle().
		Width(rightWidth).
		Height(interiorHeight).
		Border(lipgloss.NormalBorder()).
		BorderForeground(borderColor).
		Render(rightContent)

	title := titleStyle.Render("stepviz " + m.Name)
	status := " " + m.statusLine()

	help := "Help: n/p: Step • g: Jump • f: Flowchart • r: Report • PgUp/PgDn: Scroll • ?: Help • q: Quit"
	if m.ShowFlow {
		help = "Flow Mode: n/p: Step • f/Esc: Details • ?: Help • q: Quit"
	}
	footer := "\n" + help
	if m.InputMode {
		footer = fmt.Sprintf("\nJump to step: %s", m.InputBuffer.View())
	}

	return title + status + "\n" + lipgloss.JoinHorizontal(lipgloss.Top, left, right) + footer
}

func (m AppModel) statusLine() string {
	switch m.Resp.Outcome() {
	case model.OutcomeError:
		return errorStyle.Render(fmt.Sprintf("error (%s)", m.Resp.ErrorKind))
	case model.OutcomeEmpty:
		return dimStyle.Render("ran, no steps captured")
	}
	step, _ := m.Current()
	return fmt.Sprintf("step %d/%d  line %d", step.StepID, len(m.Resp.Steps), step.Line)
}

// renderSource draws the program with the current line marked, windowed so
// the current line stays in view.
func (m AppModel) renderSource(width, height int) string {
	lines := model.SourceLines(m.Source)
	current := 0
	if step, ok := m.Current(); ok {
		current = step.Line
	}

	visible := height
	if visible < 1 {
		visible = 1
	}
	startIdx := 0
	endIdx := len(lines)
	if len(lines) > visible {
		if current-1 >= visible/2 {
			startIdx = current - 1 - visible/2
		}
		if startIdx+visible > len(lines) {
			startIdx = len(lines) - visible
		}
		endIdx = startIdx + visible
	}

	var sb strings.Builder
	for i := startIdx; i < endIdx; i++ {
		marker := model.IconBlank
		style := normalStyle
		if i+1 == current {
			marker = model.IconCurrentLine
			style = currentLineStyle
		}
		line := fmt.Sprintf("%s %3d  %s", marker, i+1, lines[i])
		if r := []rune(line); len(r) > width-2 && width > 5 {
			line = string(r[:width-5]) + "..."
		}
		sb.WriteString(style.Render(line))
		if i < endIdx-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderDetails is the scrollable right panel: stack, heap and output.
func (m AppModel) renderDetails() string {
	var sb strings.Builder

	if m.Resp.Error != "" {
		sb.WriteString(errorStyle.Render("Error"))
		sb.WriteString("\n" + m.Resp.Error + "\n\n")
	}

	step, ok := m.Current()
	if !ok {
		if m.Resp.Error == "" {
			sb.WriteString("The program ran but no steps were captured.\n")
		}
		if m.Resp.Output != "" {
			sb.WriteString("\n" + headingStyle.Render("Output") + "\n" + m.Resp.Output)
		}
		return sb.String()
	}

	sb.WriteString(headingStyle.Render("Stack"))
	sb.WriteString("\n")
	for _, f := range step.Stack {
		fmt.Fprintf(&sb, "%s %s\n", model.IconFrame, f.FunctionName)
		if len(f.Variables) == 0 {
			sb.WriteString(dimStyle.Render("    (no variables)") + "\n")
		}
		for _, v := range f.Variables {
			mark := model.IconBlank
			if v.Highlight {
				mark = model.IconChanged
			}
			var line string
			if v.IsPointer {
				line = fmt.Sprintf("  %s %s %s %s", mark, v.Name, model.IconPointer, pointerStyle.Render(v.Address))
			} else {
				line = fmt.Sprintf("  %s %s = %s", mark, v.Name, v.Value)
			}
			line += dimStyle.Render("  " + v.Type)
			if mark == model.IconChanged {
				line = changedStyle.Render(line)
			}
			sb.WriteString(line + "\n")
		}
	}

	if len(step.Heap) > 0 {
		sb.WriteString("\n" + headingStyle.Render("Heap") + "\n")
		for _, h := range step.Heap {
			fmt.Fprintf(&sb, "%s %s  %s %s\n", model.IconHeap, pointerStyle.Render(h.Address), h.Type, h.Value)
		}
	}

	if out := m.Resp.ConsoleUpTo(m.StepIdx); out != "" {
		sb.WriteString("\n" + headingStyle.Render("Output") + "\n" + out)
	}
	return sb.String()
}

// renderFlow lists the Mermaid source with the current node highlighted.
func (m AppModel) renderFlow(width, height int) string {
	nodeID := ""
	if step, ok := m.Current(); ok {
		nodeID = step.FlowchartNodeID
	}

	var sb strings.Builder
	sb.WriteString(headingStyle.Render("Flowchart"))
	sb.WriteString("\n\n")

	lines := strings.Split(strings.TrimSuffix(m.Resp.Flowchart, "\n"), "\n")
	if len(lines) > height-2 && height > 2 {
		lines = lines[:height-2]
	}
	for _, line := range lines {
		if r := []rune(line); len(r) > width-2 && width > 5 {
			line = string(r[:width-5]) + "..."
		}
		if nodeID != "" && isNodeDecl(line, nodeID) {
			sb.WriteString(currentLineStyle.Render(line))
		} else {
			sb.WriteString(dimStyle.Render(line))
		}
		sb.WriteString("\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// isNodeDecl reports whether a Mermaid line declares node id.
func isNodeDecl(line, id string) bool {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), id)
	return ok && (strings.HasPrefix(rest, "[") || strings.HasPrefix(rest, "{"))
}

// popup renders lines as a centred bordered dialog scrolled to *offset,
// clamping *offset to the visible range. widthPct is a share of the window.
func (m *AppModel) popup(lines []string, offset *int, widthPct int, border lipgloss.Color, header, footer string) string {
	w, h := m.WindowSize.Width, m.WindowSize.Height
	if w < 20 || h < 10 {
		return "Window too small"
	}

	width := min(max(w*widthPct/100, 40), w-4)
	height := max(h-6, 5)
	visible := height - 2
	if header != "" {
		visible -= 2
	}
	if footer != "" {
		visible -= 2
	}
	visible = max(visible, 1)

	*offset = max(min(*offset, len(lines)-visible), 0)
	end := min(*offset+visible, len(lines))
	body := strings.Join(lines[*offset:end], "\n")
	if header != "" {
		body = header + "\n\n" + body
	}
	if footer != "" {
		body += "\n\n" + dimStyle.Render(footer)
	}

	dialog := lipgloss.NewStyle().
		Width(width).
		Height(height).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Render(body)
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, dialog)
}

func (m *AppModel) renderReportPopup() string {
	lines := strings.Split(trace.GenerateReport(m.Resp, m.VerboseRpt), "\n")
	return m.popup(lines, &m.ReportY, 90, lipgloss.Color("208"),
		titleStyle.Render("Trace Report"), "v verbose · r/esc close")
}

func (m *AppModel) renderHelpDialog() string {
	return m.popup(strings.Split(helpText, "\n"), &m.HelpScrollY, 80, lipgloss.Color("63"), "", "")
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.analyzeCmd())
}
