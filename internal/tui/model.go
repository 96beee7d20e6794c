package tui

import (
	"context"

	"stepviz/internal/model"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// AnalyzeFunc produces the trace the viewer steps through.
type AnalyzeFunc func(ctx context.Context, source string) model.SimulationResponse

// AppModel holds the TUI state.
type AppModel struct {
	// Data
	Source  string
	Name    string // File name shown in the title
	Resp    model.SimulationResponse
	Loading bool
	Err     error
	analyze AnalyzeFunc

	// UI State
	StepIdx    int
	WindowSize tea.WindowSizeMsg

	// View Modes
	ShowFlow    bool
	ShowHelp    bool
	ShowReport  bool
	VerboseRpt  bool
	ReportY     int
	HelpScrollY int

	// Jump-to-step prompt
	InputMode   bool
	InputBuffer textinput.Model

	// Components
	DetailsViewport viewport.Model
}

// InitialModel returns the initial state. Init starts the first analysis.
func InitialModel(name, source string, analyze AnalyzeFunc) AppModel {
	ti := textinput.New()
	ti.Placeholder = "Step number..."
	ti.CharLimit = 8
	ti.Width = 12

	return AppModel{
		Source:          source,
		Name:            name,
		Loading:         true,
		analyze:         analyze,
		InputBuffer:     ti,
		DetailsViewport: viewport.New(40, 10),
	}
}

// Steps is shorthand for the current trace.
func (m AppModel) Steps() []model.ExecutionStep {
	return m.Resp.Steps
}

// Current returns the selected step, if any.
func (m AppModel) Current() (model.ExecutionStep, bool) {
	if m.StepIdx < 0 || m.StepIdx >= len(m.Resp.Steps) {
		return model.ExecutionStep{}, false
	}
	return m.Resp.Steps[m.StepIdx], true
}
