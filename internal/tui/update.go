package tui

import (
	"context"
	"strconv"
	"strings"

	"stepviz/internal/model"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgTraceReady carries a finished analysis.
type MsgTraceReady model.SimulationResponse

// MsgSourceChanged asks the viewer to re-analyze new source text.
type MsgSourceChanged struct {
	Source string
}

// MsgError indicates an error occurred outside the analysis itself.
type MsgError error

// Update handles events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.WindowSize = msg
		m.DetailsViewport.Width = msg.Width / 2
		m.DetailsViewport.Height = msg.Height - 8 // minus title/footer/borders
		m.syncDetails()
		return m, nil

	case MsgTraceReady:
		m.Loading = false
		m.Err = nil
		m.Resp = model.SimulationResponse(msg)
		if m.StepIdx >= len(m.Resp.Steps) {
			m.StepIdx = max(len(m.Resp.Steps)-1, 0)
		}
		m.syncDetails()
		return m, nil

	case MsgSourceChanged:
		m.Source = msg.Source
		m.Loading = true
		return m, m.analyzeCmd()

	case MsgError:
		m.Err = msg
		m.Loading = false
		return m, nil

	case tea.KeyMsg:
		if m.InputMode {
			switch msg.Type {
			case tea.KeyEnter:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.jumpTo(m.InputBuffer.Value())
				return m, nil
			case tea.KeyEsc:
				m.InputMode = false
				m.InputBuffer.Blur()
				m.InputBuffer.SetValue("")
				return m, nil
			}
			m.InputBuffer, cmd = m.InputBuffer.Update(msg)
			return m, cmd
		}

		if m.ShowHelp || m.ShowReport {
			return m.updatePopup(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "esc":
			if m.ShowFlow {
				m.ShowFlow = false
			}
		case "right", "l", "n", "j", "down":
			m.move(1)
		case "left", "h", "p", "k", "up":
			m.move(-1)
		case "home", "0":
			m.move(-len(m.Resp.Steps))
		case "end", "G":
			m.move(len(m.Resp.Steps))
		case "f":
			m.ShowFlow = !m.ShowFlow
		case "r":
			m.ShowReport = true
			m.ReportY = 0
		case "?":
			m.ShowHelp = true
			m.HelpScrollY = 0
		case "g":
			m.InputMode = true
			m.InputBuffer.Focus()
			m.InputBuffer.SetValue("")
			return m, textinput.Blink
		case "pgup", "pgdown":
			m.DetailsViewport, cmd = m.DetailsViewport.Update(msg)
			return m, cmd
		}
	}

	return m, cmd
}

func (m AppModel) updatePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "?", "r":
		m.ShowHelp = false
		m.ShowReport = false
	case "v":
		if m.ShowReport {
			m.VerboseRpt = !m.VerboseRpt
		}
	case "up", "k":
		if m.ShowReport && m.ReportY > 0 {
			m.ReportY--
		}
		if m.ShowHelp && m.HelpScrollY > 0 {
			m.HelpScrollY--
		}
	case "down", "j":
		if m.ShowReport {
			m.ReportY++
		}
		if m.ShowHelp {
			m.HelpScrollY++
		}
	}
	return m, nil
}

func (m *AppModel) move(delta int) {
	n := len(m.Resp.Steps)
	if n == 0 {
		return
	}
	m.StepIdx = min(max(m.StepIdx+delta, 0), n-1)
	m.syncDetails()
}

// jumpTo selects the step with the given 1-based stepId text.
func (m *AppModel) jumpTo(text string) {
	id, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return
	}
	for i, s := range m.Resp.Steps {
		if s.StepID >= id {
			m.StepIdx = i
			m.syncDetails()
			return
		}
	}
	m.move(len(m.Resp.Steps))
}

func (m *AppModel) syncDetails() {
	m.DetailsViewport.SetContent(m.renderDetails())
}

func (m AppModel) analyzeCmd() tea.Cmd {
	source, analyze := m.Source, m.analyze
	return func() tea.Msg {
		if analyze == nil {
			return MsgError(errNoAnalyzer)
		}
		return MsgTraceReady(analyze(context.Background(), source))
	}
}
