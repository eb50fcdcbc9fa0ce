// Package tui is the interactive display shell: a query box, a spinner
// while a recommendation is fetched, and a viewport for the answer.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Recommender is the TUI-facing subset of the pipeline.
type Recommender interface {
	Recommend(ctx context.Context, query string) (string, error)
	IndexSize() int
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	rec      Recommender
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	answer   string
	status   string
	loading  bool
	ready    bool
}

type answerMsg string

type answerErrMsg struct{ err error }

// New creates a new TUI model instance.
func New(rec Recommender, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "e.g. light hearted anime with school settings"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	vp := viewport.New(0, 0)
	return Model{rec: rec, input: ti, viewport: vp, spin: sp, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and recommendation events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + status + query box + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answerMsg:
		m.loading = false
		m.answer = string(msg)
		m.status = "Recommendations ready. Ask another question or press Ctrl+C to quit."
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answerErrMsg:
		m.loading = false
		m.status = "Error: " + msg.err.Error()
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.loading {
				m.loading = true
				m.status = "Fetching recommendations for you..."
				return m, tea.Batch(m.spin.Tick, recommendCmd(m.rec, q))
			}
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and the current answer.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Anime Recommender")
	status := statusStyle.Render(m.status)
	if m.loading {
		status = m.spin.View() + " " + status
	}
	input := queryBoxStyle.Render(m.input.View())
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.answer == "" {
		return "No recommendations yet. Enter your anime preference above."
	}
	return m.answer
}

// recommendCmd runs the pipeline off the UI loop.
func recommendCmd(rec Recommender, query string) tea.Cmd {
	return func() tea.Msg {
		answer, err := rec.Recommend(context.Background(), query)
		if err != nil {
			return answerErrMsg{err: err}
		}
		return answerMsg(answer)
	}
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
