// Package tui renders a live fleet status table: one row per device with
// its connection state, transaction counters, and cycle timing.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edgeplc/modmaster/internal/metrics"
)

const refreshInterval = 500 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#575B7E")).
			Padding(0, 1)

	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	connectingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea model for the status screen.
type Model struct {
	reg   *metrics.Registry
	table table.Model
	start time.Time
}

func NewModel(reg *metrics.Registry) Model {
	columns := []table.Column{
		{Title: "Device", Width: 16},
		{Title: "Target", Width: 22},
		{Title: "State", Width: 13},
		{Title: "Reads", Width: 10},
		{Title: "Writes", Width: 10},
		{Title: "Errors", Width: 8},
		{Title: "Reconn", Width: 7},
		{Title: "Cycle", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(s)

	return Model{
		reg:   reg,
		table: t,
		start: time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 6)
	case tickMsg:
		m.table.SetRows(m.rows())
		return m, tick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) rows() []table.Row {
	snaps := m.reg.Snapshot()
	rows := make([]table.Row, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, table.Row{
			s.Name,
			s.Target,
			stateCell(s.State),
			fmt.Sprintf("%d", s.Reads),
			fmt.Sprintf("%d", s.Writes),
			fmt.Sprintf("%d", s.Errors),
			fmt.Sprintf("%d", s.Reconnects),
			cycleCell(s.LastCycle),
		})
	}
	return rows
}

func stateCell(s metrics.ConnState) string {
	switch s {
	case metrics.StateConnected:
		return connectedStyle.Render(s.String())
	case metrics.StateConnecting:
		return connectingStyle.Render(s.String())
	default:
		return disconnectedStyle.Render(s.String())
	}
}

func cycleCell(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func (m Model) View() string {
	title := titleStyle.Render("modmaster fleet status")
	uptime := footerStyle.Render(fmt.Sprintf(" up %s", time.Since(m.start).Round(time.Second)))
	footer := footerStyle.Render("q: quit")
	return lipgloss.JoinVertical(lipgloss.Left,
		title+uptime,
		baseStyle.Render(m.table.View()),
		footer,
	) + "\n"
}

// Run blocks until the user quits the status screen.
func Run(reg *metrics.Registry) error {
	p := tea.NewProgram(NewModel(reg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
