// Package monitor implements a terminal view of the quality levels of a
// worker session.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
)

// Source provides the tracker entries to display.
type Source interface {
	Entries(ctx context.Context) ([]perf.Entry, error)
}

// TrackerSource reads entries from an in-process tracker.
type TrackerSource struct{ Tracker *perf.Tracker }

func (s TrackerSource) Entries(context.Context) ([]perf.Entry, error) {
	return s.Tracker.Entries(), nil
}

// HTTPSource reads entries of a session from a server.
type HTTPSource struct {
	BaseURL string
	Session string
	Client  *http.Client
}

func (s HTTPSource) Entries(ctx context.Context) ([]perf.Entry, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimSuffix(s.BaseURL, "/") + "/sessions/" + s.Session + "/levels"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	var entries []perf.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type (
	entriesMsg []perf.Entry
	errMsg     struct{ err error }
	tickMsg    time.Time
)

// Model is the bubbletea model of the monitor.
type Model struct {
	src      Source
	title    string
	interval time.Duration
	table    table.Model
	err      error
	updated  time.Time

	titleStyle lipgloss.Style
	errStyle   lipgloss.Style
	helpStyle  lipgloss.Style
	overStyle  lipgloss.Style
}

var columns = []table.Column{
	{Title: "Key", Width: 32},
	{Title: "Level", Width: 6},
	{Title: "Samples", Width: 8},
	{Title: "Over", Width: 6},
	{Title: "Target", Width: 10},
}

// New creates a model that polls src every interval.
func New(src Source, title string, interval time.Duration) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("238")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)
	return Model{
		src: src, title: title, interval: interval, table: t,
		titleStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1),
		errStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		helpStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		overStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

func (m Model) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	entries, err := m.src.Entries(ctx)
	if err != nil {
		return errMsg{err}
	}
	return entriesMsg(entries)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts polling.
func (m Model) Init() tea.Cmd { return m.fetch }

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil
	case entriesMsg:
		m.err = nil
		m.updated = time.Now()
		m.table.SetRows(rows(msg))
		return m, m.tick()
	case errMsg:
		m.err = msg.err
		return m, m.tick()
	case tickMsg:
		return m, m.fetch
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func rows(entries []perf.Entry) []table.Row {
	rs := make([]table.Row, len(entries))
	for i, e := range entries {
		rs[i] = table.Row{
			e.Key, strconv.Itoa(e.Level), strconv.Itoa(e.Samples),
			strconv.Itoa(e.OverBudget), e.Target.String(),
		}
	}
	return rs
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(m.errStyle.Render("error: " + m.err.Error()))
	} else if !m.updated.IsZero() {
		b.WriteString(m.overStyle.Render(fmt.Sprintf("%d keys", len(m.table.Rows()))))
		b.WriteString(m.helpStyle.Render(" updated " + m.updated.Format(time.TimeOnly)))
	}
	b.WriteString("\n")
	b.WriteString(m.helpStyle.Render("↑/↓ scroll • q quit"))
	return b.String()
}

// Run runs the monitor in the terminal until the user quits.
func Run(src Source, title string, interval time.Duration) error {
	_, err := tea.NewProgram(New(src, title, interval), tea.WithAltScreen()).Run()
	return err
}
