// Package ui renders replay progress in the terminal.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"bbtrace/internal/replay"
)

type progressModel struct {
	title   string
	events  <-chan replay.Event
	spinner spinner.Model
	prog    progress.Model
	items   []threadItem
	index   map[uint64]int
	width   int
	done    bool
}

type threadItem struct {
	id     uint64
	status replay.Status
	done   uint64
	total  uint64
}

type eventMsg replay.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders per-thread replay
// progress. The model quits when events is closed.
func NewProgressModel(title string, threads []uint64, events <-chan replay.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	ids := append([]uint64(nil), threads...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	items := make([]threadItem, 0, len(ids))
	index := make(map[uint64]int, len(ids))
	for i, id := range ids {
		items = append(items, threadItem{id: id, status: replay.StatusQueued})
		index[id] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(replay.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-12-4, 20)
	for _, item := range m.items {
		status := string(item.status)
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%12s", status))
		b.WriteString(fmt.Sprintf("  %s %s\n", statusStyled, truncate(item.label(), nameWidth)))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (it threadItem) label() string {
	return fmt.Sprintf("thread %d  %d/%d blocks", it.id, it.done, it.total)
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev replay.Event) tea.Cmd {
	idx, ok := m.index[ev.Thread]
	if !ok {
		return nil
	}
	it := &m.items[idx]
	it.status = ev.Status
	it.done = ev.Done
	it.total = ev.Total
	return m.prog.SetPercent(m.percent())
}

// percent weights every thread equally; finished or failed threads count
// as complete.
func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, it := range m.items {
		switch {
		case it.status == replay.StatusDone || it.status == replay.StatusError:
			total += 1.0
		case it.total > 0:
			total += float64(it.done) / float64(it.total)
		}
	}
	return total / float64(len(m.items))
}

func styleStatus(status replay.Status) lipgloss.Style {
	switch status {
	case replay.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case replay.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case replay.StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	// The tail counts toward width.
	return runewidth.Truncate(value, width, "...")
}
