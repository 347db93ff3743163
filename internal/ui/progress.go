// Package ui renders lowering progress in the terminal.
package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"copyir/internal/pipeline"
)

const statusWidth = 12

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

var stageVerbs = map[pipeline.Stage]string{
	pipeline.StageLoad:  "loading",
	pipeline.StageCheck: "checking",
	pipeline.StageBuild: "building",
	pipeline.StageLower: "lowering",
	pipeline.StageExec:  "running",
}

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	prog    progress.Model
	units   []unitRow
	index   map[string]int
	// session is the stage of the latest event not tied to a unit.
	session pipeline.Stage
	width   int
	done    bool
}

type unitRow struct {
	path   string
	status pipeline.Status
	stage  pipeline.Stage
	note   string
}

// finished reports whether the row will not change any more.
func (r unitRow) finished() bool {
	switch r.status {
	case pipeline.StatusDone, pipeline.StatusCached, pipeline.StatusError:
		return true
	}
	return false
}

// label is the status column text.
func (r unitRow) label() string {
	if r.status == pipeline.StatusWorking {
		if verb, ok := stageVerbs[r.stage]; ok {
			return verb
		}
	}
	if r.status == "" {
		return string(pipeline.StatusQueued)
	}
	return string(r.status)
}

func (r unitRow) style() lipgloss.Style {
	switch r.status {
	case pipeline.StatusDone, pipeline.StatusCached:
		return okStyle
	case pipeline.StatusError:
		return failStyle
	case pipeline.StatusWorking:
		return workingStyle
	}
	return idleStyle
}

// fraction estimates how far through the stages the unit is. Exec is not
// always run, so a unit working on stage i of n counts as i/n.
func (r unitRow) fraction() float64 {
	if r.finished() {
		return 1
	}
	if r.status != pipeline.StatusWorking {
		return 0
	}
	i := slices.Index(pipeline.Stages, r.stage)
	if i < 0 {
		return 0
	}
	return float64(i) / float64(len(pipeline.Stages))
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one row per unit
// file. The model quits when events is closed.
func NewProgressModel(title string, files []string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = workingStyle

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		units:   make([]unitRow, len(files)),
		index:   make(map[string]int, len(files)),
		width:   80,
	}
	for i, file := range files {
		m.units[i] = unitRow{path: file, status: pipeline.StatusQueued}
		m.index[file] = i
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.applyEvent(pipeline.Event(msg)), m.listenForEvent())
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
		next, cmd := m.prog.Update(msg)
		m.prog = next.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.units) == 0 {
		return ""
	}
	header := m.title
	if verb, ok := stageVerbs[m.session]; ok {
		header = fmt.Sprintf("%s (%s)", header, verb)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusWidth-4, 20)
	for _, u := range m.units {
		name := u.path
		if u.note != "" {
			name += ": " + u.note
		}
		status := u.style().Render(fmt.Sprintf("%*s", statusWidth, u.label()))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(name, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	b.WriteString(idleStyle.Render(m.tally()))
	b.WriteString("\n")
	return b.String()
}

// tally summarises finished units, e.g. "2 done, 1 cached, 1 failed of 5".
func (m *progressModel) tally() string {
	var done, cached, failed int
	for _, u := range m.units {
		switch u.status {
		case pipeline.StatusDone:
			done++
		case pipeline.StatusCached:
			cached++
		case pipeline.StatusError:
			failed++
		}
	}
	return fmt.Sprintf("%d done, %d cached, %d failed of %d", done, cached, failed, len(m.units))
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

func (m *progressModel) applyEvent(ev pipeline.Event) tea.Cmd {
	if ev.File == "" {
		if ev.Status == pipeline.StatusWorking {
			m.session = ev.Stage
		}
		return nil
	}
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	row := &m.units[idx]
	if ev.Status != "" {
		row.status = ev.Status
	}
	if ev.Stage != "" {
		row.stage = ev.Stage
	}
	if ev.Err != nil {
		row.note = ev.Err.Error()
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.units) == 0 {
		return 0
	}
	total := 0.0
	for _, u := range m.units {
		total += u.fraction()
	}
	return total / float64(len(m.units))
}

// truncate shortens value to width display cells, marking the cut with "...".
func truncate(value string, width int) string {
	switch {
	case width <= 0 || runewidth.StringWidth(value) <= width:
		return value
	case width <= 3:
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
