// Package tui is a terminal timeline editor. Keys stand in for the pointer:
// each column is cellWidth pixels, so a single bracket press on a selected
// cut point is enough to start a drag.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/heimdex/repcut/internal/timeline"
)

const (
	// cellWidth is the pixel width reported for one terminal column.
	cellWidth = 8.0

	minTimelineCols = 20
	defaultCols     = 80
	playbackTick    = 100 * time.Millisecond
)

type mode int

const (
	modeNormal mode = iota
	modeTagging
	modeConfirmClear
)

type tickMsg time.Time

// Model is the bubbletea model for one editing session.
type Model struct {
	editor Editor
	title  string
	keys   keyMap
	help   help.Model

	cols int

	state  timeline.State
	view   timeline.View
	scroll float64

	mode     mode
	dragging bool
	dragDX   float64
	form     tagForm

	status    string
	statusErr bool
}

func New(editor Editor, title string) Model {
	m := Model{
		editor: editor,
		title:  title,
		keys:   defaultKeyMap(),
		help:   help.New(),
		cols:   defaultCols,
	}
	m.apply(func(*timeline.Controller) timeline.Outcome { return timeline.NotFound })
	return m
}

// Run starts the editor full screen and blocks until it quits.
func Run(editor Editor, title string) error {
	p := tea.NewProgram(New(editor, title), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.cols = max(minTimelineCols, msg.Width-4)
		m.refreshView()
		return m, nil

	case tickMsg:
		return m.playbackTick()

	case tea.KeyMsg:
		switch m.mode {
		case modeTagging:
			return m.updateForm(msg)
		case modeConfirmClear:
			return m.updateConfirm(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status, m.statusErr = "", false

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.dragging {
			m.cancelDrag()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Left):
		m.seek(m.state.CurrentTime - m.columnSeconds())

	case key.Matches(msg, m.keys.Right):
		m.seek(m.state.CurrentTime + m.columnSeconds())

	case key.Matches(msg, m.keys.Play):
		playing := !m.state.Playing
		m.apply(func(c *timeline.Controller) timeline.Outcome {
			return c.Store().SetPlaying(playing)
		})
		if playing {
			return m, tick()
		}

	case key.Matches(msg, m.keys.AddCut):
		t := m.state.CurrentTime
		out := m.apply(func(c *timeline.Controller) timeline.Outcome {
			out, _ := c.Store().AddCutPoint(t)
			return out
		})
		m.report(out, "cut added at "+timeline.FormatTime(t))

	case key.Matches(msg, m.keys.DeleteCut):
		id, ok := m.selectedCut()
		if !ok {
			m.fail("no cut point selected")
			break
		}
		out := m.apply(func(c *timeline.Controller) timeline.Outcome {
			return c.Store().DeleteCutPoint(id)
		})
		m.report(out, "cut deleted")

	case key.Matches(msg, m.keys.NextCut):
		m.nextCut()

	case key.Matches(msg, m.keys.DragLeft):
		m.drag(-cellWidth)

	case key.Matches(msg, m.keys.DragRight):
		m.drag(cellWidth)

	case key.Matches(msg, m.keys.Commit):
		if !m.dragging {
			break
		}
		dx := m.dragDX
		m.dragging, m.dragDX = false, 0
		out := m.apply(func(c *timeline.Controller) timeline.Outcome {
			return c.End(dx)
		})
		m.report(out, "cut moved")

	case key.Matches(msg, m.keys.Cancel):
		if m.dragging {
			m.cancelDrag()
			break
		}
		m.apply(func(c *timeline.Controller) timeline.Outcome {
			return c.Store().SelectCutPoint(nil)
		})

	case key.Matches(msg, m.keys.Select):
		m.selectAtPlayhead()

	case key.Matches(msg, m.keys.ZoomIn):
		m.zoom((*timeline.Store).ZoomIn)

	case key.Matches(msg, m.keys.ZoomOut):
		m.zoom((*timeline.Store).ZoomOut)

	case key.Matches(msg, m.keys.Tag):
		if _, ok := m.state.SelectedSegment(); !ok {
			m.selectAtPlayhead()
		}
		seg, ok := m.state.SelectedSegment()
		if !ok {
			m.fail("no segment at the playhead")
			break
		}
		m.form = newTagForm(*m.state.SelectedSegmentIndex, seg, m.state.Tags)
		m.mode = modeTagging
		return m, m.form.focusCmd()

	case key.Matches(msg, m.keys.ClearAll):
		if len(m.state.CutPoints) == 0 {
			break
		}
		m.mode = modeConfirmClear
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeNormal
	if msg.String() != "y" {
		m.status, m.statusErr = "clear cancelled", false
		return m, nil
	}
	m.dragging, m.dragDX = false, 0
	st, out, err := m.editor.ClearAll()
	if err != nil {
		m.fail(err.Error())
		return m, nil
	}
	m.state = st
	m.refreshView()
	m.report(out, "all cut points cleared")
	return m, nil
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		return m, m.form.next()
	case tea.KeyShiftTab, tea.KeyUp:
		return m, m.form.prev()
	case tea.KeyEnter:
		if !m.form.last() {
			return m, m.form.next()
		}
		details := m.form.details()
		if details.Name == "" {
			m.fail("exercise name is required")
			m.form.focus = fieldName
			return m, m.form.focusCmd()
		}
		m.mode = modeNormal
		index := m.form.index
		st, out, err := m.editor.UpdateDetails(index, details)
		if err != nil {
			m.fail(err.Error())
			return m, nil
		}
		m.state = st
		m.refreshView()
		m.report(out, fmt.Sprintf("segment %d tagged", index+1))
		return m, nil
	}
	return m, m.form.update(msg)
}

func (m Model) playbackTick() (tea.Model, tea.Cmd) {
	if !m.state.Playing {
		return m, nil
	}
	t := m.state.CurrentTime + playbackTick.Seconds()
	if t >= m.state.Duration {
		m.seek(m.state.Duration)
		m.apply(func(c *timeline.Controller) timeline.Outcome {
			return c.Store().SetPlaying(false)
		})
		return m, nil
	}
	m.seek(t)
	return m, tick()
}

func tick() tea.Cmd {
	return tea.Tick(playbackTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// apply runs fn against the editor and refreshes the cached frame.
func (m *Model) apply(fn func(c *timeline.Controller) timeline.Outcome) timeline.Outcome {
	st, out, err := m.editor.Apply(fn)
	if err != nil {
		m.fail(err.Error())
		return out
	}
	m.state = st
	m.refreshView()
	return out
}

func (m *Model) refreshView() {
	v, err := m.editor.View(float64(m.cols) * cellWidth)
	if err != nil {
		m.fail(err.Error())
		return
	}
	m.view = v
}

func (m *Model) report(out timeline.Outcome, ok string) {
	if err := out.Err(); err != nil {
		m.fail(err.Error())
		return
	}
	m.status, m.statusErr = ok, false
}

func (m *Model) fail(msg string) {
	m.status, m.statusErr = msg, true
}

func (m *Model) visibleSpan() float64 {
	zoom := m.state.ZoomLevel
	if zoom <= 0 {
		zoom = timeline.DefaultZoom
	}
	return m.state.Duration / zoom
}

func (m *Model) columnSeconds() float64 {
	return max(0.1, m.visibleSpan()/float64(m.cols))
}

// seek moves the playhead and pans so it stays on screen.
func (m *Model) seek(t float64) {
	t = min(max(t, 0), m.state.Duration)
	span := m.visibleSpan()
	scroll := m.scroll
	if t < scroll {
		scroll = t
	} else if t > scroll+span {
		scroll = t - span
	}
	m.scroll = min(max(scroll, 0), max(m.state.Duration-span, 0))

	offset := m.scroll
	m.apply(func(c *timeline.Controller) timeline.Outcome {
		c.SetScrollOffset(offset)
		return c.Store().SetCurrentTime(t)
	})
}

func (m *Model) zoom(fn func(*timeline.Store) timeline.Outcome) {
	m.apply(func(c *timeline.Controller) timeline.Outcome {
		return fn(c.Store())
	})
	m.seek(m.state.CurrentTime)
}

func (m *Model) selectedCut() (string, bool) {
	if m.state.SelectedCutPointID == nil {
		return "", false
	}
	return *m.state.SelectedCutPointID, true
}

func (m *Model) nextCut() {
	cuts := m.state.CutPoints
	if len(cuts) == 0 {
		m.fail("no cut points")
		return
	}
	next := 0
	if id, ok := m.selectedCut(); ok {
		for i, cp := range cuts {
			if cp.ID == id {
				next = (i + 1) % len(cuts)
				break
			}
		}
	}
	id := cuts[next].ID
	m.apply(func(c *timeline.Controller) timeline.Outcome {
		return c.Store().SelectCutPoint(&id)
	})
	m.seek(cuts[next].Time)
}

func (m *Model) selectAtPlayhead() {
	t := m.state.CurrentTime
	m.apply(func(c *timeline.Controller) timeline.Outcome {
		i := c.Store().SegmentIndexAt(t)
		if i < 0 {
			return timeline.NotFound
		}
		return c.Store().SelectSegment(&i)
	})
}

// drag nudges the selected cut point by dx pixels, starting a gesture on
// the first press.
func (m *Model) drag(dx float64) {
	id, ok := m.selectedCut()
	if !ok {
		m.fail("select a cut point first")
		return
	}
	if !m.dragging {
		out := m.apply(func(c *timeline.Controller) timeline.Outcome {
			return c.Begin(id, timeline.InputPointer)
		})
		if !out.Ok() {
			m.report(out, "")
			return
		}
		m.dragging, m.dragDX = true, 0
	}
	m.dragDX += dx
	total := m.dragDX
	m.apply(func(c *timeline.Controller) timeline.Outcome {
		c.Move(total)
		return timeline.NotFound
	})
}

func (m *Model) cancelDrag() {
	m.dragging, m.dragDX = false, 0
	m.apply(func(c *timeline.Controller) timeline.Outcome {
		c.Cancel()
		return timeline.NotFound
	})
	m.status, m.statusErr = "drag cancelled", false
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("repcut")
	if m.title != "" {
		header += " " + mutedStyle.Render(m.title)
	}
	b.WriteString(header + "\n")

	if m.state.Duration <= 0 {
		b.WriteString(mutedStyle.Render("no video loaded") + "\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	b.WriteString(boxStyle.Render(renderTimeline(m.view, m.cols)) + "\n")
	b.WriteString(m.infoLine() + "\n")

	switch m.mode {
	case modeTagging:
		b.WriteString(m.form.view() + "\n")
	case modeConfirmClear:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Remove all %d cut points? Segment details will be lost. [y/N]", len(m.state.CutPoints))) + "\n")
	}

	if m.status != "" {
		style := successStyle
		if m.statusErr {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) infoLine() string {
	parts := []string{
		fmt.Sprintf("%s / %s", timeline.FormatTime(m.state.CurrentTime), timeline.FormatTime(m.state.Duration)),
		fmt.Sprintf("zoom %.1fx", m.state.ZoomLevel),
		fmt.Sprintf("%d cuts", len(m.state.CutPoints)),
		fmt.Sprintf("%d/%d tagged", len(m.state.TaggedSegments()), len(m.state.Segments)),
	}
	if m.dragging {
		parts = append(parts, draggingCutStyle.Render("dragging"))
	}
	if seg, ok := m.state.SelectedSegment(); ok {
		label := fmt.Sprintf("segment %d %s-%s", *m.state.SelectedSegmentIndex+1, timeline.FormatTime(seg.Start), timeline.FormatTime(seg.End))
		if seg.Details != nil && seg.Details.Name != "" {
			label += " " + seg.Details.Name
		}
		parts = append(parts, label)
	}
	return mutedStyle.Render(strings.Join(parts, "  ·  "))
}

// tagForm edits one segment's details.
type tagForm struct {
	index  int
	inputs []textinput.Model
	focus  int
}

const (
	fieldName = iota
	fieldMuscles
	fieldEquipment
)

var fieldLabels = []string{"Name", "Muscle groups", "Equipment"}

func newTagForm(index int, seg timeline.Segment, vocab timeline.Tags) tagForm {
	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 120
		ti.ShowSuggestions = true
		inputs[i] = ti
	}
	inputs[fieldName].Placeholder = "Squat"
	inputs[fieldMuscles].Placeholder = "comma separated"
	inputs[fieldMuscles].SetSuggestions(vocab.MuscleGroups)
	inputs[fieldEquipment].Placeholder = "comma separated"
	inputs[fieldEquipment].SetSuggestions(vocab.Equipment)

	if d := seg.Details; d != nil {
		inputs[fieldName].SetValue(d.Name)
		inputs[fieldMuscles].SetValue(strings.Join(d.MuscleGroups, ", "))
		inputs[fieldEquipment].SetValue(strings.Join(d.Equipment, ", "))
	}
	return tagForm{index: index, inputs: inputs}
}

func (f *tagForm) focusCmd() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	return f.inputs[f.focus].Focus()
}

func (f *tagForm) next() tea.Cmd {
	f.focus = (f.focus + 1) % len(f.inputs)
	return f.focusCmd()
}

func (f *tagForm) prev() tea.Cmd {
	f.focus = (f.focus + len(f.inputs) - 1) % len(f.inputs)
	return f.focusCmd()
}

func (f *tagForm) last() bool {
	return f.focus == len(f.inputs)-1
}

func (f *tagForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *tagForm) details() *timeline.SegmentDetails {
	return &timeline.SegmentDetails{
		Name:         strings.TrimSpace(f.inputs[fieldName].Value()),
		MuscleGroups: splitList(f.inputs[fieldMuscles].Value()),
		Equipment:    splitList(f.inputs[fieldEquipment].Value()),
	}
}

func (f tagForm) view() string {
	rows := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		rows[i] = lipgloss.JoinHorizontal(lipgloss.Top, formLabelStyle.Render(fieldLabels[i]), in.View())
	}
	title := titleStyle.Render(fmt.Sprintf("Tag segment %d", f.index+1))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{title}, rows...)...))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
