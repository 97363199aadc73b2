// Package console is a keyboard-only terminal caller of a builder session.
package console

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/model"
)

const maxVisibleOptions = 6

type eventMsg struct {
	event builder.Event
	open  bool
}

type opDoneMsg struct {
	status string
	err    error
}

// Model is the bubbletea model of the console. It keeps no form state of
// its own; every value is read back from the session snapshot.
type Model struct {
	ctx         context.Context
	session     *builder.Session
	graph       *builder.Graph
	events      <-chan builder.Event
	unsubscribe func()

	focused    string
	input      textinput.Model
	area       textarea.Model
	options    []model.LookupOption
	optionIdx  int
	listOpen   bool
	navigated  bool
	lineCursor int

	status string
	err    error
	width  int
}

func New(ctx context.Context, session *builder.Session) *Model {
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 256

	area := textarea.New()
	area.ShowLineNumbers = false
	area.SetHeight(3)
	area.SetWidth(48)

	events, unsubscribe := session.Subscribe(64)
	m := &Model{
		ctx:         ctx,
		session:     session,
		graph:       session.Graph(),
		events:      events,
		unsubscribe: unsubscribe,
		input:       input,
		area:        area,
		width:       100,
	}
	if controls := m.graph.Controls(); len(controls) > 0 {
		_ = session.Focus(controls[0].ID)
		m.focus(controls[0].ID, false)
	}
	return m
}

// Run blocks until the operator quits.
func Run(ctx context.Context, session *builder.Session) error {
	m := New(ctx, session)
	defer m.unsubscribe()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

func (m *Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		event, open := <-ch
		return eventMsg{event: event, open: open}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.area.SetWidth(min(60, max(20, msg.Width-30)))
		return m, nil

	case eventMsg:
		if !msg.open || msg.event.Type == builder.EventClosed {
			return m, tea.Quit
		}
		m.onEvent(msg.event)
		return m, m.waitForEvent()

	case opDoneMsg:
		m.status, m.err = msg.status, msg.err
		m.reload()
		return m, nil

	case tea.KeyMsg:
		return m.onKey(msg)
	}
	return m.forward(msg)
}

func (m *Model) onEvent(event builder.Event) {
	if event.Type == builder.EventLookupFailed {
		m.err = fmt.Errorf("%s: %s", event.Lookup, event.Message)
		return
	}
	for _, field := range event.Fields {
		if field == m.focused {
			m.reload()
			break
		}
	}
}

func (m *Model) onKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+s":
		m.commit()
		return m, m.submit()
	case "ctrl+g":
		return m, m.generateSchedule()
	case "ctrl+t":
		return m, m.persistTickets()
	case "ctrl+n":
		m.moveLineCursor(1)
		return m, nil
	case "ctrl+p":
		m.moveLineCursor(-1)
		return m, nil
	case "ctrl+e":
		m.editSelectedLine()
		return m, nil
	case "ctrl+x":
		m.removeSelectedLine()
		return m, nil
	case "esc":
		if m.listOpen {
			m.listOpen = false
			return m, nil
		}
		if m.session.Snapshot().Buffer.Editing() {
			m.report("edit cancelled", m.session.CancelEditLine())
			m.syncFocus()
		}
		return m, nil
	case "tab":
		m.commit()
		target, err := m.session.FocusNext(m.focused)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.focus(target.Control, target.OpenOptions)
		return m, nil
	case "up", "down":
		if m.listOpen && len(m.options) > 0 {
			if msg.String() == "down" {
				m.optionIdx = (m.optionIdx + 1) % len(m.options)
			} else {
				m.optionIdx = (m.optionIdx - 1 + len(m.options)) % len(m.options)
			}
			m.navigated = true
			return m, nil
		}
	}

	if msg.Type == tea.KeyEnter {
		return m.onEnter(msg)
	}
	return m.forward(msg)
}

func (m *Model) onEnter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	control, _ := m.graph.Control(m.focused)
	key := builder.KeyPress{Key: "Enter", Alt: msg.Alt}

	var cmd tea.Cmd
	switch m.focused {
	case builder.ControlSubmit:
		return m, m.submit()
	case builder.ControlLineAdd:
		_, err := m.session.AddOrUpdateLine()
		m.report("line saved", err)
		if err != nil {
			return m, nil
		}
	case builder.ControlLineCancel:
		m.report("edit cancelled", m.session.CancelEditLine())
		m.syncFocus()
		return m, nil
	default:
		if control.Kind != builder.KindMultiline || !key.HasModifier() {
			m.commit()
		}
	}

	result, err := m.session.HandleKey(m.focused, key)
	if err != nil {
		m.err = err
		return m, nil
	}
	switch result.Action {
	case builder.KeyNewline:
		m.area, cmd = m.area.Update(tea.KeyMsg{Type: tea.KeyEnter})
	case builder.KeyAdvance:
		if result.Target != nil {
			m.focus(result.Target.Control, result.Target.OpenOptions)
		}
	}
	return m, cmd
}

// forward hands a message to the active editor and refreshes the option
// list of a focused combobox.
func (m *Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	control, ok := m.graph.Control(m.focused)
	if !ok || (control.Kind == builder.KindButton && m.focused != builder.ControlAttachment) {
		return m, nil
	}

	var cmd tea.Cmd
	if control.Kind == builder.KindMultiline {
		m.area, cmd = m.area.Update(msg)
		return m, cmd
	}

	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if control.Kind == builder.KindCombobox && m.input.Value() != before {
		m.listOpen = true
		m.navigated = true
		m.refreshOptions()
	}
	return m, cmd
}

// commit writes the editor content of the focused control into the session.
func (m *Model) commit() {
	control, ok := m.graph.Control(m.focused)
	if !ok {
		return
	}

	switch control.Kind {
	case builder.KindButton:
		if m.focused == builder.ControlAttachment {
			m.attach(strings.TrimSpace(m.input.Value()))
		}
		return
	case builder.KindMultiline:
		m.err = m.session.OnFieldChange(builder.FieldChange{Field: model.Field(m.focused), Value: m.area.Value()})
		return
	}

	change := builder.FieldChange{Field: model.Field(m.focused), Value: strings.TrimSpace(m.input.Value())}
	if control.Kind == builder.KindCombobox && m.listOpen && m.navigated && len(m.options) > 0 {
		option := m.options[m.optionIdx]
		change.Value, change.OptionID = option.Name, option.ID
	}
	if current := valueOf(m.session.Snapshot(), m.focused); current == change.Value && change.OptionID == "" {
		return
	}
	m.err = m.session.OnFieldChange(change)
	m.listOpen = false
}

func (m *Model) attach(path string) {
	if path == "" || path == valueOf(m.session.Snapshot(), builder.ControlAttachment) {
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		m.err = err
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	m.report("attached "+filepath.Base(path), m.session.SetAttachment(filepath.Base(path), contentType, content))
}

// focus moves the local editor. Callers outside the session's own
// traversal report the move with Session.Focus first.
func (m *Model) focus(id string, openOptions bool) {
	m.input.Blur()
	m.area.Blur()
	m.focused = id
	m.listOpen = openOptions
	m.navigated = false
	m.optionIdx = 0
	m.reload()
}

// syncFocus follows focus repairs made by the session, e.g. after the
// cancel control unmounts.
func (m *Model) syncFocus() {
	if focused := m.session.Snapshot().Focused; focused != "" && focused != m.focused {
		m.focus(focused, false)
		return
	}
	m.reload()
}

// reload seeds the editor from the session state.
func (m *Model) reload() {
	control, ok := m.graph.Control(m.focused)
	if !ok {
		return
	}
	value := valueOf(m.session.Snapshot(), m.focused)
	switch control.Kind {
	case builder.KindMultiline:
		m.area.SetValue(value)
		m.area.Focus()
	case builder.KindButton:
		if m.focused == builder.ControlAttachment {
			m.input.SetValue(value)
			m.input.Focus()
		}
	default:
		m.input.SetValue(value)
		m.input.CursorEnd()
		m.input.Focus()
		if control.Kind == builder.KindCombobox {
			m.refreshOptions()
		}
	}
}

func (m *Model) refreshOptions() {
	options := m.session.Dropdowns().OptionsFor(model.Field(m.focused))
	query := m.input.Value()
	if current := valueOf(m.session.Snapshot(), m.focused); current != "" && current == query {
		query = ""
	}
	m.options = filterOptions(options, query, maxVisibleOptions)
	if m.optionIdx >= len(m.options) {
		m.optionIdx = 0
	}
}

func (m *Model) moveLineCursor(delta int) {
	n := len(m.session.Snapshot().Items)
	if n == 0 {
		m.lineCursor = 0
		return
	}
	m.lineCursor = (m.lineCursor + delta + n) % n
}

func (m *Model) selectedLine() (model.PestLineItem, bool) {
	items := m.session.Snapshot().Items
	if m.lineCursor < 0 || m.lineCursor >= len(items) {
		return model.PestLineItem{}, false
	}
	return items[m.lineCursor], true
}

func (m *Model) editSelectedLine() {
	item, ok := m.selectedLine()
	if !ok {
		return
	}
	if _, err := m.session.StartEditLine(item.Key); err != nil {
		m.err = err
		return
	}
	m.status, m.err = "editing "+item.Pest.Text, nil
	_ = m.session.Focus(string(model.FieldLinePest))
	m.focus(string(model.FieldLinePest), false)
}

func (m *Model) removeSelectedLine() {
	item, ok := m.selectedLine()
	if !ok {
		return
	}
	_, err := m.session.RemoveLine(item.Key)
	m.report("removed "+item.Pest.Text, err)
	m.moveLineCursor(0)
	m.syncFocus()
}

func (m *Model) report(status string, err error) {
	if err != nil {
		m.err = err
		return
	}
	m.status, m.err = status, nil
}

func (m *Model) submit() tea.Cmd {
	ctx, session := m.ctx, m.session
	m.status, m.err = "saving...", nil
	return func() tea.Msg {
		result, err := session.Submit(ctx)
		if err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: fmt.Sprintf("%s (contract %s)", result.Message, result.ContractID)}
	}
}

func (m *Model) generateSchedule() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		tickets, err := session.GenerateSchedule(ctx)
		if err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: fmt.Sprintf("%d tickets generated", len(tickets))}
	}
}

func (m *Model) persistTickets() tea.Cmd {
	ctx, session := m.ctx, m.session
	return func() tea.Msg {
		if err := session.PersistTickets(ctx); err != nil {
			return opDoneMsg{err: err}
		}
		return opDoneMsg{status: "tickets saved"}
	}
}
