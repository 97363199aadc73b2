package console

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/model"
)

type stubGateway struct {
	gateway.Gateway
}

func (stubGateway) FetchPestCount(context.Context, gateway.PestCountRequest) (string, error) {
	return "4", nil
}

func (stubGateway) FetchCustomerDetails(context.Context, string) (model.CustomerDetails, error) {
	return model.CustomerDetails{Address: "12 Harbour Rd"}, nil
}

func (stubGateway) PersistContract(context.Context, model.ContractPayload) (*gateway.PersistResult, error) {
	return &gateway.PersistResult{Status: gateway.StatusSuccess}, nil
}

func newTestModel(t *testing.T) (*Model, *builder.Session) {
	t.Helper()
	dropdowns := model.Dropdowns{
		Customers:          []model.LookupOption{{ID: "cust-1", Name: "Harbour Foods"}, {ID: "cust-2", Name: "Hill Bakery"}},
		Pests:              []model.LookupOption{{ID: "pest-1", Name: "Rodent"}, {ID: "pest-2", Name: "Cockroach"}},
		ServiceFrequencies: []model.LookupOption{{ID: "sf-1", Name: "Weekly"}},
	}
	session := builder.NewSession(uuid.New(), stubGateway{}, dropdowns, builder.Options{}, zerolog.Nop())
	t.Cleanup(session.Close)
	m := New(context.Background(), session)
	t.Cleanup(m.unsubscribe)
	return m, session
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(m *Model, msg tea.KeyMsg) {
	m.Update(msg)
}

func enter(m *Model) {
	press(m, tea.KeyMsg{Type: tea.KeyEnter})
}

func jump(t *testing.T, m *Model, id string) {
	t.Helper()
	require.NoError(t, m.session.Focus(id))
	m.focus(id, false)
}

func TestEnterCommitsAndAdvances(t *testing.T) {
	m, session := newTestModel(t)
	assert.Equal(t, "contractNo", m.focused)

	typeText(m, "PC-9")
	enter(m)

	snap := session.Snapshot()
	assert.Equal(t, "PC-9", snap.Draft.ContractNumber)
	assert.Equal(t, "contractType", m.focused)
	assert.Equal(t, "contractType", snap.Focused)
}

func TestComboboxPicksFilteredOption(t *testing.T) {
	m, session := newTestModel(t)
	jump(t, m, "customer")

	typeText(m, "hill")
	require.True(t, m.listOpen)
	require.Len(t, m.options, 1)
	enter(m)
	session.Wait()

	snap := session.Snapshot()
	assert.Equal(t, model.Ref{Text: "Hill Bakery", ID: "cust-2"}, snap.Draft.Customer)
	assert.Equal(t, "12 Harbour Rd", snap.Draft.Address)
	assert.Equal(t, "callType", m.focused)
}

func TestComboboxEnterWithoutTypingKeepsValue(t *testing.T) {
	m, session := newTestModel(t)
	require.NoError(t, session.OnFieldChange(builder.FieldChange{Field: model.FieldCustomer, OptionID: "cust-2"}))
	session.Wait()
	jump(t, m, "customer")
	m.listOpen = true
	m.refreshOptions()

	enter(m)
	assert.Equal(t, "cust-2", session.Snapshot().Draft.Customer.ID)
}

func TestAltEnterInsertsNewlineInMultiline(t *testing.T) {
	m, session := newTestModel(t)
	jump(t, m, "remarks")

	typeText(m, "side gate")
	press(m, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	typeText(m, "code 42")
	assert.Equal(t, "remarks", m.focused)

	enter(m)
	assert.Equal(t, "side gate\ncode 42", session.Snapshot().Draft.Remarks)
	assert.Equal(t, "billingRemarks", m.focused)
}

func TestLineEntryAndEdit(t *testing.T) {
	m, session := newTestModel(t)
	jump(t, m, "pestLine.pest")

	typeText(m, "rod")
	enter(m)
	assert.Equal(t, "pestLine.frequency", m.focused)
	assert.True(t, m.listOpen)
	typeText(m, "week")
	enter(m)
	session.Wait()

	jump(t, m, "pestLine.add")
	enter(m)
	snap := session.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Rodent", snap.Items[0].Pest.Text)
	assert.Equal(t, "4", snap.Items[0].Count)
	assert.Equal(t, "remarks", m.focused)

	press(m, tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.True(t, session.Snapshot().Buffer.Editing())
	assert.Equal(t, "pestLine.pest", m.focused)
	assert.Equal(t, "Rodent", m.input.Value())
	assert.True(t, session.IsMounted(builder.ControlLineCancel))

	jump(t, m, builder.ControlLineCancel)
	enter(m)
	assert.False(t, session.Snapshot().Buffer.Editing())
	assert.Equal(t, builder.ControlLineAdd, m.focused)

	press(m, tea.KeyMsg{Type: tea.KeyCtrlX})
	assert.Empty(t, session.Snapshot().Items)
}

func TestAddLineWithoutPestReportsError(t *testing.T) {
	m, _ := newTestModel(t)
	jump(t, m, builder.ControlLineAdd)
	enter(m)

	require.Error(t, m.err)
	assert.ErrorIs(t, m.err, builder.ErrValidation)
	assert.Equal(t, builder.ControlLineAdd, m.focused)
}

func TestAttachmentReadsFile(t *testing.T) {
	m, session := newTestModel(t)
	path := filepath.Join(t.TempDir(), "site-plan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	jump(t, m, builder.ControlAttachment)
	typeText(m, path)
	enter(m)

	attachment := session.Snapshot().Draft.Attachment
	require.NotNil(t, attachment)
	assert.Equal(t, "site-plan.pdf", attachment.FileName)
	assert.Equal(t, "application/pdf", attachment.ContentType)
}

func TestSubmitValidationShowsError(t *testing.T) {
	m, _ := newTestModel(t)

	cmd := m.submit()
	require.NotNil(t, cmd)
	m.Update(cmd())
	assert.ErrorIs(t, m.err, builder.ErrValidation)
}

func TestClosedSessionQuits(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(eventMsg{event: builder.Event{Type: builder.EventClosed}, open: true})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestViewShowsSectionsAndLines(t *testing.T) {
	m, _ := newTestModel(t)
	view := m.View()
	assert.Contains(t, view, "New contract")
	assert.Contains(t, view, "CONTRACT")
	assert.Contains(t, view, "no pest lines yet")
	assert.NotContains(t, view, label(builder.ControlLineCancel))
}
