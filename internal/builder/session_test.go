package builder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/model"
)

func addLine(t *testing.T, s *Session, count, value string) []model.PestLineItem {
	t.Helper()
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLinePest, OptionID: "pest-1"}))
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLineFrequency, OptionID: "sf-1"}))
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLineCount, Value: count}))
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLineValue, Value: value}))
	s.Wait()
	items, err := s.AddOrUpdateLine()
	require.NoError(t, err)
	return items
}

func readyToSubmit(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldCustomer, OptionID: "cust-1"}))
	require.NoError(t, s.OnDateFieldChange(model.FieldStartDate, date(2026, time.January, 1)))
	s.Wait()
}

func TestSessionLedgerScenario(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()

	items := addLine(t, s, "3", "50")
	require.Len(t, items, 1)
	assert.Equal(t, "150", items[0].Total)

	buf, err := s.StartEditLine(items[0].Key)
	require.NoError(t, err)
	assert.Equal(t, "150", buf.Item.Total)
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLineCount, Value: "4"}))
	assert.Equal(t, "200", s.Snapshot().Buffer.Item.Total)

	updated, err := s.AddOrUpdateLine()
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, items[0].Key, updated[0].Key)
	assert.Equal(t, "200", updated[0].Total)
}

func TestSessionCancelMountedOnlyWhileEditing(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()

	assert.False(t, s.IsMounted(ControlLineCancel))
	items := addLine(t, s, "1", "1")
	_, err := s.StartEditLine(items[0].Key)
	require.NoError(t, err)
	assert.True(t, s.IsMounted(ControlLineCancel))

	require.NoError(t, s.CancelEditLine())
	assert.False(t, s.IsMounted(ControlLineCancel))
}

func TestSessionRemoveEditedLineRepairsFocus(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()

	addLine(t, s, "3", "50")
	items := addLine(t, s, "1", "10")
	key := items[1].Key

	_, err := s.StartEditLine(key)
	require.NoError(t, err)
	target, err := s.FocusNext(ControlLineAdd)
	require.NoError(t, err)
	require.Equal(t, ControlLineCancel, target.Control)

	remaining, err := s.RemoveLine(key)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	snap := s.Snapshot()
	assert.Equal(t, EditBuffer{}, snap.Buffer)
	assert.Equal(t, ControlLineAdd, snap.Focused)

	res, err := s.HandleKey("", KeyPress{Key: "Enter"})
	require.NoError(t, err)
	require.NotNil(t, res.Target)
	assert.Equal(t, string(model.FieldRemarks), res.Target.Control)
}

func TestSessionFocusOpensComboboxList(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()

	target, err := s.FocusNext(string(model.FieldContractType))
	require.NoError(t, err)
	assert.Equal(t, string(model.FieldCustomer), target.Control)
	assert.True(t, target.OpenOptions)
	assert.Equal(t, string(model.FieldCustomer), s.Snapshot().OpenOptions)

	_, err = s.FocusNext("")
	require.NoError(t, err)
	assert.Equal(t, string(model.FieldCallType), s.Snapshot().Focused)

	require.NoError(t, s.Focus(string(model.FieldRemarks)))
	assert.Equal(t, "", s.Snapshot().OpenOptions)

	res, err := s.HandleKey("", KeyPress{Key: "Enter", Shift: true})
	require.NoError(t, err)
	assert.Equal(t, KeyNewline, res.Action)
	assert.Equal(t, string(model.FieldRemarks), s.Snapshot().Focused)

	target, err = s.FocusNext(ControlAttachment)
	require.NoError(t, err)
	assert.Equal(t, ControlSubmit, target.Control)
}

func TestSessionSetMountedMovesFocus(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()

	require.NoError(t, s.Focus(string(model.FieldEmail)))
	require.NoError(t, s.SetMounted(map[string]bool{string(model.FieldEmail): false, string(model.FieldMobile): false}))
	assert.Equal(t, string(model.FieldPhone), s.Snapshot().Focused)

	target, err := s.FocusNext("")
	require.NoError(t, err)
	assert.Equal(t, string(model.FieldLinePest), target.Control)
}

func TestSessionSubmitValidationIssuesNoCall(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()

	require.NoError(t, s.OnDateFieldChange(model.FieldStartDate, date(2026, time.January, 1)))
	s.Wait()

	_, err := s.Submit(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customerId", verr.Field)
	assert.Equal(t, 0, gw.count("persist"))
}

func TestSessionSubmitSuccess(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()
	events, unsubscribe := s.Subscribe(16)
	defer unsubscribe()

	readyToSubmit(t, s)
	addLine(t, s, "3", "50")
	require.NoError(t, s.SetAttachment("plan.pdf", "application/pdf", []byte("pdf")))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c-100", res.ContractID)
	assert.Equal(t, "c-100", s.Snapshot().Draft.ContractID)
	awaitEvent(t, events, EventSubmitted)

	require.NotNil(t, gw.lastPayload)
	assert.Equal(t, "cust-1", gw.lastPayload.CustomerID)
	require.Len(t, gw.lastPayload.PestItems, 1)
	assert.Equal(t, "150", gw.lastPayload.PestItems[0].TotalValue)
	require.NotNil(t, gw.lastPayload.Attachment)
	assert.Equal(t, "cGRm", gw.lastPayload.Attachment.Data)
}

func TestSessionSubmitFailureKeepsDraft(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()
	readyToSubmit(t, s)
	addLine(t, s, "3", "50")
	before := s.Snapshot()

	gw.persist = &gateway.PersistResult{Status: "error", Message: "duplicate contract number"}
	_, err := s.Submit(context.Background())
	var perr *PersistenceFailure
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "duplicate contract number", perr.Message)
	assert.ErrorIs(t, err, ErrPersistence)

	gw.persist = nil
	gw.persistErr = errGatewayDown
	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, errGatewayDown)
	assert.ErrorIs(t, err, ErrPersistence)

	after := s.Snapshot()
	assert.Equal(t, before.Draft, after.Draft)
	assert.Equal(t, before.Items, after.Items)
	assert.Equal(t, 2, gw.count("persist"))
}

func TestSessionScheduleFlow(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()
	readyToSubmit(t, s)
	addLine(t, s, "3", "50")
	addLine(t, s, "1", "5")

	_, err := s.GenerateSchedule(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contractId", verr.Field)

	err = s.PersistTickets(context.Background())
	require.ErrorAs(t, err, &verr)

	_, err = s.Submit(context.Background())
	require.NoError(t, err)

	tickets, err := s.GenerateSchedule(context.Background())
	require.NoError(t, err)
	assert.Len(t, tickets, 2)
	assert.Equal(t, []string{"pest-1"}, gw.lastSchedule.PestIDs)
	assert.Equal(t, "c-100", gw.lastSchedule.ContractID)
	assert.Len(t, s.Snapshot().Tickets, 2)

	require.NoError(t, s.PersistTickets(context.Background()))
	assert.Equal(t, "c-100", gw.lastTickets.ContractID)
	assert.Len(t, gw.lastTickets.Tickets, 2)
}

func TestSessionCloseStopsEditing(t *testing.T) {
	gw := newFakeGateway()
	gw.pestGate = make(chan string)
	s := newTestSession(gw, Options{})
	events, _ := s.Subscribe(4)

	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLinePest, OptionID: "pest-1"}))
	require.NoError(t, s.OnFieldChange(FieldChange{Field: model.FieldLineFrequency, OptionID: "sf-1"}))
	s.Close()

	assert.ErrorIs(t, s.OnFieldChange(FieldChange{Field: model.FieldRemarks, Value: "x"}), ErrSessionClosed)
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)

	var seen []EventType
	for event := range events {
		seen = append(seen, event.Type)
	}
	assert.Equal(t, []EventType{EventClosed}, seen)
	s.Close()
}

func TestSessionSubscribeAfterClose(t *testing.T) {
	s := newTestSession(newFakeGateway(), Options{})
	s.Close()

	events, unsubscribe := s.Subscribe(4)
	_, open := <-events
	assert.False(t, open)
	unsubscribe()
}

func TestSnapshotJSON(t *testing.T) {
	gw := newFakeGateway()
	s := newTestSession(gw, Options{})
	defer s.Close()
	addLine(t, s, "3", "50")

	raw, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalValue":"150"`)
	assert.Contains(t, string(raw), `"key":"line-1"`)
}
