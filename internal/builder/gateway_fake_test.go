package builder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/model"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	dropdowns    model.Dropdowns
	dropdownsErr error
	dateRange    gateway.DateRange
	invoiceCount string
	pestCount    string
	customer     model.CustomerDetails
	customerErr  error
	detail       *gateway.ContractDetail
	persist      *gateway.PersistResult
	persistErr   error
	tickets      []model.Ticket

	// Gates hold a lookup until a value is sent on them.
	customerGates map[string]chan model.CustomerDetails
	pestGate      chan string

	lastPayload  *model.ContractPayload
	lastSchedule gateway.ScheduleRequest
	lastTickets  gateway.TicketsRequest
	lastPest     gateway.PestCountRequest
}

func newFakeGateway() *fakeGateway {
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	reminder := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	return &fakeGateway{
		calls:        make(map[string]int),
		dropdowns:    testDropdowns(),
		dateRange:    gateway.DateRange{EndDate: &end, ReminderDate: &reminder},
		invoiceCount: "12",
		pestCount:    "6",
		customer: model.CustomerDetails{
			Address:     "12 Harbour Rd",
			PostalCode:  "018956",
			ContactName: "Mei Tan",
			Phone:       "6221 0000",
			Mobile:      "9123 4567",
			Email:       "mei@example.com",
		},
		persist: &gateway.PersistResult{Status: gateway.StatusSuccess, Data: json.RawMessage(`{"contractId":"c-100"}`)},
		tickets: []model.Ticket{
			{TicketDate: "2026-01-05", TicketDay: "Monday"},
			{TicketDate: "2026-02-02", TicketDay: "Monday"},
		},
	}
}

func testDropdowns() model.Dropdowns {
	return model.Dropdowns{
		Customers:          []model.LookupOption{{ID: "cust-1", Name: "Harbour Foods"}, {ID: "cust-2", Name: "Lim Bakery"}},
		CallTypes:          []model.LookupOption{{ID: "ct-1", Name: "Routine"}},
		Industries:         []model.LookupOption{{ID: "ind-1", Name: "F&B"}},
		Technicians:        []model.LookupOption{{ID: "tech-1", Name: "Ravi"}},
		Supervisors:        []model.LookupOption{{ID: "sup-1", Name: "Aisha"}},
		SalesPersons:       []model.LookupOption{{ID: "sp-1", Name: "Ken"}},
		BillingFrequencies: []model.LookupOption{{ID: "bf-1", Name: "Monthly"}},
		ServiceFrequencies: []model.LookupOption{{ID: "sf-1", Name: "Weekly"}},
		Pests:              []model.LookupOption{{ID: "pest-1", Name: "Rodent"}, {ID: "pest-2", Name: "Cockroach"}},
		Chemicals:          []model.LookupOption{{ID: "chem-1", Name: "Gel Bait"}},
	}
}

func (f *fakeGateway) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeGateway) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeGateway) FetchDropdowns(context.Context) (model.Dropdowns, error) {
	f.record("dropdowns")
	return f.dropdowns, f.dropdownsErr
}

func (f *fakeGateway) FetchDateRange(context.Context, gateway.DateRangeRequest) (gateway.DateRange, error) {
	f.record(LookupDateRange)
	return f.dateRange, nil
}

func (f *fakeGateway) FetchInvoiceCount(context.Context, gateway.InvoiceCountRequest) (string, error) {
	f.record(LookupInvoiceCount)
	return f.invoiceCount, nil
}

func (f *fakeGateway) FetchPestCount(ctx context.Context, req gateway.PestCountRequest) (string, error) {
	f.record(LookupPestCount)
	f.mu.Lock()
	f.lastPest = req
	gate := f.pestGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case count := <-gate:
			return count, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.pestCount, nil
}

func (f *fakeGateway) FetchCustomerDetails(ctx context.Context, customerID string) (model.CustomerDetails, error) {
	f.record(LookupCustomerDetails)
	f.mu.Lock()
	gate := f.customerGates[customerID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case details := <-gate:
			return details, nil
		case <-ctx.Done():
			return model.CustomerDetails{}, ctx.Err()
		}
	}
	return f.customer, f.customerErr
}

func (f *fakeGateway) FetchContract(context.Context, string) (*gateway.ContractDetail, error) {
	f.record("contract")
	if f.detail == nil {
		return nil, gateway.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeGateway) PersistContract(_ context.Context, payload model.ContractPayload) (*gateway.PersistResult, error) {
	f.record("persist")
	f.mu.Lock()
	f.lastPayload = &payload
	f.mu.Unlock()
	return f.persist, f.persistErr
}

func (f *fakeGateway) GenerateSchedule(_ context.Context, req gateway.ScheduleRequest) ([]model.Ticket, error) {
	f.record("schedule")
	f.mu.Lock()
	f.lastSchedule = req
	f.mu.Unlock()
	return f.tickets, nil
}

func (f *fakeGateway) PersistTickets(_ context.Context, req gateway.TicketsRequest) (*gateway.PersistResult, error) {
	f.record("tickets")
	f.mu.Lock()
	f.lastTickets = req
	f.mu.Unlock()
	return &gateway.PersistResult{Status: gateway.StatusSuccess}, nil
}

var errGatewayDown = errors.New("gateway down")

// panickyGateway blows up inside the invoice-count lookup.
type panickyGateway struct {
	*fakeGateway
}

func (p panickyGateway) FetchInvoiceCount(context.Context, gateway.InvoiceCountRequest) (string, error) {
	panic("invoice service exploded")
}

func awaitEvent(t *testing.T, events <-chan Event, kind EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			require.True(t, ok, "event channel closed before %s", kind)
			if event.Type == kind {
				return event
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for event", string(kind))
			return Event{}
		}
	}
}

func newTestSession(gw *fakeGateway, opts Options) *Session {
	return NewSession(uuid.New(), gw, gw.dropdowns, opts, zerolog.Nop())
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}
