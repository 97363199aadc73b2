// Package gateway talks to the remote business API that supplies reference
// data, derived contract values and persistence.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nurpe/pestops-contracts/internal/model"
)

const StatusSuccess = "success"

// Gateway is the remote API consumed by the contract builder.
type Gateway interface {
	FetchDropdowns(ctx context.Context) (model.Dropdowns, error)
	FetchDateRange(ctx context.Context, req DateRangeRequest) (DateRange, error)
	FetchInvoiceCount(ctx context.Context, req InvoiceCountRequest) (string, error)
	FetchPestCount(ctx context.Context, req PestCountRequest) (string, error)
	FetchCustomerDetails(ctx context.Context, customerID string) (model.CustomerDetails, error)
	FetchContract(ctx context.Context, contractID string) (*ContractDetail, error)
	PersistContract(ctx context.Context, payload model.ContractPayload) (*PersistResult, error)
	GenerateSchedule(ctx context.Context, req ScheduleRequest) ([]model.Ticket, error)
	PersistTickets(ctx context.Context, req TicketsRequest) (*PersistResult, error)
}

type DateRangeRequest struct {
	StartDate        time.Time
	ContractType     string
	BillingFrequency string
}

type DateRange struct {
	EndDate      *time.Time
	ReminderDate *time.Time
}

type InvoiceCountRequest struct {
	StartDate          time.Time
	EndDate            time.Time
	BillingFrequencyID string
}

type PestCountRequest struct {
	PestID      string
	FrequencyID string
	StartDate   *time.Time
	EndDate     *time.Time
}

type ScheduleRequest struct {
	ContractID string
	StartDate  time.Time
	EndDate    time.Time
	PestIDs    []string
}

type TicketsRequest struct {
	ContractID string         `json:"contractId"`
	Tickets    []model.Ticket `json:"tickets"`
}

// PersistResult is the raw outcome of a save call. A transport success
// with a non-success status is still a failed save.
type PersistResult struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

func (r *PersistResult) Success() bool {
	return r != nil && strings.EqualFold(r.Status, StatusSuccess)
}

// ContractID extracts the persisted contract id from the response data.
func (r *PersistResult) ContractID() string {
	if r == nil || len(r.Data) == 0 {
		return ""
	}
	var data struct {
		ContractID flexString `json:"contractId"`
		ID         flexString `json:"id"`
	}
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return ""
	}
	if data.ContractID != "" {
		return string(data.ContractID)
	}
	return string(data.ID)
}

// ContractDetail is a persisted contract as returned for the edit flow.
type ContractDetail struct {
	Draft model.ContractDraft
	Items []model.PestLineItem
}
