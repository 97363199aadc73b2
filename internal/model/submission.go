package model

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionOutcome string

const (
	OutcomeSucceeded SubmissionOutcome = "SUCCEEDED"
	OutcomeRejected  SubmissionOutcome = "REJECTED"
	OutcomeFailed    SubmissionOutcome = "FAILED"
)

const (
	OperationPersistContract  = "persistContract"
	OperationGenerateSchedule = "generateSchedule"
	OperationPersistTickets   = "persistTickets"
)

// Submission is one audited save attempt made from a builder session.
type Submission struct {
	ID             uuid.UUID         `json:"id"`
	SessionID      string            `json:"sessionId"`
	Operation      string            `json:"operation"`
	ContractID     *string           `json:"contractId,omitempty"`
	ContractNumber *string           `json:"contractNumber,omitempty"`
	CustomerID     *string           `json:"customerId,omitempty"`
	LineCount      int               `json:"lineCount"`
	TicketCount    int               `json:"ticketCount"`
	Outcome        SubmissionOutcome `json:"outcome"`
	Message        *string           `json:"message,omitempty"`
	Payload        []byte            `json:"-"`
	CreatedBy      uuid.UUID         `json:"createdBy"`
	CreatedAt      time.Time         `json:"createdAt"`
}
