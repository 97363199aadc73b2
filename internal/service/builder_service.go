package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/events"
	"github.com/nurpe/pestops-contracts/internal/filters"
	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/model"
)

type ExcelGenerator interface {
	Generate(report model.ScheduleReport) ([]byte, error)
}

type PDFGenerator interface {
	Generate(report model.ScheduleReport) ([]byte, error)
}

type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	ListByContract(ctx context.Context, contractID string, limit int) ([]model.Submission, error)
}

type Dependencies struct {
	Sessions *builder.Manager
	Gateway  gateway.Gateway
	Audit    SubmissionRepository
	Events   events.Publisher
	Excel    ExcelGenerator
	PDF      PDFGenerator
	Filters  filters.Store
	Log      zerolog.Logger
}

// BuilderService puts permission checks, auditing and exports around the
// builder sessions.
type BuilderService struct {
	sessions *builder.Manager
	gw       gateway.Gateway
	audit    SubmissionRepository
	events   events.Publisher
	excel    ExcelGenerator
	pdf      PDFGenerator
	filters  filters.Store
	log      zerolog.Logger
}

func NewBuilderService(deps Dependencies) *BuilderService {
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &BuilderService{
		sessions: deps.Sessions,
		gw:       deps.Gateway,
		audit:    deps.Audit,
		events:   publisher,
		excel:    deps.Excel,
		pdf:      deps.PDF,
		filters:  deps.Filters,
		log:      deps.Log,
	}
}

type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

func (s *BuilderService) OpenSession(ctx context.Context, principal model.Principal, contractID string) (builder.Snapshot, error) {
	if !principal.CanEditContracts() {
		return builder.Snapshot{}, ErrPermissionDenied
	}
	session, err := s.sessions.Create(ctx, principal.UserID, strings.TrimSpace(contractID))
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return builder.Snapshot{}, fmt.Errorf("%w: contract %s", ErrNotFound, contractID)
		}
		return builder.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *BuilderService) GetSession(principal model.Principal, id string) (builder.Snapshot, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return builder.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

// CloseSession discards the draft without saving.
func (s *BuilderService) CloseSession(principal model.Principal, id string) error {
	if _, err := s.session(principal, id); err != nil {
		return err
	}
	s.sessions.Close(id)
	return nil
}

func (s *BuilderService) Dropdowns(ctx context.Context) (model.Dropdowns, error) {
	dropdowns, err := s.gw.FetchDropdowns(ctx)
	if err != nil {
		return model.Dropdowns{}, err
	}
	return dropdowns.Clean(), nil
}

func (s *BuilderService) ChangeField(principal model.Principal, id string, change builder.FieldChange) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		return session.OnFieldChange(change)
	})
}

func (s *BuilderService) ChangeDate(principal model.Principal, id string, field model.Field, value *time.Time) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		return session.OnDateFieldChange(field, value)
	})
}

// ChangeBuffer edits the pest line being composed. Only line fields are
// accepted.
func (s *BuilderService) ChangeBuffer(principal model.Principal, id string, change builder.FieldChange) (builder.Snapshot, error) {
	if !change.Field.IsLineField() {
		return builder.Snapshot{}, fmt.Errorf("%w: %s is not a pest line field", ErrInvalidInput, change.Field)
	}
	return s.ChangeField(principal, id, change)
}

func (s *BuilderService) CommitLine(principal model.Principal, id string) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		_, err := session.AddOrUpdateLine()
		return err
	})
}

func (s *BuilderService) StartEditLine(principal model.Principal, id, key string) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		_, err := session.StartEditLine(key)
		return err
	})
}

func (s *BuilderService) RemoveLine(principal model.Principal, id, key string) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		_, err := session.RemoveLine(key)
		return err
	})
}

func (s *BuilderService) CancelEditLine(principal model.Principal, id string) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		return session.CancelEditLine()
	})
}

func (s *BuilderService) SetAttachment(principal model.Principal, id, fileName, contentType string, content []byte) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		return session.SetAttachment(fileName, contentType, content)
	})
}

func (s *BuilderService) FocusNext(principal model.Principal, id, current string) (builder.Target, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return builder.Target{}, err
	}
	return session.FocusNext(current)
}

func (s *BuilderService) HandleKey(principal model.Principal, id, current string, key builder.KeyPress) (builder.KeyResult, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return builder.KeyResult{}, err
	}
	return session.HandleKey(current, key)
}

func (s *BuilderService) SetMounted(principal model.Principal, id string, mounts map[string]bool) (builder.Snapshot, error) {
	return s.mutate(principal, id, func(session *builder.Session) error {
		return session.SetMounted(mounts)
	})
}

func (s *BuilderService) Subscribe(principal model.Principal, id string) (<-chan builder.Event, func(), error) {
	session, err := s.session(principal, id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := session.Subscribe(32)
	return ch, unsubscribe, nil
}

// Submit persists the draft. Every attempt that reaches the gateway is
// audited; validation failures are not.
func (s *BuilderService) Submit(ctx context.Context, principal model.Principal, id string) (*builder.SubmitResult, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return nil, err
	}

	result, err := session.Submit(ctx)
	snapshot := session.Snapshot()
	if err != nil {
		if !errors.Is(err, builder.ErrValidation) {
			s.record(ctx, principal, session.ID(), model.OperationPersistContract, snapshot, nil, err)
		}
		return nil, err
	}

	s.record(ctx, principal, session.ID(), model.OperationPersistContract, snapshot, result.Payload, nil)
	s.publish(ctx, events.TypeContractPersisted, result.ContractID, principal, map[string]any{
		"contractNo": snapshot.Draft.ContractNumber,
		"customerId": snapshot.Draft.Customer.ID,
		"lineCount":  len(snapshot.Items),
	})
	return result, nil
}

func (s *BuilderService) GenerateSchedule(ctx context.Context, principal model.Principal, id string) ([]model.Ticket, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return nil, err
	}
	tickets, err := session.GenerateSchedule(ctx)
	if err != nil && !errors.Is(err, builder.ErrValidation) {
		s.record(ctx, principal, session.ID(), model.OperationGenerateSchedule, session.Snapshot(), nil, err)
	}
	return tickets, err
}

func (s *BuilderService) PersistTickets(ctx context.Context, principal model.Principal, id string) error {
	session, err := s.session(principal, id)
	if err != nil {
		return err
	}

	err = session.PersistTickets(ctx)
	snapshot := session.Snapshot()
	if errors.Is(err, builder.ErrValidation) {
		return err
	}
	s.record(ctx, principal, session.ID(), model.OperationPersistTickets, snapshot, nil, err)
	if err != nil {
		return err
	}

	s.publish(ctx, events.TypeTicketsPersisted, snapshot.Draft.ContractID, principal, map[string]any{
		"tickets": snapshot.Tickets,
	})
	return nil
}

func (s *BuilderService) ExportSchedule(principal model.Principal, id string) (*ExportResult, error) {
	report, err := s.report(principal, id)
	if err != nil {
		return nil, err
	}
	if len(report.Tickets) == 0 {
		return nil, ErrNoTickets
	}
	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName:    exportFileName(report.Draft, "schedule", "xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Content:     content,
	}, nil
}

func (s *BuilderService) ExportSummary(principal model.Principal, id string) (*ExportResult, error) {
	report, err := s.report(principal, id)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(report)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName:    exportFileName(report.Draft, "summary", "pdf"),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func (s *BuilderService) SubmissionHistory(ctx context.Context, principal model.Principal, contractID string, limit int) ([]model.Submission, error) {
	if !principal.IsAdmin() && !principal.IsViewer() && !principal.CanEditContracts() {
		return nil, ErrPermissionDenied
	}
	if strings.TrimSpace(contractID) == "" {
		return nil, fmt.Errorf("%w: contract id is required", ErrInvalidInput)
	}
	return s.audit.ListByContract(ctx, contractID, limit)
}

func (s *BuilderService) LoadFilters(ctx context.Context, principal model.Principal, screen string) (filters.Filters, error) {
	saved, err := s.filters.Load(ctx, principal.UserID.String(), screen)
	if errors.Is(err, filters.ErrInvalidScreen) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return saved, err
}

func (s *BuilderService) SaveFilters(ctx context.Context, principal model.Principal, screen string, values filters.Filters) error {
	err := s.filters.Save(ctx, principal.UserID.String(), screen, values)
	if errors.Is(err, filters.ErrInvalidScreen) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return err
}

// session returns a session the principal may edit. Admins may act on any
// session; everybody else only on their own.
func (s *BuilderService) session(principal model.Principal, id string) (*builder.Session, error) {
	if !principal.CanEditContracts() {
		return nil, ErrPermissionDenied
	}
	session, err := s.sessions.Get(id)
	if err != nil {
		if errors.Is(err, builder.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
		}
		return nil, err
	}
	if session.Owner() != principal.UserID && !principal.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return session, nil
}

func (s *BuilderService) mutate(principal model.Principal, id string, fn func(*builder.Session) error) (builder.Snapshot, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return builder.Snapshot{}, err
	}
	if err := fn(session); err != nil {
		return builder.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *BuilderService) report(principal model.Principal, id string) (model.ScheduleReport, error) {
	session, err := s.session(principal, id)
	if err != nil {
		return model.ScheduleReport{}, err
	}
	snapshot := session.Snapshot()
	return model.ScheduleReport{
		Draft:   snapshot.Draft,
		Items:   snapshot.Items,
		Tickets: snapshot.Tickets,
	}, nil
}

// record writes the audit row. Audit failures are logged and never fail
// the operation that was audited.
func (s *BuilderService) record(ctx context.Context, principal model.Principal, sessionID, operation string, snapshot builder.Snapshot, payload *model.ContractPayload, opErr error) {
	if s.audit == nil {
		return
	}

	submission := &model.Submission{
		SessionID:      sessionID,
		Operation:      operation,
		ContractID:     optional(snapshot.Draft.ContractID),
		ContractNumber: optional(snapshot.Draft.ContractNumber),
		CustomerID:     optional(snapshot.Draft.Customer.ID),
		LineCount:      len(snapshot.Items),
		TicketCount:    len(snapshot.Tickets),
		Outcome:        outcomeOf(opErr),
		CreatedBy:      principal.UserID,
	}
	if opErr != nil {
		message := opErr.Error()
		submission.Message = &message
	}
	if payload != nil {
		// The attachment body is not kept in the audit trail.
		trimmed := *payload
		if trimmed.Attachment != nil {
			attachment := *trimmed.Attachment
			attachment.Data = ""
			trimmed.Attachment = &attachment
		}
		if raw, err := json.Marshal(trimmed); err == nil {
			submission.Payload = raw
		}
	}

	if err := s.audit.Create(ctx, submission); err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Str("operation", operation).Msg("failed to audit submission")
	}
}

func (s *BuilderService) publish(ctx context.Context, eventType, contractID string, principal model.Principal, data any) {
	if err := s.events.Publish(ctx, eventType, contractID, principal.UserID.String(), data); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("contract_id", contractID).Msg("failed to publish event")
	}
}

func outcomeOf(err error) model.SubmissionOutcome {
	if err == nil {
		return model.OutcomeSucceeded
	}
	var failure *builder.PersistenceFailure
	if errors.As(err, &failure) && failure.Err == nil {
		return model.OutcomeRejected
	}
	return model.OutcomeFailed
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func exportFileName(draft model.ContractDraft, kind, ext string) string {
	base := strings.TrimSpace(draft.ContractNumber)
	if base == "" {
		base = draft.ContractID
	}
	if base == "" {
		base = "draft"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", "\"", "")
	return fmt.Sprintf("contract_%s_%s.%s", replacer.Replace(base), kind, ext)
}
