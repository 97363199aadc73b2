package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/nurpe/pestops-contracts/internal/gateway"
	"github.com/nurpe/pestops-contracts/internal/model"
)

// Lookup names, used for logging, events and sequence fencing.
const (
	LookupCustomerDetails = "customerDetails"
	LookupDateRange       = "dateRange"
	LookupInvoiceCount    = "invoiceCount"
	LookupPestCount       = "pestCount"
)

// FieldChange is one edit reported by the caller. OptionID is set when the
// operator picked an option from a list; otherwise Value is matched
// against the option names.
type FieldChange struct {
	Field    model.Field `json:"field"`
	Value    string      `json:"value"`
	OptionID string      `json:"optionId,omitempty"`
}

// OnFieldChange stores an edit and starts the lookups it triggers. It
// never waits for those lookups.
func (s *Session) OnFieldChange(change FieldChange) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	field := change.Field
	if s.draft.Date(field) != nil {
		s.setDateLocked(field, parseFieldTime(field, change.Value))
		return nil
	}

	if isRefField(field) {
		ref := resolveRef(s.dropdowns.OptionsFor(field), change)
		if field.IsLineField() {
			if err := s.ledger.SetBufferRef(field, ref); err != nil {
				return err
			}
			if field == model.FieldLinePest || field == model.FieldLineFrequency {
				s.maybeIssuePestCountLocked()
			}
			return nil
		}
		*s.draft.Ref(field) = ref
		switch field {
		case model.FieldCustomer:
			if ref.IsResolved() {
				s.issueCustomerDetailsLocked(ref.ID)
			}
		case model.FieldBillingFrequency:
			s.maybeIssueInvoiceCountLocked()
		}
		return nil
	}

	if field.IsLineField() {
		return s.ledger.SetBufferText(field, change.Value)
	}
	if slot := s.draft.Text(field); slot != nil {
		*slot = change.Value
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, field)
}

// OnDateFieldChange stores a date or time-of-day field. A nil value clears it.
func (s *Session) OnDateFieldChange(field model.Field, value *time.Time) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if s.draft.Date(field) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	s.setDateLocked(field, value)
	return nil
}

func (s *Session) setDateLocked(field model.Field, value *time.Time) {
	if value != nil {
		v := *value
		if isCalendarField(field) {
			v = model.DateOnly(v)
		}
		value = &v
	}
	*s.draft.Date(field) = value

	switch field {
	case model.FieldStartDate:
		s.draft.InvoiceCount = ""
		if value != nil {
			s.issueDateRangeLocked(*value)
		}
	case model.FieldEndDate:
		s.maybeIssueInvoiceCountLocked()
	}
}

func (s *Session) issueCustomerDetailsLocked(customerID string) {
	seq := s.nextSeqLocked(LookupCustomerDetails)
	s.goLookup(LookupCustomerDetails, func(ctx context.Context) error {
		details, err := s.gw.FetchCustomerDetails(ctx, customerID)
		if err != nil {
			return err
		}
		s.apply(EventDraftUpdated, func() []string {
			if s.staleLocked(LookupCustomerDetails, seq) {
				return nil
			}
			s.draft.ApplyCustomerDetails(details)
			return []string{
				string(model.FieldAddress), string(model.FieldPostalCode), string(model.FieldContactName),
				string(model.FieldPhone), string(model.FieldMobile), string(model.FieldEmail),
			}
		})
		return nil
	})
}

func (s *Session) issueDateRangeLocked(start time.Time) {
	req := gateway.DateRangeRequest{
		StartDate:        start,
		ContractType:     s.draft.ContractType,
		BillingFrequency: s.draft.BillingFrequency.Text,
	}
	seq := s.nextSeqLocked(LookupDateRange)
	s.goLookup(LookupDateRange, func(ctx context.Context) error {
		rng, err := s.gw.FetchDateRange(ctx, req)
		if err != nil {
			return err
		}
		s.apply(EventDraftUpdated, func() []string {
			if s.staleLocked(LookupDateRange, seq) {
				return nil
			}
			var fields []string
			if rng.EndDate != nil {
				end := model.DateOnly(*rng.EndDate)
				s.draft.EndDate = &end
				fields = append(fields, string(model.FieldEndDate))
			}
			if rng.ReminderDate != nil {
				reminder := model.DateOnly(*rng.ReminderDate)
				s.draft.ReminderDate = &reminder
				fields = append(fields, string(model.FieldReminderDate))
			}
			if rng.EndDate != nil {
				s.maybeIssueInvoiceCountLocked()
			}
			return fields
		})
		return nil
	})
}

// maybeIssueInvoiceCountLocked fires only when start, end and a resolved
// billing frequency are all present.
func (s *Session) maybeIssueInvoiceCountLocked() {
	if s.draft.StartDate == nil || s.draft.EndDate == nil || !s.draft.BillingFrequency.IsResolved() {
		return
	}
	req := gateway.InvoiceCountRequest{
		StartDate:          *s.draft.StartDate,
		EndDate:            *s.draft.EndDate,
		BillingFrequencyID: s.draft.BillingFrequency.ID,
	}
	seq := s.nextSeqLocked(LookupInvoiceCount)
	s.goLookup(LookupInvoiceCount, func(ctx context.Context) error {
		count, err := s.gw.FetchInvoiceCount(ctx, req)
		if err != nil {
			return err
		}
		s.apply(EventDraftUpdated, func() []string {
			if s.staleLocked(LookupInvoiceCount, seq) {
				return nil
			}
			s.draft.InvoiceCount = count
			return []string{string(model.FieldInvoiceCount)}
		})
		return nil
	})
}

// maybeIssuePestCountLocked fires once the buffer has both a resolved pest
// and a resolved frequency.
func (s *Session) maybeIssuePestCountLocked() {
	item := s.ledger.Buffer().Item
	if !item.Pest.IsResolved() || !item.Frequency.IsResolved() {
		return
	}
	req := gateway.PestCountRequest{
		PestID:      item.Pest.ID,
		FrequencyID: item.Frequency.ID,
		StartDate:   cloneTime(s.draft.StartDate),
		EndDate:     cloneTime(s.draft.EndDate),
	}
	lifetime := s.ledger.Lifetime()
	seq := s.nextSeqLocked(LookupPestCount)
	s.goLookup(LookupPestCount, func(ctx context.Context) error {
		count, err := s.gw.FetchPestCount(ctx, req)
		if err != nil {
			return err
		}
		s.apply(EventBufferUpdated, func() []string {
			if s.staleLocked(LookupPestCount, seq) || (s.opts.FenceLookups && s.ledger.Lifetime() != lifetime) {
				return nil
			}
			if !s.ledger.SeedCount(count) {
				return nil
			}
			return []string{string(model.FieldLineCount)}
		})
		return nil
	})
}

func (s *Session) nextSeqLocked(lookup string) uint64 {
	s.seq[lookup]++
	return s.seq[lookup]
}

// staleLocked reports whether a newer request of the same lookup was
// issued after seq. Always false unless fencing is enabled.
func (s *Session) staleLocked(lookup string, seq uint64) bool {
	return s.opts.FenceLookups && s.seq[lookup] != seq
}

func resolveRef(options []model.LookupOption, change FieldChange) model.Ref {
	option, ok := model.FindOption(options, change.OptionID, change.Value)
	if !ok {
		return model.Unresolved(change.Value)
	}
	return model.Resolved(option.ID, option.Name)
}

func isRefField(field model.Field) bool {
	switch field {
	case model.FieldLinePest, model.FieldLineFrequency, model.FieldLineChemical:
		return true
	}
	var probe model.ContractDraft
	return probe.Ref(field) != nil
}

func isCalendarField(field model.Field) bool {
	return field == model.FieldStartDate || field == model.FieldEndDate || field == model.FieldReminderDate
}

func parseFieldTime(field model.Field, raw string) *time.Time {
	var (
		parsed time.Time
		ok     bool
	)
	if isCalendarField(field) {
		parsed, ok = parseDate(raw)
	} else {
		parsed, ok = parseClock(raw)
	}
	if !ok {
		return nil
	}
	return &parsed
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
