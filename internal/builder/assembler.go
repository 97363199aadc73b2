package builder

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nurpe/pestops-contracts/internal/model"
)

const (
	payloadDateLayout = "2006-01-02"
	payloadTimeLayout = "15:04:05"
)

// BuildPayload validates the draft and converts it, with the ledger, into
// the persistence shape. It never touches the network.
func BuildPayload(draft model.ContractDraft, items []model.PestLineItem) (*model.ContractPayload, error) {
	switch {
	case !draft.Customer.IsResolved():
		return nil, missing("customerId")
	case draft.StartDate == nil:
		return nil, missing("startDate")
	case draft.EndDate == nil:
		return nil, missing("endDate")
	}

	payload := &model.ContractPayload{
		ContractID:     draft.ContractID,
		ContractNumber: strings.TrimSpace(draft.ContractNumber),
		ContractType:   strings.TrimSpace(draft.ContractType),

		Customer:           draft.Customer.Text,
		CustomerID:         draft.Customer.ID,
		CallType:           draft.CallType.Text,
		CallTypeID:         draft.CallType.ID,
		Industry:           draft.Industry.Text,
		IndustryID:         draft.Industry.ID,
		Technician:         draft.Technician.Text,
		TechnicianID:       draft.Technician.ID,
		Supervisor:         draft.Supervisor.Text,
		SupervisorID:       draft.Supervisor.ID,
		SalesPerson:        draft.SalesPerson.Text,
		SalesPersonID:      draft.SalesPerson.ID,
		BillingFrequency:   draft.BillingFrequency.Text,
		BillingFrequencyID: draft.BillingFrequency.ID,

		StartDate:    formatPayloadDate(draft.StartDate),
		EndDate:      formatPayloadDate(draft.EndDate),
		ReminderDate: formatPayloadDate(draft.ReminderDate),
		TimeFrom:     formatPayloadTime(draft.TimeFrom),
		TimeTo:       formatPayloadTime(draft.TimeTo),

		ContractValue: numberOrZero(draft.ContractValue),
		TaxPercent:    numberOrZero(draft.TaxPercent),
		InvoiceCount:  numberOrNull(draft.InvoiceCount),

		Address:     draft.Address,
		PostalCode:  draft.PostalCode,
		ContactName: draft.ContactName,
		Phone:       draft.Phone,
		Mobile:      draft.Mobile,
		Email:       strings.TrimSpace(draft.Email),

		Remarks:        draft.Remarks,
		BillingRemarks: draft.BillingRemarks,

		PestItems: make([]model.LineItemPayload, 0, len(items)),
	}

	if draft.Attachment != nil && len(draft.Attachment.Content) > 0 {
		payload.Attachment = &model.AttachmentPayload{
			FileName:    draft.Attachment.FileName,
			ContentType: draft.Attachment.ContentType,
			Data:        base64.StdEncoding.EncodeToString(draft.Attachment.Content),
		}
	}

	for _, item := range items {
		payload.PestItems = append(payload.PestItems, model.LineItemPayload{
			ID:          item.ID,
			Pest:        item.Pest.Text,
			PestID:      item.Pest.ID,
			Frequency:   item.Frequency.Text,
			FrequencyID: item.Frequency.ID,
			Chemical:    item.Chemical.Text,
			ChemicalID:  item.Chemical.ID,
			PestCount:   numberOrZero(item.Count),
			PestValue:   numberOrZero(item.Value),
			TotalValue:  item.Total,
			WorkTime:    formatClockText(item.WorkTime),
			ItemCount:   numberOrNull(item.ItemCount),
		})
	}
	return payload, nil
}

// numberOrZero is used for fields the backend expects to default to 0.
func numberOrZero(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

// numberOrNull forwards text that is not a number as JSON null.
func numberOrNull(raw string) decimal.NullDecimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(value)
}

func formatPayloadDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(payloadDateLayout)
}

func formatPayloadTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(payloadTimeLayout)
}

func formatClockText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if parsed, ok := parseClock(raw); ok {
		return parsed.Format(payloadTimeLayout)
	}
	return raw
}

func parseClock(raw string) (time.Time, bool) {
	for _, layout := range []string{payloadTimeLayout, "15:04", "3:04PM", "3:04 PM"} {
		if parsed, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{payloadDateLayout, time.RFC3339, "2006-01-02T15:04:05", "02/01/2006"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return model.DateOnly(parsed), true
		}
	}
	return time.Time{}, false
}
