package console

import (
	"strings"
	"time"

	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/model"
)

var labels = map[string]string{
	"contractNo":         "Contract no.",
	"contractType":       "Contract type",
	"customer":           "Customer",
	"callType":           "Call type",
	"industry":           "Industry",
	"startDate":          "Start date",
	"endDate":            "End date",
	"reminderDate":       "Reminder date",
	"timeFrom":           "Time from",
	"timeTo":             "Time to",
	"billingFrequency":   "Billing frequency",
	"invoiceCount":       "Invoices",
	"contractValue":      "Contract value",
	"taxPercent":         "Tax %",
	"technician":         "Technician",
	"supervisor":         "Supervisor",
	"salesPerson":        "Sales person",
	"address":            "Address",
	"postalCode":         "Postal code",
	"contactName":        "Contact",
	"phone":              "Phone",
	"mobile":             "Mobile",
	"email":              "Email",
	"pestLine.pest":      "Pest",
	"pestLine.frequency": "Frequency",
	"pestLine.chemical":  "Chemical",
	"pestLine.count":     "Count",
	"pestLine.value":     "Value",
	"pestLine.workTime":  "Work time",
	"pestLine.itemCount": "Items",
	"pestLine.add":       "Add line",
	"pestLine.cancel":    "Cancel edit",
	"remarks":            "Remarks",
	"billingRemarks":     "Billing remarks",
	"attachment":         "Attachment",
	"submit":             "Save contract",
}

func label(id string) string {
	if l, ok := labels[id]; ok {
		return l
	}
	return id
}

// valueOf renders the current value of a control for display and for
// seeding the editor when the control gains focus.
func valueOf(snap builder.Snapshot, id string) string {
	field := model.Field(id)
	if field.IsLineField() {
		return lineValue(snap.Buffer.Item, field)
	}
	if id == builder.ControlAttachment {
		if snap.Draft.Attachment == nil {
			return ""
		}
		return snap.Draft.Attachment.FileName
	}

	draft := snap.Draft
	if ref := draft.Ref(field); ref != nil {
		return ref.Text
	}
	if slot := draft.Date(field); slot != nil {
		return formatTime(field, *slot)
	}
	if text := draft.Text(field); text != nil {
		return *text
	}
	return ""
}

func lineValue(item model.PestLineItem, field model.Field) string {
	switch field {
	case model.FieldLinePest:
		return item.Pest.Text
	case model.FieldLineFrequency:
		return item.Frequency.Text
	case model.FieldLineChemical:
		return item.Chemical.Text
	case model.FieldLineCount:
		return item.Count
	case model.FieldLineValue:
		return item.Value
	case model.FieldLineWorkTime:
		return item.WorkTime
	case model.FieldLineItemCount:
		return item.ItemCount
	}
	return ""
}

func formatTime(field model.Field, t *time.Time) string {
	if t == nil {
		return ""
	}
	if field == model.FieldTimeFrom || field == model.FieldTimeTo {
		return t.Format("15:04")
	}
	return t.Format("2006-01-02")
}

// filterOptions keeps the options whose name contains query, ignoring case.
func filterOptions(options []model.LookupOption, query string, limit int) []model.LookupOption {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]model.LookupOption, 0, limit)
	for _, option := range options {
		if query == "" || strings.Contains(strings.ToLower(option.Name), query) {
			out = append(out, option)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}
