package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nurpe/pestops-contracts/internal/model"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type dateRangeWire struct {
	EndDate      string `json:"endDate"`
	ReminderDate string `json:"reminderDate"`
}

type customerWire struct {
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email"`
}

type contractWire struct {
	ContractID         flexString `json:"contractId"`
	ContractNumber     string     `json:"contractNo"`
	ContractType       string     `json:"contractType"`
	Customer           string     `json:"customer"`
	CustomerID         flexString `json:"customerId"`
	CallType           string     `json:"callType"`
	CallTypeID         flexString `json:"callTypeId"`
	Industry           string     `json:"industry"`
	IndustryID         flexString `json:"industryId"`
	Technician         string     `json:"technician"`
	TechnicianID       flexString `json:"technicianId"`
	Supervisor         string     `json:"supervisor"`
	SupervisorID       flexString `json:"supervisorId"`
	SalesPerson        string     `json:"salesPerson"`
	SalesPersonID      flexString `json:"salesPersonId"`
	BillingFrequency   string     `json:"billingFrequency"`
	BillingFrequencyID flexString `json:"billingFrequencyId"`
	StartDate          string     `json:"startDate"`
	EndDate            string     `json:"endDate"`
	ReminderDate       string     `json:"reminderDate"`
	TimeFrom           string     `json:"timeFrom"`
	TimeTo             string     `json:"timeTo"`
	ContractValue      flexString `json:"contractValue"`
	InvoiceCount       flexString `json:"invoiceCount"`
	TaxPercent         flexString `json:"taxPercent"`
	Address            string     `json:"address"`
	PostalCode         string     `json:"postalCode"`
	ContactName        string     `json:"contactName"`
	Phone              string     `json:"phone"`
	Mobile             string     `json:"mobile"`
	Email              string     `json:"email"`
	Remarks            string     `json:"remarks"`
	BillingRemarks     string     `json:"billingRemarks"`
	PestItems          []struct {
		ID          flexString `json:"id"`
		Pest        string     `json:"pest"`
		PestID      flexString `json:"pestId"`
		Frequency   string     `json:"frequency"`
		FrequencyID flexString `json:"frequencyId"`
		Chemical    string     `json:"chemical"`
		ChemicalID  flexString `json:"chemicalId"`
		PestCount   flexString `json:"pestCount"`
		PestValue   flexString `json:"pestValue"`
		TotalValue  flexString `json:"totalValue"`
		WorkTime    string     `json:"workTime"`
		ItemCount   flexString `json:"itemCount"`
	} `json:"pestItems"`
}

// toDetail converts the wire record. Line item keys are left empty; the
// ledger assigns its own keys when it is seeded.
func (w contractWire) toDetail() *ContractDetail {
	draft := model.ContractDraft{
		ContractID:       string(w.ContractID),
		ContractNumber:   w.ContractNumber,
		ContractType:     w.ContractType,
		Customer:         model.Resolved(string(w.CustomerID), w.Customer),
		CallType:         model.Resolved(string(w.CallTypeID), w.CallType),
		Industry:         model.Resolved(string(w.IndustryID), w.Industry),
		Technician:       model.Resolved(string(w.TechnicianID), w.Technician),
		Supervisor:       model.Resolved(string(w.SupervisorID), w.Supervisor),
		SalesPerson:      model.Resolved(string(w.SalesPersonID), w.SalesPerson),
		BillingFrequency: model.Resolved(string(w.BillingFrequencyID), w.BillingFrequency),
		StartDate:        parseDate(w.StartDate),
		EndDate:          parseDate(w.EndDate),
		ReminderDate:     parseDate(w.ReminderDate),
		TimeFrom:         parseClock(w.TimeFrom),
		TimeTo:           parseClock(w.TimeTo),
		ContractValue:    string(w.ContractValue),
		InvoiceCount:     string(w.InvoiceCount),
		TaxPercent:       string(w.TaxPercent),
		Address:          w.Address,
		PostalCode:       w.PostalCode,
		ContactName:      w.ContactName,
		Phone:            w.Phone,
		Mobile:           w.Mobile,
		Email:            w.Email,
		Remarks:          w.Remarks,
		BillingRemarks:   w.BillingRemarks,
	}

	items := make([]model.PestLineItem, 0, len(w.PestItems))
	for _, item := range w.PestItems {
		items = append(items, model.PestLineItem{
			ID:        string(item.ID),
			Pest:      model.Resolved(string(item.PestID), item.Pest),
			Frequency: model.Resolved(string(item.FrequencyID), item.Frequency),
			Chemical:  model.Resolved(string(item.ChemicalID), item.Chemical),
			Count:     string(item.PestCount),
			Value:     string(item.PestValue),
			Total:     string(item.TotalValue),
			WorkTime:  item.WorkTime,
			ItemCount: string(item.ItemCount),
		})
	}
	return &ContractDetail{Draft: draft, Items: items}
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	layouts := []string{
		dateLayout,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"02/01/2006",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			date := model.DateOnly(parsed)
			return &date
		}
	}
	return nil
}

func parseClock(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{timeLayout, "15:04"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}
	return nil
}
