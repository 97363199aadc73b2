package model

import (
	"strings"
	"time"
)

// ContractDraft is the in-progress contract record of one builder session.
type ContractDraft struct {
	ContractID     string `json:"contractId,omitempty"`
	ContractNumber string `json:"contractNo"`
	ContractType   string `json:"contractType"`

	Customer         Ref `json:"customer"`
	CallType         Ref `json:"callType"`
	Industry         Ref `json:"industry"`
	Technician       Ref `json:"technician"`
	Supervisor       Ref `json:"supervisor"`
	SalesPerson      Ref `json:"salesPerson"`
	BillingFrequency Ref `json:"billingFrequency"`

	StartDate    *time.Time `json:"startDate,omitempty"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	ReminderDate *time.Time `json:"reminderDate,omitempty"`
	TimeFrom     *time.Time `json:"timeFrom,omitempty"`
	TimeTo       *time.Time `json:"timeTo,omitempty"`

	ContractValue string `json:"contractValue"`
	InvoiceCount  string `json:"invoiceCount"`
	TaxPercent    string `json:"taxPercent"`

	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email"`

	Remarks        string `json:"remarks"`
	BillingRemarks string `json:"billingRemarks"`

	Attachment *Attachment `json:"attachment,omitempty"`
}

// Attachment is a file picked by the operator. Content stays raw until the
// payload is assembled.
type Attachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"-"`
	Size        int    `json:"size"`
}

// CustomerDetails are the contact fields merged into the draft after a
// customer is chosen.
type CustomerDetails struct {
	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email"`
}

// Ref returns the reference stored under field, or nil.
func (d *ContractDraft) Ref(field Field) *Ref {
	switch field {
	case FieldCustomer:
		return &d.Customer
	case FieldCallType:
		return &d.CallType
	case FieldIndustry:
		return &d.Industry
	case FieldTechnician:
		return &d.Technician
	case FieldSupervisor:
		return &d.Supervisor
	case FieldSalesPerson:
		return &d.SalesPerson
	case FieldBillingFrequency:
		return &d.BillingFrequency
	default:
		return nil
	}
}

// Text returns the free-text field stored under field, or nil.
func (d *ContractDraft) Text(field Field) *string {
	switch field {
	case FieldContractNumber:
		return &d.ContractNumber
	case FieldContractType:
		return &d.ContractType
	case FieldContractValue:
		return &d.ContractValue
	case FieldInvoiceCount:
		return &d.InvoiceCount
	case FieldTaxPercent:
		return &d.TaxPercent
	case FieldAddress:
		return &d.Address
	case FieldPostalCode:
		return &d.PostalCode
	case FieldContactName:
		return &d.ContactName
	case FieldPhone:
		return &d.Phone
	case FieldMobile:
		return &d.Mobile
	case FieldEmail:
		return &d.Email
	case FieldRemarks:
		return &d.Remarks
	case FieldBillingRemarks:
		return &d.BillingRemarks
	default:
		return nil
	}
}

// Date returns the date or time-of-day slot stored under field, or nil.
func (d *ContractDraft) Date(field Field) **time.Time {
	switch field {
	case FieldStartDate:
		return &d.StartDate
	case FieldEndDate:
		return &d.EndDate
	case FieldReminderDate:
		return &d.ReminderDate
	case FieldTimeFrom:
		return &d.TimeFrom
	case FieldTimeTo:
		return &d.TimeTo
	default:
		return nil
	}
}

func (d *ContractDraft) ApplyCustomerDetails(details CustomerDetails) {
	d.Address = details.Address
	d.PostalCode = details.PostalCode
	d.ContactName = details.ContactName
	d.Phone = details.Phone
	d.Mobile = details.Mobile
	d.Email = details.Email
}

// Clone returns a deep copy safe to hand to another goroutine.
func (d ContractDraft) Clone() ContractDraft {
	clone := d
	clone.StartDate = cloneTime(d.StartDate)
	clone.EndDate = cloneTime(d.EndDate)
	clone.ReminderDate = cloneTime(d.ReminderDate)
	clone.TimeFrom = cloneTime(d.TimeFrom)
	clone.TimeTo = cloneTime(d.TimeTo)
	if d.Attachment != nil {
		attachment := *d.Attachment
		attachment.Content = append([]byte(nil), d.Attachment.Content...)
		clone.Attachment = &attachment
	}
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func IsBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}
