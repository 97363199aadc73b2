package model

import "github.com/shopspring/decimal"

// ContractPayload is the persistence shape sent to the gateway. Every
// reference is carried as a name/id pair.
type ContractPayload struct {
	ContractID     string `json:"contractId,omitempty"`
	ContractNumber string `json:"contractNo"`
	ContractType   string `json:"contractType"`

	Customer           string `json:"customer"`
	CustomerID         string `json:"customerId"`
	CallType           string `json:"callType"`
	CallTypeID         string `json:"callTypeId"`
	Industry           string `json:"industry"`
	IndustryID         string `json:"industryId"`
	Technician         string `json:"technician"`
	TechnicianID       string `json:"technicianId"`
	Supervisor         string `json:"supervisor"`
	SupervisorID       string `json:"supervisorId"`
	SalesPerson        string `json:"salesPerson"`
	SalesPersonID      string `json:"salesPersonId"`
	BillingFrequency   string `json:"billingFrequency"`
	BillingFrequencyID string `json:"billingFrequencyId"`

	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	ReminderDate string `json:"reminderDate"`
	TimeFrom     string `json:"timeFrom"`
	TimeTo       string `json:"timeTo"`

	ContractValue decimal.Decimal     `json:"contractValue"`
	TaxPercent    decimal.Decimal     `json:"taxPercent"`
	InvoiceCount  decimal.NullDecimal `json:"invoiceCount"`

	Address     string `json:"address"`
	PostalCode  string `json:"postalCode"`
	ContactName string `json:"contactName"`
	Phone       string `json:"phone"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email"`

	Remarks        string `json:"remarks"`
	BillingRemarks string `json:"billingRemarks"`

	Attachment *AttachmentPayload `json:"attachment,omitempty"`
	PestItems  []LineItemPayload  `json:"pestItems"`
}

type AttachmentPayload struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

type LineItemPayload struct {
	ID          string              `json:"id,omitempty"`
	Pest        string              `json:"pest"`
	PestID      string              `json:"pestId"`
	Frequency   string              `json:"frequency"`
	FrequencyID string              `json:"frequencyId"`
	Chemical    string              `json:"chemical"`
	ChemicalID  string              `json:"chemicalId"`
	PestCount   decimal.Decimal     `json:"pestCount"`
	PestValue   decimal.Decimal     `json:"pestValue"`
	TotalValue  string              `json:"totalValue"`
	WorkTime    string              `json:"workTime"`
	ItemCount   decimal.NullDecimal `json:"itemCount"`
}
