package model

// Ticket is one generated service visit.
type Ticket struct {
	TicketDate string `json:"ticketDate"`
	TicketDay  string `json:"ticketDay"`
}

// ScheduleReport is the data rendered into the schedule workbook and the
// contract summary document.
type ScheduleReport struct {
	Draft   ContractDraft
	Items   []PestLineItem
	Tickets []Ticket
}
