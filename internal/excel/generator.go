package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/pestops-contracts/internal/model"
)

const (
	summarySheet = "Summary"
	linesSheet   = "Pest lines"
	visitsSheet  = "Visits"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the contract ledger and its generated visit schedule.
func (g *Generator) Generate(report model.ScheduleReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, report)

	if _, err := file.NewSheet(linesSheet); err != nil {
		return nil, err
	}
	g.writeLines(file, report.Items)

	if _, err := file.NewSheet(visitsSheet); err != nil {
		return nil, err
	}
	g.writeVisits(file, report.Tickets)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, report model.ScheduleReport) {
	draft := report.Draft
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(summarySheet, cell, value)
	}

	rows := [][2]string{
		{"Contract no.", draft.ContractNumber},
		{"Contract type", draft.ContractType},
		{"Customer", draft.Customer.Text},
		{"Billing frequency", draft.BillingFrequency.Text},
		{"Start date", formatDate(draft.StartDate)},
		{"End date", formatDate(draft.EndDate)},
		{"Reminder date", formatDate(draft.ReminderDate)},
		{"Contract value", draft.ContractValue},
		{"Invoices", draft.InvoiceCount},
		{"Technician", draft.Technician.Text},
		{"Contact", strings.TrimSpace(draft.ContactName + " " + draft.Phone)},
	}
	for i, row := range rows {
		set(fmt.Sprintf("A%d", i+1), row[0])
		set(fmt.Sprintf("B%d", i+1), row[1])
	}

	next := len(rows) + 2
	set(fmt.Sprintf("A%d", next), "Pest lines")
	set(fmt.Sprintf("B%d", next), len(report.Items))
	set(fmt.Sprintf("A%d", next+1), "Lines total")
	set(fmt.Sprintf("B%d", next+1), sumTotals(report.Items).String())
	set(fmt.Sprintf("A%d", next+2), "Visits")
	set(fmt.Sprintf("B%d", next+2), len(report.Tickets))

	_ = file.SetColWidth(summarySheet, "A", "A", 22)
	_ = file.SetColWidth(summarySheet, "B", "B", 40)
}

func (g *Generator) writeLines(file *excelize.File, items []model.PestLineItem) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(linesSheet, cell, value)
	}

	headers := []string{"#", "Pest", "Frequency", "Chemical", "Count", "Unit value", "Total", "Work time", "Items"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, item := range items {
		row := i + 2
		set(fmt.Sprintf("A%d", row), i+1)
		set(fmt.Sprintf("B%d", row), item.Pest.Text)
		set(fmt.Sprintf("C%d", row), item.Frequency.Text)
		set(fmt.Sprintf("D%d", row), item.Chemical.Text)
		set(fmt.Sprintf("E%d", row), item.Count)
		set(fmt.Sprintf("F%d", row), item.Value)
		set(fmt.Sprintf("G%d", row), item.Total)
		set(fmt.Sprintf("H%d", row), item.WorkTime)
		set(fmt.Sprintf("I%d", row), item.ItemCount)
	}

	_ = file.SetColWidth(linesSheet, "A", "A", 6)
	_ = file.SetColWidth(linesSheet, "B", "D", 24)
	_ = file.SetColWidth(linesSheet, "E", "I", 12)
}

func (g *Generator) writeVisits(file *excelize.File, tickets []model.Ticket) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(visitsSheet, cell, value)
	}

	set("A1", "#")
	set("B1", "Date")
	set("C1", "Day")
	for i, ticket := range tickets {
		row := i + 2
		set(fmt.Sprintf("A%d", row), i+1)
		set(fmt.Sprintf("B%d", row), ticket.TicketDate)
		set(fmt.Sprintf("C%d", row), ticket.TicketDay)
	}

	_ = file.SetColWidth(visitsSheet, "A", "A", 6)
	_ = file.SetColWidth(visitsSheet, "B", "C", 16)
}

// sumTotals adds the committed line totals. Totals that are not numbers
// are skipped.
func sumTotals(items []model.PestLineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		value, err := decimal.NewFromString(strings.TrimSpace(item.Total))
		if err != nil {
			continue
		}
		sum = sum.Add(value)
	}
	return sum
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
