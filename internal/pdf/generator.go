package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/pestops-contracts/internal/model"
)

const fontName = "Helvetica"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the one-page contract summary handed to the customer.
func (g *Generator) Generate(report model.ScheduleReport) ([]byte, error) {
	draft := report.Draft

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(fontName, "B", 14)
	pdf.CellFormat(0, 10, "Pest Control Service Contract", "", 1, "C", false, 0, "")

	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Contract No. %s (%s)", safeValue(draft.ContractNumber), safeValue(draft.ContractType))), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Period %s to %s", formatDate(draft.StartDate), formatDate(draft.EndDate)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addBlock(pdf, tr, "Customer", []string{
		draft.Customer.Text,
		fmt.Sprintf("Address: %s %s", safeValue(draft.Address), draft.PostalCode),
		fmt.Sprintf("Contact: %s", safeValue(draft.ContactName)),
		fmt.Sprintf("Phone: %s / %s", safeValue(draft.Phone), safeValue(draft.Mobile)),
		fmt.Sprintf("Email: %s", safeValue(draft.Email)),
	})
	pdf.Ln(2)
	addBlock(pdf, tr, "Service", []string{
		fmt.Sprintf("Technician: %s", safeValue(draft.Technician.Text)),
		fmt.Sprintf("Supervisor: %s", safeValue(draft.Supervisor.Text)),
		fmt.Sprintf("Preferred time: %s - %s", formatClock(draft.TimeFrom), formatClock(draft.TimeTo)),
		fmt.Sprintf("Billing: %s, %s invoices", safeValue(draft.BillingFrequency.Text), safeValue(draft.InvoiceCount)),
	})
	pdf.Ln(4)

	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, "Pests covered", "", 1, "L", false, 0, "")

	headers := []string{"Pest", "Frequency", "Chemical", "Count", "Unit value", "Total"}
	colWidths := []float64{40, 32, 38, 20, 25, 25}
	drawTableRow(pdf, tr, headers, colWidths, true)
	for _, item := range report.Items {
		drawTableRow(pdf, tr, []string{
			item.Pest.Text,
			item.Frequency.Text,
			item.Chemical.Text,
			item.Count,
			item.Value,
			item.Total,
		}, colWidths, false)
	}

	value, tax, gross := amounts(draft.ContractValue, draft.TaxPercent)
	pdf.Ln(2)
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract value: %s", value.StringFixed(2)), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Tax (%s%%): %s", safeValue(draft.TaxPercent), tax.StringFixed(2)), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %s", gross.StringFixed(2)), "", 1, "R", false, 0, "")

	if len(report.Tickets) > 0 {
		pdf.Ln(2)
		pdf.SetFont(fontName, "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("Scheduled visits (%d)", len(report.Tickets)), "", 1, "L", false, 0, "")
		pdf.SetFont(fontName, "", 10)
		visits := make([]string, 0, len(report.Tickets))
		for _, ticket := range report.Tickets {
			visits = append(visits, fmt.Sprintf("%s (%s)", ticket.TicketDate, ticket.TicketDay))
		}
		pdf.MultiCell(0, 5, tr(strings.Join(visits, ", ")), "", "L", false)
	}

	if strings.TrimSpace(draft.Remarks) != "" {
		pdf.Ln(2)
		addBlock(pdf, tr, "Remarks", strings.Split(draft.Remarks, "\n"))
	}

	pdf.Ln(6)
	signatureBlock(pdf, "Customer", draft.ContactName, tr)
	signatureBlock(pdf, "Sales", draft.SalesPerson.Text, tr)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addBlock(pdf *gofpdf.Fpdf, tr func(string) string, title string, lines []string) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, label, name string, tr func(string) string) {
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s: ______________________ /%s/", label, safeValue(name))), "", 1, "L", false, 0, "")
}

// amounts returns the net value, the tax on it and the gross total.
// Fields that are not numbers count as zero.
func amounts(rawValue, rawTax string) (decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	value, err := decimal.NewFromString(strings.TrimSpace(rawValue))
	if err != nil {
		value = decimal.Zero
	}
	percent, err := decimal.NewFromString(strings.TrimSpace(rawTax))
	if err != nil {
		percent = decimal.Zero
	}
	tax := value.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	return value, tax, value.Add(tax)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}

func formatClock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04")
}
