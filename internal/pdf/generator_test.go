package pdf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/pestops-contracts/internal/model"
)

func TestGenerateSummary(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	report := model.ScheduleReport{
		Draft: model.ContractDraft{
			ContractNumber: "PC-2026-001",
			Customer:       model.Resolved("cust-1", "Café Harbour"),
			StartDate:      &start,
			ContractValue:  "1200",
			TaxPercent:     "9",
			Remarks:        "Back door code 1234\nCall before visit",
		},
		Items:   []model.PestLineItem{{Pest: model.Resolved("pest-1", "Rodent"), Count: "3", Value: "50", Total: "150"}},
		Tickets: []model.Ticket{{TicketDate: "2026-01-05", TicketDay: "Monday"}},
	}

	data, err := NewGenerator().Generate(report)
	require.NoError(t, err)
	assert.True(t, len(data) > 500)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestAmounts(t *testing.T) {
	value, tax, gross := amounts("1200", "9")
	assert.Equal(t, "1200.00", value.StringFixed(2))
	assert.Equal(t, "108.00", tax.StringFixed(2))
	assert.Equal(t, "1308.00", gross.StringFixed(2))

	value, tax, gross = amounts("", "abc")
	assert.True(t, value.IsZero())
	assert.True(t, tax.IsZero())
	assert.True(t, gross.IsZero())
}
