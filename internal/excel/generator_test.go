package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/pestops-contracts/internal/model"
)

func TestGenerateWorkbook(t *testing.T) {
	start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	report := model.ScheduleReport{
		Draft: model.ContractDraft{
			ContractNumber: "PC-2026-001",
			Customer:       model.Resolved("cust-1", "Harbour Foods"),
			StartDate:      &start,
		},
		Items: []model.PestLineItem{
			{Key: "line-1", Pest: model.Resolved("pest-1", "Rodent"), Count: "3", Value: "50", Total: "150"},
			{Key: "line-2", Pest: model.Resolved("pest-2", "Cockroach"), Count: "2", Value: "12.5", Total: "25"},
			{Key: "line-3", Pest: model.Unresolved("Ants"), Total: ""},
		},
		Tickets: []model.Ticket{{TicketDate: "2026-01-05", TicketDay: "Monday"}},
	}

	data, err := NewGenerator().Generate(report)
	require.NoError(t, err)

	file, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, []string{summarySheet, linesSheet, visitsSheet}, file.GetSheetList())

	customer, err := file.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Harbour Foods", customer)

	startCell, err := file.GetCellValue(summarySheet, "B5")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", startCell)

	total, err := file.GetCellValue(summarySheet, "B14")
	require.NoError(t, err)
	assert.Equal(t, "175", total)

	pest, err := file.GetCellValue(linesSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Cockroach", pest)

	day, err := file.GetCellValue(visitsSheet, "C2")
	require.NoError(t, err)
	assert.Equal(t, "Monday", day)
}
