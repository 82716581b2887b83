package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	trade "sourcehub/internal/trade/domain"
)

// BuildCommissionXLSX renders a commission report over the given trades.
// Commission is computed at read time from the current rate.
func BuildCommissionXLSX(trades []trade.Trade, rate float64, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	tradesSheet := "trades"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(tradesSheet)

	var totalValue, totalCommission float64
	for i := range trades {
		totalValue += trades[i].Value
		totalCommission += trades[i].Commission(rate)
	}

	_ = f.SetCellValue(summarySheet, "A1", "Commission Report")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Rate")
	_ = f.SetCellValue(summarySheet, "B4", rate)
	_ = f.SetCellValue(summarySheet, "A5", "Trades")
	_ = f.SetCellValue(summarySheet, "B5", len(trades))
	_ = f.SetCellValue(summarySheet, "A6", "Total Value")
	_ = f.SetCellValue(summarySheet, "B6", totalValue)
	_ = f.SetCellValue(summarySheet, "A7", "Total Commission")
	_ = f.SetCellValue(summarySheet, "B7", totalCommission)

	headers := []string{"Trade", "Buyer", "Supplier", "Product", "Quantity", "Unit Price", "Value", "Commission", "Finished At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(tradesSheet, cell, header)
	}
	for i := range trades {
		t := &trades[i]
		row := i + 2
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("A%d", row), t.ID)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("B%d", row), t.BuyerID)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("C%d", row), t.SupplierID)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("D%d", row), t.ProductName)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("E%d", row), t.Quantity)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("F%d", row), t.UnitPrice)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("G%d", row), t.Value)
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("H%d", row), t.Commission(rate))
		_ = f.SetCellValue(tradesSheet, fmt.Sprintf("I%d", row), t.UpdatedAt.Format(time.RFC3339))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
