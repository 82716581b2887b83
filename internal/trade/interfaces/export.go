package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	trade "sourcehub/internal/trade/domain"
)

// BuildTradePDF renders a trade confirmation document.
func BuildTradePDF(t *trade.Trade) ([]byte, error) {
	if t == nil {
		return nil, trade.ErrNilTrade
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Trade Confirmation")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Trade: %s", t.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Session: %s", t.SessionID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Buyer: %s", t.BuyerID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Supplier: %s", t.SupplierID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Requirement: %s", t.RequirementTitle))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", t.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Entry: %s agreement", t.EntryPath))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Initiated: %s", t.InitiatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if !t.SignedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Signed: %s", t.SignedAt.Format(time.RFC3339)))
		pdf.Ln(5)
	}
	if t.TrackingID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Tracking: %s (%s)", t.TrackingID, t.Carrier))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Product", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Quantity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Unit Price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(70, 6, t.ProductName, "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, fmt.Sprintf("%d", t.Quantity), "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", t.UnitPrice), "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", t.Value), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
