package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	visits "geofleet-cloud/internal/visits/domain"
)

func formatInstant(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDuration(minutes *float64) string {
	if minutes == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *minutes)
}

// BuildVisitsPDF renders a visit listing as PDF.
func BuildVisitsPDF(title string, items []visits.Visit) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Zone Visits")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if title != "" {
		pdf.Cell(0, 6, title)
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Unit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Zone", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Group", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Entry (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Exit (UTC)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Minutes", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range items {
		pdf.CellFormat(30, 6, item.Unit, "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, item.Zone, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, item.Group, "1", 0, "L", false, 0, "")
		pdf.CellFormat(55, 6, formatInstant(item.Start), "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 6, formatInstant(item.End), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, formatDuration(item.DurationMinutes), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildVisitsXLSX renders a visit listing as XLSX.
func BuildVisitsXLSX(title string, items []visits.Visit) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "visits"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Zone Visits")
	if title != "" {
		_ = f.SetCellValue(sheet, "A2", title)
	}

	headers := []string{"Unit", "Zone", "Group", "Entry (UTC)", "Exit (UTC)", "Minutes"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, item := range items {
		row := i + 5
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), item.Unit)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.Zone)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.Group)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), formatInstant(item.Start))
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), formatInstant(item.End))
		if item.DurationMinutes != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), *item.DurationMinutes)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
