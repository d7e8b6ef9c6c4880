// Package export writes matching results as spreadsheets for offline review.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

// SheetName is the worksheet holding one row per matched line.
const SheetName = "Matches"

var headers = []string{
	"Line", "Plate", "Date", "Fuel Type", "Quantity", "Amount",
	"Status", "Score", "Matched Record", "Vehicle", "Candidates",
	"Plate Score", "Date Score", "Quantity Score", "Amount Score", "Fuel Type Score",
	"Error",
}

// WriteMatches renders the results as an XLSX workbook into w.
func WriteMatches(w io.Writer, result domain.MatchingResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, r := range result.Results {
		row := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, value)
		}

		set(1, r.LineNumber)
		set(2, derefString(r.Line.Plate))
		set(3, derefString(r.Line.Date))
		set(4, derefString(r.Line.FuelType))
		set(5, derefFloat(r.Line.Quantity))
		set(6, derefFloat(r.Line.Amount))
		set(7, string(r.Status))
		set(8, derefFloat(r.Score))
		set(9, derefString(r.MatchedRecordID))
		set(10, derefString(r.VehicleID))
		set(11, r.CandidateCount)
		if r.Breakdown != nil {
			for j, d := range r.Breakdown.Dimensions() {
				set(12+j, d.Score)
			}
		}
		set(17, r.Error)
	}

	summary := result.Summary
	row := len(result.Results) + 3
	for i, v := range []any{
		"Total", summary.Total,
		"Auto matched", summary.AutoMatched,
		"Suggested", summary.Suggested,
		"Unmatched", summary.Unmatched,
		"Errors", summary.Errors,
	} {
		cell, _ := excelize.CoordinatesToCellName(i%2+1, row+i/2)
		_ = f.SetCellValue(SheetName, cell, v)
	}

	_ = f.SetColWidth(SheetName, "B", "B", 12)
	_ = f.SetColWidth(SheetName, "I", "J", 38)
	_ = f.SetColWidth(SheetName, "Q", "Q", 40)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
