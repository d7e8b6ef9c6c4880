package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestWriteMatches(t *testing.T) {
	result := domain.MatchingResult{
		Results: []domain.MatchResult{
			{
				LineNumber: 1,
				Line: domain.ExtractedLine{
					LineNumber: 1,
					Plate:      ptr("AB123CD"),
					Date:       ptr("2024-03-10"),
					Quantity:   ptr(45.2),
					Amount:     ptr(72.3),
				},
				Status:          domain.MatchAutoMatched,
				MatchedRecordID: ptr("r-1"),
				Score:           ptr(0.9),
				Breakdown: &domain.MatchScoreBreakdown{
					Plate:    domain.DimensionScore{Score: 1, Weight: 0.3},
					FuelType: domain.DimensionScore{Score: 0.5, Weight: 0.1},
				},
				VehicleID:      ptr("v-1"),
				CandidateCount: 1,
			},
			{
				LineNumber: 2,
				Line:       domain.ExtractedLine{LineNumber: 2, Plate: ptr("ZZ999ZZ")},
				Status:     domain.MatchError,
				Error:      "vehicle not found",
			},
		},
	}
	result.Summary.Add(domain.MatchAutoMatched)
	result.Summary.Add(domain.MatchError)

	var buf bytes.Buffer
	require.NoError(t, WriteMatches(&buf, result))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	cell := func(name string) string {
		v, err := f.GetCellValue(SheetName, name)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	assert.Equal(t, "Line", cell("A1"))
	assert.Equal(t, "Error", cell("Q1"))

	assert.Equal(t, "1", cell("A2"))
	assert.Equal(t, "AB123CD", cell("B2"))
	assert.Equal(t, "45.2", cell("E2"))
	assert.Equal(t, "AUTO_MATCHED", cell("G2"))
	assert.Equal(t, "0.9", cell("H2"))
	assert.Equal(t, "r-1", cell("I2"))
	assert.Equal(t, "1", cell("L2"))
	assert.Equal(t, "0.5", cell("P2"))

	assert.Equal(t, "ERROR", cell("G3"))
	assert.Empty(t, cell("H3"))
	assert.Empty(t, cell("L3"))
	assert.Equal(t, "vehicle not found", cell("Q3"))

	assert.Equal(t, "Total", cell("A5"))
	assert.Equal(t, "2", cell("B5"))
	assert.Equal(t, "Errors", cell("A9"))
	assert.Equal(t, "1", cell("B9"))
}

func TestWriteMatchesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatches(&buf, domain.MatchingResult{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue(SheetName, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Total", v)
}
