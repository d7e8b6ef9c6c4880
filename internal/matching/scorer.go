// Package matching reconciles extracted invoice lines with existing fuel
// records: plate resolution, candidate lookup, weighted scoring and
// classification.
package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

// Score compares one extracted line with one candidate record.
// Every dimension is in [0,1]; missing or unparsable inputs score 0.
//
// Algorithm:
// 1. Plate scores 1.0: candidates are already restricted to the resolved vehicle
// 2. Date, quantity and amount decay linearly to 0 at their tolerance
// 3. Fuel type scores 1.0 on equal codes, 0.5 within a compatibility group
// 4. Total is the weighted sum, rounded to 4 decimals
func Score(line domain.ExtractedLine, c domain.FuelRecordCandidate, tol domain.MatchingTolerances) domain.MatchScoreBreakdown {
	w := tol.Weights
	b := domain.MatchScoreBreakdown{
		Plate:    domain.DimensionScore{Score: 1, Weight: w.Plate, Detail: "plate resolved to vehicle"},
		Date:     scoreDate(line.Date, c.Date, tol.DateToleranceDays),
		Quantity: scorePercent("quantity", line.Quantity, c.Quantity, tol.QuantityTolerancePct),
		Amount:   scorePercent("amount", line.Amount, c.TotalCost, tol.AmountTolerancePct),
		FuelType: scoreFuelType(line.FuelType, c.FuelType),
	}
	b.Date.Weight = w.Date
	b.Quantity.Weight = w.Quantity
	b.Amount.Weight = w.Amount
	b.FuelType.Weight = w.FuelType

	var total float64
	for _, d := range b.Dimensions() {
		total += d.Score * d.Weight
	}
	b.TotalScore = normalize.Round(total, 4)
	return b
}

func scoreDate(raw *string, candidate time.Time, toleranceDays int) domain.DimensionScore {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return domain.DimensionScore{Detail: "no date on line"}
	}
	lineDate, ok := normalize.ParseMatchDate(*raw)
	if !ok {
		return domain.DimensionScore{Detail: fmt.Sprintf("cannot parse line date %q", *raw)}
	}
	if candidate.IsZero() {
		return domain.DimensionScore{Detail: "candidate has no date"}
	}

	diff := normalize.DaysBetween(lineDate, candidate)
	if diff == 0 {
		return domain.DimensionScore{
			Score:  1,
			Detail: fmt.Sprintf("same day %s", normalize.Day(lineDate).Format(time.DateOnly)),
		}
	}
	if toleranceDays <= 0 || diff >= toleranceDays {
		return domain.DimensionScore{
			Detail: fmt.Sprintf("%d days apart, outside %d-day tolerance", diff, toleranceDays),
		}
	}
	return domain.DimensionScore{
		Score:  normalize.Round(1-float64(diff)/float64(toleranceDays), 4),
		Detail: fmt.Sprintf("%d days apart, within %d-day tolerance", diff, toleranceDays),
	}
}

// scorePercent compares a line value with the candidate value as a
// percentage of the candidate value.
func scorePercent(label string, line *float64, candidate, tolerancePct float64) domain.DimensionScore {
	if line == nil || *line <= 0 {
		return domain.DimensionScore{Detail: fmt.Sprintf("no %s on line", label)}
	}
	if candidate <= 0 {
		return domain.DimensionScore{Detail: fmt.Sprintf("candidate has no %s", label)}
	}

	pct := math.Abs(*line-candidate) / candidate * 100
	if pct < 1e-9 {
		return domain.DimensionScore{
			Score:  1,
			Detail: fmt.Sprintf("%s equal (%s)", label, normalize.FormatFloat(candidate)),
		}
	}
	if tolerancePct <= 0 || pct >= tolerancePct {
		return domain.DimensionScore{
			Detail: fmt.Sprintf("%s differs by %.2f%%, outside %.2f%% tolerance (%s vs %s)",
				label, pct, tolerancePct, normalize.FormatFloat(*line), normalize.FormatFloat(candidate)),
		}
	}
	return domain.DimensionScore{
		Score: normalize.Round(1-pct/tolerancePct, 4),
		Detail: fmt.Sprintf("%s differs by %.2f%%, within %.2f%% tolerance (%s vs %s)",
			label, pct, tolerancePct, normalize.FormatFloat(*line), normalize.FormatFloat(candidate)),
	}
}

func scoreFuelType(line *string, candidate string) domain.DimensionScore {
	if line == nil || strings.TrimSpace(*line) == "" {
		return domain.DimensionScore{Detail: "no fuel type on line"}
	}
	a := CanonicalFuelType(*line)
	if a == "" {
		return domain.DimensionScore{Detail: fmt.Sprintf("unknown line fuel type %q", *line)}
	}
	b := CanonicalFuelType(candidate)
	if b == "" {
		return domain.DimensionScore{Detail: fmt.Sprintf("unknown candidate fuel type %q", candidate)}
	}

	switch {
	case a == b:
		return domain.DimensionScore{Score: 1, Detail: fmt.Sprintf("fuel type %s matches", a)}
	case FuelTypeCompatible(a, b):
		return domain.DimensionScore{Score: 0.5, Detail: fmt.Sprintf("fuel type %s compatible with %s", a, b)}
	default:
		return domain.DimensionScore{Detail: fmt.Sprintf("fuel type %s does not match %s", a, b)}
	}
}
