package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrWeightSum reports dimension weights that do not add up to 1.0.
// It is a configuration warning: scoring still works with any weights.
var ErrWeightSum = errors.New("matching weights do not sum to 1.0")

// MatchingWeights are the per-dimension coefficients of the total score.
type MatchingWeights struct {
	Plate    float64 `json:"plate" yaml:"plate"`
	Date     float64 `json:"date" yaml:"date"`
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Amount   float64 `json:"amount" yaml:"amount"`
	FuelType float64 `json:"fuelType" yaml:"fuelType"`
}

// Sum returns the total of all weights.
func (w MatchingWeights) Sum() float64 {
	return w.Plate + w.Date + w.Quantity + w.Amount + w.FuelType
}

// MatchingTolerances is the tunable scoring configuration.
type MatchingTolerances struct {
	DateToleranceDays    int             `json:"dateToleranceDays" yaml:"dateToleranceDays"`
	QuantityTolerancePct float64         `json:"quantityTolerancePct" yaml:"quantityTolerancePct"`
	AmountTolerancePct   float64         `json:"amountTolerancePct" yaml:"amountTolerancePct"`
	AutoMatchThreshold   float64         `json:"autoMatchThreshold" yaml:"autoMatchThreshold"`
	Weights              MatchingWeights `json:"weights" yaml:"weights"`
}

// DefaultTolerances returns the tolerances used when a template sets none.
func DefaultTolerances() MatchingTolerances {
	return MatchingTolerances{
		DateToleranceDays:    3,
		QuantityTolerancePct: 5,
		AmountTolerancePct:   5,
		AutoMatchThreshold:   0.85,
		Weights: MatchingWeights{
			Plate:    0.30,
			Date:     0.25,
			Quantity: 0.20,
			Amount:   0.15,
			FuelType: 0.10,
		},
	}
}

// Validate checks value ranges. It does not require weights to sum to 1.0;
// use CheckWeights for that.
func (t MatchingTolerances) Validate() error {
	if t.DateToleranceDays < 0 {
		return fmt.Errorf("%w: dateToleranceDays must not be negative", ErrInvalidInput)
	}
	if t.QuantityTolerancePct < 0 || t.AmountTolerancePct < 0 {
		return fmt.Errorf("%w: tolerance percentages must not be negative", ErrInvalidInput)
	}
	if t.AutoMatchThreshold < 0 || t.AutoMatchThreshold > 1 {
		return fmt.Errorf("%w: autoMatchThreshold must be between 0 and 1", ErrInvalidInput)
	}
	w := t.Weights
	if w.Plate < 0 || w.Date < 0 || w.Quantity < 0 || w.Amount < 0 || w.FuelType < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidInput)
	}
	return nil
}

// CheckWeights returns ErrWeightSum when the weights do not sum to 1.0.
// Total scores can exceed 1.0 in that case.
func (t MatchingTolerances) CheckWeights() error {
	if sum := t.Weights.Sum(); math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: sum is %.4f", ErrWeightSum, sum)
	}
	return nil
}

// IsZero reports whether no tolerance was configured at all.
func (t MatchingTolerances) IsZero() bool {
	return t == MatchingTolerances{}
}

// FuelRecordCandidate is a snapshot of an existing fuel record eligible for matching.
// Zero quantity or cost means the value is unknown.
type FuelRecordCandidate struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Quantity  float64   `json:"quantity"`
	TotalCost float64   `json:"totalCost"`
	FuelType  string    `json:"fuelType"`
}

// DimensionScore is the explainable score of one comparison dimension.
type DimensionScore struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail"`
}

// MatchScoreBreakdown explains how a total score was reached.
type MatchScoreBreakdown struct {
	Plate      DimensionScore `json:"plate"`
	Date       DimensionScore `json:"date"`
	Quantity   DimensionScore `json:"quantity"`
	Amount     DimensionScore `json:"amount"`
	FuelType   DimensionScore `json:"fuelType"`
	TotalScore float64        `json:"totalScore"`
}

// Dimensions returns the five dimension scores in a fixed order.
func (b MatchScoreBreakdown) Dimensions() []DimensionScore {
	return []DimensionScore{b.Plate, b.Date, b.Quantity, b.Amount, b.FuelType}
}

// MatchStatus is the outcome of matching one line.
type MatchStatus string

const (
	MatchAutoMatched MatchStatus = "AUTO_MATCHED"
	MatchSuggested   MatchStatus = "SUGGESTED"
	MatchUnmatched   MatchStatus = "UNMATCHED"
	MatchError       MatchStatus = "ERROR"
)

// MatchResult is the outcome of matching one extracted line.
// Status ERROR implies Score and Breakdown are nil.
type MatchResult struct {
	LineNumber      int                  `json:"lineNumber"`
	Line            ExtractedLine        `json:"line"`
	Status          MatchStatus          `json:"status"`
	MatchedRecordID *string              `json:"matchedRecordId"`
	Score           *float64             `json:"score"`
	Breakdown       *MatchScoreBreakdown `json:"breakdown"`
	VehicleID       *string              `json:"vehicleId"`
	CandidateCount  int                  `json:"candidateCount"`
	Error           string               `json:"error,omitempty"`
}

// MatchingSummary counts results per status.
type MatchingSummary struct {
	Total       int `json:"total"`
	AutoMatched int `json:"autoMatched"`
	Suggested   int `json:"suggested"`
	Unmatched   int `json:"unmatched"`
	Errors      int `json:"errors"`
}

// Add counts one result.
func (s *MatchingSummary) Add(status MatchStatus) {
	s.Total++
	switch status {
	case MatchAutoMatched:
		s.AutoMatched++
	case MatchSuggested:
		s.Suggested++
	case MatchUnmatched:
		s.Unmatched++
	case MatchError:
		s.Errors++
	}
}

// MatchingResult is the outcome of matching a whole extraction.
type MatchingResult struct {
	Results []MatchResult   `json:"results"`
	Summary MatchingSummary `json:"summary"`
}
