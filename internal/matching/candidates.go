package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

// DefaultLookbackDays is the window used when a line has no usable date.
const DefaultLookbackDays = 90

// CandidateFinder loads the fuel records a line may match.
type CandidateFinder struct {
	store        domain.RecordStore
	now          func() time.Time
	lookbackDays int
}

// NewCandidateFinder creates a finder reading from store.
func NewCandidateFinder(store domain.RecordStore) *CandidateFinder {
	return &CandidateFinder{
		store:        store,
		now:          time.Now,
		lookbackDays: DefaultLookbackDays,
	}
}

// Window returns the inclusive calendar-day range searched for a line date.
// A nil date yields the lookback window ending today.
func (f *CandidateFinder) Window(date *time.Time, toleranceDays int) domain.DateRange {
	if toleranceDays < 0 {
		toleranceDays = 0
	}
	if date == nil {
		today := normalize.Day(f.now())
		return domain.DateRange{
			From: today.AddDate(0, 0, -f.lookbackDays),
			To:   endOfDay(today),
		}
	}
	day := normalize.Day(*date)
	return domain.DateRange{
		From: day.AddDate(0, 0, -toleranceDays),
		To:   endOfDay(day.AddDate(0, 0, toleranceDays)),
	}
}

// Find returns the vehicle's records inside the window, newest first.
func (f *CandidateFinder) Find(ctx context.Context, tenantID, vehicleID string, date *time.Time, toleranceDays int) ([]domain.FuelRecordCandidate, error) {
	if tenantID == "" || vehicleID == "" {
		return nil, fmt.Errorf("%w: tenantID and vehicleID are required", domain.ErrInvalidInput)
	}

	records, err := f.store.FindFuelRecords(ctx, tenantID, vehicleID, f.Window(date, toleranceDays))
	if err != nil {
		return nil, fmt.Errorf("failed to get fuel records: %w", err)
	}

	candidates := make([]domain.FuelRecordCandidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, rec.Candidate())
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Date.After(candidates[j].Date)
	})
	return candidates, nil
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
