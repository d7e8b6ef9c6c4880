package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

var tracer = otel.Tracer("fuelrecon-matching")

// Scored is a candidate with its score breakdown.
type Scored struct {
	Candidate domain.FuelRecordCandidate
	Breakdown domain.MatchScoreBreakdown
}

// TieBreaker decides whether challenger replaces best when both have the
// same total score. Candidates are offered newest first.
type TieBreaker func(line domain.ExtractedLine, best, challenger Scored) bool

// FirstSeen keeps the first candidate with the highest score.
func FirstSeen(domain.ExtractedLine, Scored, Scored) bool {
	return false
}

// ClosestDate prefers the candidate nearest to the line date.
// Lines without a parsable date fall back to FirstSeen.
func ClosestDate(line domain.ExtractedLine, best, challenger Scored) bool {
	if line.Date == nil {
		return false
	}
	d, ok := normalize.ParseMatchDate(*line.Date)
	if !ok {
		return false
	}
	return absDuration(challenger.Candidate.Date.Sub(d)) < absDuration(best.Candidate.Date.Sub(d))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Matcher reconciles extracted lines with existing fuel records.
type Matcher struct {
	resolver *PlateResolver
	finder   *CandidateFinder
	workers  int
	tieBreak TieBreaker
	logger   *slog.Logger

	cache         domain.Cache
	resolutionTTL time.Duration
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithWorkers bounds the number of lines matched concurrently.
func WithWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithTieBreaker overrides the default first-seen tie-break.
func WithTieBreaker(tb TieBreaker) Option {
	return func(m *Matcher) {
		if tb != nil {
			m.tieBreak = tb
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithResolutionCache shares plate resolutions across runs through cache.
func WithResolutionCache(cache domain.Cache, ttl time.Duration) Option {
	return func(m *Matcher) {
		m.cache = cache
		m.resolutionTTL = ttl
	}
}

// WithClock sets the clock used for the no-date lookback window.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) {
		if now != nil {
			m.finder.now = now
		}
	}
}

// NewMatcher creates a matcher over store.
func NewMatcher(store domain.RecordStore, opts ...Option) *Matcher {
	m := &Matcher{
		finder:   NewCandidateFinder(store),
		workers:  1,
		tieBreak: FirstSeen,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resolver = NewPlateResolver(store, m.cache, m.resolutionTTL, m.logger)
	return m
}

// MatchLines matches every line independently. A failure on one line
// becomes an ERROR result for that line; the run always completes.
// Results keep the order of lines.
func (m *Matcher) MatchLines(ctx context.Context, tenantID string, lines []domain.ExtractedLine, tol domain.MatchingTolerances, requireManualConfirm bool) domain.MatchingResult {
	ctx, span := tracer.Start(ctx, "matching.MatchLines",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("lines", len(lines)),
		),
	)
	defer span.End()

	start := time.Now()
	run := newRunCache()
	results := make([]domain.MatchResult, len(lines))

	var wg sync.WaitGroup
	sem := make(chan struct{}, m.workers)

	for i := range lines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			results[idx] = m.matchLineSafe(ctx, run, tenantID, lines[idx], tol, requireManualConfirm)
		}(i)
	}
	wg.Wait()

	var summary domain.MatchingSummary
	for _, r := range results {
		summary.Add(r.Status)
	}

	span.SetAttributes(
		attribute.Int("matched.auto", summary.AutoMatched),
		attribute.Int("matched.errors", summary.Errors),
	)
	m.logger.Info("lines matched",
		"tenant_id", tenantID,
		"total", summary.Total,
		"auto_matched", summary.AutoMatched,
		"suggested", summary.Suggested,
		"unmatched", summary.Unmatched,
		"errors", summary.Errors,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return domain.MatchingResult{Results: results, Summary: summary}
}

// matchLineSafe converts errors and panics from matchLine into ERROR results.
func (m *Matcher) matchLineSafe(ctx context.Context, run *runCache, tenantID string, line domain.ExtractedLine, tol domain.MatchingTolerances, manual bool) (result domain.MatchResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while matching line",
				"tenant_id", tenantID,
				"line_number", line.LineNumber,
				"error", r,
			)
			result = errorResult(line, fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	result, err := m.matchLine(ctx, run, tenantID, line, tol, manual)
	if err != nil {
		m.logger.Debug("line not matched",
			"tenant_id", tenantID,
			"line_number", line.LineNumber,
			"error", err,
		)
		return errorResult(line, err.Error())
	}
	return result
}

var errMissingPlate = errors.New("missing plate")

func (m *Matcher) matchLine(ctx context.Context, run *runCache, tenantID string, line domain.ExtractedLine, tol domain.MatchingTolerances, manual bool) (domain.MatchResult, error) {
	if line.Plate == nil || strings.TrimSpace(*line.Plate) == "" {
		return domain.MatchResult{}, errMissingPlate
	}

	vehicleID, err := run.resolve(ctx, m.resolver, tenantID, *line.Plate)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("resolve plate: %w", err)
	}
	if vehicleID == "" {
		return domain.MatchResult{}, fmt.Errorf("no active vehicle with plate %s", normalize.Plate(*line.Plate))
	}

	var lineDate *time.Time
	if line.Date != nil {
		if d, ok := normalize.ParseMatchDate(*line.Date); ok {
			lineDate = &d
		}
	}
	candidates, err := m.finder.Find(ctx, tenantID, vehicleID, lineDate, tol.DateToleranceDays)
	if err != nil {
		return domain.MatchResult{}, err
	}

	result := domain.MatchResult{
		LineNumber:     line.LineNumber,
		Line:           line,
		VehicleID:      &vehicleID,
		CandidateCount: len(candidates),
	}
	if len(candidates) == 0 {
		zero := 0.0
		result.Status = domain.MatchUnmatched
		result.Score = &zero
		return result, nil
	}

	var best *Scored
	for _, c := range candidates {
		s := Scored{Candidate: c, Breakdown: Score(line, c, tol)}
		if best == nil ||
			s.Breakdown.TotalScore > best.Breakdown.TotalScore ||
			(s.Breakdown.TotalScore == best.Breakdown.TotalScore && m.tieBreak(line, *best, s)) {
			best = &s
		}
	}

	breakdown := best.Breakdown
	breakdown.Plate.Detail = fmt.Sprintf("%s %s", breakdown.Plate.Detail, vehicleID)
	score := breakdown.TotalScore
	recordID := best.Candidate.ID

	result.Status = Classify(score, tol.AutoMatchThreshold, manual)
	result.Score = &score
	result.Breakdown = &breakdown
	result.MatchedRecordID = &recordID
	return result, nil
}

func errorResult(line domain.ExtractedLine, msg string) domain.MatchResult {
	return domain.MatchResult{
		LineNumber: line.LineNumber,
		Line:       line,
		Status:     domain.MatchError,
		Error:      msg,
	}
}
