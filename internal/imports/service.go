// Package imports manages the lifecycle of an invoice import: creation,
// processing (extraction and matching), line review and finalization.
package imports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
	"github.com/opensource-finance/fuelrecon/internal/matching"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the import's current status.
	ErrInvalidTransition = errors.New("invalid import status transition")

	// ErrDocumentMismatch is returned when the document given to Process
	// does not hash to the content hash recorded at creation.
	ErrDocumentMismatch = errors.New("document does not match import content hash")
)

var tracer = otel.Tracer("fuelrecon-imports")

// Store is the persistence the service needs.
type Store interface {
	domain.RecordStore
	domain.TemplateStore
}

// Service runs import operations for all tenants.
type Service struct {
	store     Store
	extractor *extract.Extractor
	matcher   *matching.Matcher
	bus       domain.EventBus
	defaults  domain.MatchingTolerances
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithEventBus publishes lifecycle events on bus and enables Submit.
func WithEventBus(bus domain.EventBus) Option {
	return func(s *Service) { s.bus = bus }
}

// WithDefaults sets the tolerances used for templates that define none.
func WithDefaults(tol domain.MatchingTolerances) Option {
	return func(s *Service) { s.defaults = tol }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an import service.
func NewService(store Store, extractor *extract.Extractor, matcher *matching.Matcher, opts ...Option) *Service {
	s := &Service{
		store:     store,
		extractor: extractor,
		matcher:   matcher,
		defaults:  domain.DefaultTolerances(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest describes a new import.
type CreateRequest struct {
	TemplateID string `json:"templateId"`
	FileName   string `json:"fileName"`
	Document   []byte `json:"-"`
}

// ContentHash returns the hex SHA-256 of a document.
func ContentHash(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// Create stores a new PENDING import for the document. The document itself
// is not stored; only its content hash.
func (s *Service) Create(ctx context.Context, tenantID string, req CreateRequest) (*domain.Import, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if req.TemplateID == "" {
		return nil, fmt.Errorf("%w: templateId is required", domain.ErrInvalidInput)
	}
	if len(req.Document) == 0 {
		return nil, fmt.Errorf("%w: document is empty", domain.ErrInvalidInput)
	}

	tpl, err := s.store.GetTemplate(ctx, tenantID, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if !tpl.Enabled {
		return nil, fmt.Errorf("%w: template %s is disabled", domain.ErrInvalidInput, tpl.ID)
	}

	now := s.now()
	imp := &domain.Import{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		TemplateID:    tpl.ID,
		FileName:      req.FileName,
		ContentHash:   ContentHash(req.Document),
		Status:        domain.ImportPending,
		ProcessingLog: []domain.LogEntry{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	imp.Log(now, "info", fmt.Sprintf("Import created with template %s", tpl.Name))

	if err := s.store.CreateImport(ctx, tenantID, imp); err != nil {
		return nil, fmt.Errorf("failed to create import: %w", err)
	}

	s.logger.Info("import created",
		"tenant_id", tenantID,
		"import_id", imp.ID,
		"template_id", tpl.ID,
	)
	return imp, nil
}

// Submit queues a PENDING import for asynchronous processing.
func (s *Service) Submit(ctx context.Context, tenantID, importID string, doc []byte) error {
	if s.bus == nil {
		return errors.New("no event bus configured")
	}
	imp, err := s.GetImport(ctx, tenantID, importID)
	if err != nil {
		return err
	}
	if imp.Status != domain.ImportPending {
		return fmt.Errorf("%w: import is %s", ErrInvalidTransition, imp.Status)
	}
	if imp.ContentHash != ContentHash(doc) {
		return ErrDocumentMismatch
	}

	payload, err := json.Marshal(domain.ImportSubmission{ImportID: importID, Document: doc})
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, tenantID, domain.TopicImportSubmitted, payload)
}

// Process extracts and matches the document of a PENDING import and stores
// one line per match result.
//
// An extraction failure is not an error: the import is moved to ERROR with
// the failure in its processing log. Errors are returned for store failures,
// wrong status and a document that does not match the content hash.
func (s *Service) Process(ctx context.Context, tenantID, importID string, doc []byte) (*domain.Import, error) {
	ctx, span := tracer.Start(ctx, "imports.Process",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("import.id", importID),
		),
	)
	defer span.End()

	start := time.Now()
	imp, err := s.process(ctx, tenantID, importID, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("import processing failed",
			"tenant_id", tenantID,
			"import_id", importID,
			"error", err,
		)
		return nil, err
	}

	span.SetAttributes(attribute.String("import.status", string(imp.Status)))
	s.logger.Info("import processed",
		"tenant_id", tenantID,
		"import_id", importID,
		"status", imp.Status,
		"extracted", imp.ExtractedCount,
		"matched", imp.MatchedCount,
		"errors", imp.ErrorCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return imp, nil
}

func (s *Service) process(ctx context.Context, tenantID, importID string, doc []byte) (*domain.Import, error) {
	imp, err := s.GetImport(ctx, tenantID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != domain.ImportPending {
		return nil, fmt.Errorf("%w: cannot process import in status %s", ErrInvalidTransition, imp.Status)
	}
	if imp.ContentHash != ContentHash(doc) {
		return nil, ErrDocumentMismatch
	}

	tpl, err := s.store.GetTemplate(ctx, tenantID, imp.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	tol := s.tolerances(tpl)
	if err := tol.CheckWeights(); err != nil {
		imp.Log(s.now(), "warn", err.Error())
	}

	result := s.extractor.ExtractLines(doc, tpl.Config)
	s.applyInvoice(imp, result.Invoice)

	if !result.Success {
		now := s.now()
		imp.Status = domain.ImportError
		imp.ProcessedAt = &now
		imp.UpdatedAt = now
		for _, e := range result.Errors {
			imp.Log(now, "error", "Extraction failed: "+e)
		}
		if err := s.store.UpdateImport(ctx, tenantID, imp); err != nil {
			return nil, fmt.Errorf("failed to update import: %w", err)
		}
		s.publish(ctx, tenantID, domain.TopicImportFailed, domain.ImportEvent{ImportID: imp.ID, Status: imp.Status})
		return imp, nil
	}
	for _, e := range result.Errors {
		imp.Log(s.now(), "warn", e)
	}

	matched := s.matcher.MatchLines(ctx, tenantID, result.Lines, tol, tpl.RequireManualConfirm)

	lines := make([]*domain.ImportLine, 0, len(matched.Results))
	for _, r := range matched.Results {
		lines = append(lines, s.importLine(imp, r))
	}

	now := s.now()
	sum := matched.Summary
	imp.Status = domain.ImportProcessed
	imp.ExtractedCount = result.TotalLines
	imp.FilteredCount = result.FilteredLines
	imp.MatchedCount = sum.AutoMatched
	imp.ErrorCount = sum.Errors
	imp.ProcessedAt = &now
	imp.UpdatedAt = now
	imp.Log(now, "info", fmt.Sprintf(
		"Extracted %d lines (%d filtered out). Auto-matched: %d, suggested: %d, unmatched: %d, errors: %d",
		result.TotalLines, result.FilteredLines, sum.AutoMatched, sum.Suggested, sum.Unmatched, sum.Errors,
	))

	if err := s.store.SaveProcessedImport(ctx, tenantID, imp, lines); err != nil {
		return nil, fmt.Errorf("failed to save processed import: %w", err)
	}

	s.publish(ctx, tenantID, domain.TopicImportProcessed, domain.ImportEvent{
		ImportID: imp.ID,
		Status:   imp.Status,
		Summary:  &sum,
	})
	return imp, nil
}

func (s *Service) tolerances(tpl *domain.Template) domain.MatchingTolerances {
	if tpl.Tolerances.IsZero() {
		return s.defaults
	}
	return tpl.Tolerances
}

func (s *Service) applyInvoice(imp *domain.Import, inv *domain.InvoiceMetadata) {
	if inv == nil {
		return
	}
	if inv.Number != nil {
		imp.InvoiceNumber = inv.Number
	}
	if inv.SupplierVAT != nil {
		imp.SupplierVAT = inv.SupplierVAT
	}
	if inv.Date != nil {
		if d, ok := normalize.ParseLineDate(*inv.Date); ok {
			imp.InvoiceDate = &d
		}
	}
}

func (s *Service) importLine(imp *domain.Import, r domain.MatchResult) *domain.ImportLine {
	now := s.now()
	l := r.Line
	line := &domain.ImportLine{
		ID:               uuid.New().String(),
		TenantID:         imp.TenantID,
		ImportID:         imp.ID,
		LineNumber:       r.LineNumber,
		Plate:            l.Plate,
		RawDate:          l.Date,
		FuelType:         l.FuelType,
		Quantity:         l.Quantity,
		Amount:           l.Amount,
		CardNumber:       l.CardNumber,
		Odometer:         l.Odometer,
		Description:      l.Description,
		UnitPrice:        l.UnitPrice,
		ExtractionErrors: l.Errors,
		MatchStatus:      r.Status,
		MatchedRecordID:  r.MatchedRecordID,
		MatchScore:       r.Score,
		Breakdown:        r.Breakdown,
		VehicleID:        r.VehicleID,
		CandidateCount:   r.CandidateCount,
		Status:           domain.LineStatusFromMatch(r.Status),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if l.Date != nil {
		if d, ok := normalize.ParseLineDate(*l.Date); ok {
			line.PurchaseDate = &d
		}
	}
	if r.Error != "" {
		msg := r.Error
		line.ErrorMessage = &msg
	}
	return line
}

// ConfirmLine accepts the line's match.
func (s *Service) ConfirmLine(ctx context.Context, tenantID, importID, lineID string) (*domain.ImportLine, error) {
	return s.review(ctx, tenantID, importID, lineID, domain.LineConfirmed)
}

// RejectLine rejects the line's match and clears the matched record.
func (s *Service) RejectLine(ctx context.Context, tenantID, importID, lineID string) (*domain.ImportLine, error) {
	return s.review(ctx, tenantID, importID, lineID, domain.LineRejected)
}

// SkipLine leaves the line out of reconciliation.
func (s *Service) SkipLine(ctx context.Context, tenantID, importID, lineID string) (*domain.ImportLine, error) {
	return s.review(ctx, tenantID, importID, lineID, domain.LineSkipped)
}

func (s *Service) review(ctx context.Context, tenantID, importID, lineID string, status domain.LineStatus) (*domain.ImportLine, error) {
	if _, err := s.reviewable(ctx, tenantID, importID); err != nil {
		return nil, err
	}

	line, err := s.store.GetImportLine(ctx, tenantID, lineID)
	if err != nil {
		return nil, err
	}
	if line.ImportID != importID {
		return nil, fmt.Errorf("line %s: %w", lineID, domain.ErrNotFound)
	}

	now := s.now()
	line.Status = status
	if status == domain.LineRejected {
		line.MatchedRecordID = nil
	}
	line.ReviewedAt = &now
	line.UpdatedAt = now
	if err := s.store.UpdateImportLine(ctx, tenantID, line); err != nil {
		return nil, fmt.Errorf("failed to update line: %w", err)
	}

	s.publish(ctx, tenantID, domain.TopicLineReviewed, domain.ImportEvent{
		ImportID: importID,
		Status:   domain.ImportProcessed,
		LineID:   line.ID,
		Line:     status,
	})
	return line, nil
}

// ConfirmAllAutoMatched confirms every AUTO_MATCHED line of the import and
// returns how many were changed.
func (s *Service) ConfirmAllAutoMatched(ctx context.Context, tenantID, importID string) (int, error) {
	if _, err := s.reviewable(ctx, tenantID, importID); err != nil {
		return 0, err
	}

	lines, err := s.store.ListImportLines(ctx, tenantID, importID)
	if err != nil {
		return 0, fmt.Errorf("failed to list lines: %w", err)
	}

	now := s.now()
	count := 0
	for _, line := range lines {
		if line.Status != domain.LineAutoMatched {
			continue
		}
		line.Status = domain.LineConfirmed
		line.ReviewedAt = &now
		line.UpdatedAt = now
		if err := s.store.UpdateImportLine(ctx, tenantID, line); err != nil {
			return count, fmt.Errorf("failed to update line %d: %w", line.LineNumber, err)
		}
		count++
	}

	s.logger.Info("auto-matched lines confirmed",
		"tenant_id", tenantID,
		"import_id", importID,
		"count", count,
	)
	return count, nil
}

func (s *Service) reviewable(ctx context.Context, tenantID, importID string) (*domain.Import, error) {
	imp, err := s.GetImport(ctx, tenantID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != domain.ImportProcessed {
		return nil, fmt.Errorf("%w: cannot review lines of import in status %s", ErrInvalidTransition, imp.Status)
	}
	return imp, nil
}

// Finalize recomputes the import counters from the current line statuses
// and marks the import COMPLETED. Calling it again recomputes the counters.
func (s *Service) Finalize(ctx context.Context, tenantID, importID string) (*domain.Import, error) {
	imp, err := s.GetImport(ctx, tenantID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != domain.ImportProcessed && imp.Status != domain.ImportCompleted {
		return nil, fmt.Errorf("%w: cannot finalize import in status %s", ErrInvalidTransition, imp.Status)
	}

	created := true
	counts := []struct {
		dst    *int
		filter domain.ImportLineFilter
	}{
		{&imp.MatchedCount, domain.ImportLineFilter{ImportID: importID, Statuses: []domain.LineStatus{domain.LineConfirmed, domain.LineAutoMatched}}},
		{&imp.CreatedCount, domain.ImportLineFilter{ImportID: importID, HasCreatedRecord: &created}},
		{&imp.SkippedCount, domain.ImportLineFilter{ImportID: importID, Statuses: []domain.LineStatus{domain.LineSkipped, domain.LineRejected}}},
		{&imp.ErrorCount, domain.ImportLineFilter{ImportID: importID, Statuses: []domain.LineStatus{domain.LineError}}},
	}
	for _, c := range counts {
		n, err := s.store.CountImportLines(ctx, tenantID, c.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count lines: %w", err)
		}
		*c.dst = n
	}

	now := s.now()
	imp.Status = domain.ImportCompleted
	imp.CompletedAt = &now
	imp.UpdatedAt = now
	imp.Log(now, "info", fmt.Sprintf("Finalized. Matched: %d, created: %d, skipped: %d, errors: %d",
		imp.MatchedCount, imp.CreatedCount, imp.SkippedCount, imp.ErrorCount))

	if err := s.store.UpdateImport(ctx, tenantID, imp); err != nil {
		return nil, fmt.Errorf("failed to update import: %w", err)
	}

	s.publish(ctx, tenantID, domain.TopicImportCompleted, domain.ImportEvent{ImportID: imp.ID, Status: imp.Status})
	return imp, nil
}

// GetImport returns one import.
func (s *Service) GetImport(ctx context.Context, tenantID, importID string) (*domain.Import, error) {
	if tenantID == "" || importID == "" {
		return nil, fmt.Errorf("%w: tenantID and importID are required", domain.ErrInvalidInput)
	}
	return s.store.GetImport(ctx, tenantID, importID)
}

// ListImports returns a page of imports, newest first, and the total count.
func (s *Service) ListImports(ctx context.Context, tenantID string, filter domain.ImportFilter, page domain.Page) ([]*domain.Import, int, error) {
	return s.store.ListImports(ctx, tenantID, filter, page.Normalize())
}

// ListLines returns the lines of an import ordered by line number.
func (s *Service) ListLines(ctx context.Context, tenantID, importID string) ([]*domain.ImportLine, error) {
	if _, err := s.GetImport(ctx, tenantID, importID); err != nil {
		return nil, err
	}
	return s.store.ListImportLines(ctx, tenantID, importID)
}

// publish sends a lifecycle event. Failures are logged and otherwise ignored.
func (s *Service) publish(ctx context.Context, tenantID, topic string, evt domain.ImportEvent) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, payload); err != nil {
		s.logger.Warn("failed to publish import event",
			"tenant_id", tenantID,
			"topic", topic,
			"error", err,
		)
	}
}
