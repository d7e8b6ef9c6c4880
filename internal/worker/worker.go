// Package worker processes submitted imports from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

// ErrStopped is returned for submissions delivered after Stop.
var ErrStopped = errors.New("worker stopped")

// Processor runs extraction and matching for one import.
// *imports.Service satisfies it.
type Processor interface {
	Process(ctx context.Context, tenantID, importID string, doc []byte) (*domain.Import, error)
}

// Worker consumes TopicImportSubmitted and processes each import.
type Worker struct {
	bus       domain.EventBus
	processor Processor
	logger    *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	slots         chan struct{}
	timeout       time.Duration
	processed     int64
	failed        int64
	stopped       bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs limits the worker to these tenants. Empty means all tenants.
	TenantIDs []string

	// Concurrency bounds imports processed at once.
	Concurrency int

	// ProcessTimeout bounds one import. Zero means no limit.
	ProcessTimeout time.Duration
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, processor Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		processor: processor,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to submitted imports for the configured tenants.
func (w *Worker) Start(cfg Config) error {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.slots != nil {
		return errors.New("worker already started")
	}
	w.slots = make(chan struct{}, cfg.Concurrency)
	w.timeout = cfg.ProcessTimeout

	tenants := cfg.TenantIDs
	if len(tenants) == 0 {
		tenants = []string{domain.AllTenants}
	}

	for _, tenantID := range tenants {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicImportSubmitted, w.handleMessage)
		if err != nil {
			w.logger.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	if len(w.subscriptions) == 0 {
		return fmt.Errorf("no subscription for %s could be started", domain.TopicImportSubmitted)
	}

	w.logger.Info("import worker started",
		"tenant_count", len(cfg.TenantIDs),
		"concurrency", cfg.Concurrency,
	)
	return nil
}

// handleMessage waits for a free slot, then processes the import in the
// background so the bus keeps delivering.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var sub domain.ImportSubmission
	if err := json.Unmarshal(msg.Payload, &sub); err != nil {
		return fmt.Errorf("parse import submission %s: %w", msg.ID, err)
	}
	if sub.ImportID == "" {
		return fmt.Errorf("import submission %s has no importId", msg.ID)
	}

	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Unsubscribing must not abort an import halfway through.
	ctx = context.WithoutCancel(ctx)

	// Add under mu so Stop cannot be waiting while the group grows.
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.slots
		w.logger.Warn("import submission dropped after stop",
			"import_id", sub.ImportID,
			"tenant_id", msg.TenantID,
		)
		return ErrStopped
	}
	w.wg.Add(1)
	w.mu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.slots }()
		w.process(ctx, msg.TenantID, sub)
	}()
	return nil
}

func (w *Worker) process(ctx context.Context, tenantID string, sub domain.ImportSubmission) {
	start := time.Now()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	imp, err := w.processor.Process(ctx, tenantID, sub.ImportID, sub.Document)

	w.mu.Lock()
	if err != nil || imp == nil || imp.Status == domain.ImportError {
		w.failed++
	} else {
		w.processed++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("import processing failed",
			"import_id", sub.ImportID,
			"tenant_id", tenantID,
			"error", err,
		)
		return
	}

	w.logger.Info("import processed",
		"import_id", imp.ID,
		"tenant_id", tenantID,
		"status", imp.Status,
		"lines", imp.ExtractedCount,
		"matched", imp.MatchedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop unsubscribes and waits for in-flight imports.
func (w *Worker) Stop() error {
	w.mu.Lock()
	w.stopped = true
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.wg.Wait()
	w.cancel()

	w.logger.Info("import worker stopped")
	return nil
}

// Stats is a snapshot of worker activity.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
	InFlight          int      `json:"inFlight"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		InFlight:          len(w.slots),
		Processed:         w.processed,
		Failed:            w.failed,
	}
}
