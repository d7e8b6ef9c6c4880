package domain

import "time"

// ImportStatus is the lifecycle state of an import.
type ImportStatus string

const (
	ImportPending   ImportStatus = "PENDING"
	ImportProcessed ImportStatus = "PROCESSED"
	ImportError     ImportStatus = "ERROR"
	ImportCompleted ImportStatus = "COMPLETED"
)

// LineStatus is the review state of an import line.
type LineStatus string

const (
	LineAutoMatched LineStatus = "AUTO_MATCHED"
	LineSuggested   LineStatus = "SUGGESTED"
	LineCandidate   LineStatus = "CANDIDATE"
	LineUnmatched   LineStatus = "UNMATCHED"
	LineError       LineStatus = "ERROR"
	LineConfirmed   LineStatus = "CONFIRMED"
	LineRejected    LineStatus = "REJECTED"
	LineSkipped     LineStatus = "SKIPPED"
)

// LineStatusFromMatch maps a match outcome to the initial review status.
func LineStatusFromMatch(s MatchStatus) LineStatus {
	switch s {
	case MatchAutoMatched:
		return LineAutoMatched
	case MatchSuggested:
		return LineSuggested
	case MatchError:
		return LineError
	default:
		return LineUnmatched
	}
}

// LogEntry is one line of an import's processing log.
type LogEntry struct {
	At      time.Time `json:"at"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Import is one batch reconciliation job.
type Import struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenantId"`
	TemplateID    string       `json:"templateId"`
	FileName      string       `json:"fileName"`
	ContentHash   string       `json:"contentHash"`
	Status        ImportStatus `json:"status"`
	InvoiceNumber *string      `json:"invoiceNumber,omitempty"`
	InvoiceDate   *time.Time   `json:"invoiceDate,omitempty"`
	SupplierVAT   *string      `json:"supplierVat,omitempty"`

	ExtractedCount int `json:"extractedCount"`
	FilteredCount  int `json:"filteredCount"`
	MatchedCount   int `json:"matchedCount"`
	CreatedCount   int `json:"createdCount"`
	SkippedCount   int `json:"skippedCount"`
	ErrorCount     int `json:"errorCount"`

	ProcessingLog []LogEntry `json:"processingLog"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Log appends an entry to the processing log.
func (i *Import) Log(at time.Time, level, message string) {
	i.ProcessingLog = append(i.ProcessingLog, LogEntry{At: at, Level: level, Message: message})
}

// ImportLine is one persisted, extracted and matched line of an import.
type ImportLine struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	ImportID   string `json:"importId"`
	LineNumber int    `json:"lineNumber"`

	Plate        *string    `json:"plate"`
	RawDate      *string    `json:"rawDate"`
	PurchaseDate *time.Time `json:"purchaseDate"`
	FuelType     *string    `json:"fuelType"`
	Quantity     *float64   `json:"quantity"`
	Amount       *float64   `json:"amount"`
	CardNumber   *string    `json:"cardNumber"`
	Odometer     *int64     `json:"odometer"`
	Description  *string    `json:"description"`
	UnitPrice    *float64   `json:"unitPrice"`

	ExtractionErrors []string `json:"extractionErrors,omitempty"`

	MatchStatus     MatchStatus          `json:"matchStatus"`
	MatchedRecordID *string              `json:"matchedRecordId"`
	MatchScore      *float64             `json:"matchScore"`
	Breakdown       *MatchScoreBreakdown `json:"breakdown,omitempty"`
	VehicleID       *string              `json:"vehicleId"`
	CandidateCount  int                  `json:"candidateCount"`
	ErrorMessage    *string              `json:"errorMessage,omitempty"`

	Status          LineStatus `json:"status"`
	CreatedRecordID *string    `json:"createdRecordId,omitempty"`
	ReviewedAt      *time.Time `json:"reviewedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ImportFilter narrows ListImports. Zero fields are ignored.
type ImportFilter struct {
	Status     ImportStatus `json:"status,omitempty"`
	TemplateID string       `json:"templateId,omitempty"`
	From       *time.Time   `json:"from,omitempty"`
	To         *time.Time   `json:"to,omitempty"`
}

// ImportLineFilter narrows CountImportLines. Zero fields are ignored.
type ImportLineFilter struct {
	ImportID         string       `json:"importId"`
	Statuses         []LineStatus `json:"statuses,omitempty"`
	HasCreatedRecord *bool        `json:"hasCreatedRecord,omitempty"`
}

// Page selects a window of a listing.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 500 {
		p.Limit = 500
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
