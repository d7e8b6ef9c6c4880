package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

const importColumns = `
	id, tenant_id, template_id, file_name, content_hash, status,
	invoice_number, invoice_date, supplier_vat,
	extracted_count, filtered_count, matched_count, created_count, skipped_count, error_count,
	processing_log, created_at, updated_at, processed_at, completed_at`

// CreateImport stores a new import.
func (r *SQLRepository) CreateImport(ctx context.Context, tenantID string, imp *domain.Import) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	log, err := toJSON(imp.ProcessingLog)
	if err != nil {
		return fmt.Errorf("failed to encode processing log: %w", err)
	}

	query := `INSERT INTO imports (` + importColumns + `) VALUES (` + placeholders(20) + `)`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		imp.ID, tenantID, imp.TemplateID, imp.FileName, imp.ContentHash, string(imp.Status),
		nullString(imp.InvoiceNumber), nullTime(imp.InvoiceDate), nullString(imp.SupplierVAT),
		imp.ExtractedCount, imp.FilteredCount, imp.MatchedCount, imp.CreatedCount, imp.SkippedCount, imp.ErrorCount,
		log, utc(imp.CreatedAt), utc(imp.UpdatedAt), nullTime(imp.ProcessedAt), nullTime(imp.CompletedAt),
	)
	return err
}

// UpdateImport overwrites the mutable fields of an import.
func (r *SQLRepository) UpdateImport(ctx context.Context, tenantID string, imp *domain.Import) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	return r.updateImport(ctx, r.db, tenantID, imp)
}

func (r *SQLRepository) updateImport(ctx context.Context, db execer, tenantID string, imp *domain.Import) error {
	log, err := toJSON(imp.ProcessingLog)
	if err != nil {
		return fmt.Errorf("failed to encode processing log: %w", err)
	}

	query := `
		UPDATE imports SET
			status = ?, invoice_number = ?, invoice_date = ?, supplier_vat = ?,
			extracted_count = ?, filtered_count = ?, matched_count = ?,
			created_count = ?, skipped_count = ?, error_count = ?,
			processing_log = ?, updated_at = ?, processed_at = ?, completed_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	return expectOne(db.ExecContext(ctx, r.rebind(query),
		string(imp.Status), nullString(imp.InvoiceNumber), nullTime(imp.InvoiceDate), nullString(imp.SupplierVAT),
		imp.ExtractedCount, imp.FilteredCount, imp.MatchedCount,
		imp.CreatedCount, imp.SkippedCount, imp.ErrorCount,
		log, utc(imp.UpdatedAt), nullTime(imp.ProcessedAt), nullTime(imp.CompletedAt),
		tenantID, imp.ID,
	))
}

func scanImport(s scanner) (*domain.Import, error) {
	var imp domain.Import
	var status, log string
	var number, vat sql.NullString
	var invoiceDate, processed, completed sql.NullTime

	if err := s.Scan(
		&imp.ID, &imp.TenantID, &imp.TemplateID, &imp.FileName, &imp.ContentHash, &status,
		&number, &invoiceDate, &vat,
		&imp.ExtractedCount, &imp.FilteredCount, &imp.MatchedCount, &imp.CreatedCount, &imp.SkippedCount, &imp.ErrorCount,
		&log, &imp.CreatedAt, &imp.UpdatedAt, &processed, &completed,
	); err != nil {
		return nil, err
	}

	imp.Status = domain.ImportStatus(status)
	imp.InvoiceNumber = stringPtr(number)
	imp.InvoiceDate = timePtr(invoiceDate)
	imp.SupplierVAT = stringPtr(vat)
	imp.ProcessedAt = timePtr(processed)
	imp.CompletedAt = timePtr(completed)
	if err := fromJSON(log, &imp.ProcessingLog); err != nil {
		return nil, fmt.Errorf("failed to parse processing log of import %s: %w", imp.ID, err)
	}
	return &imp, nil
}

// GetImport retrieves an import with tenant isolation.
func (r *SQLRepository) GetImport(ctx context.Context, tenantID string, importID string) (*domain.Import, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + importColumns + ` FROM imports WHERE tenant_id = ? AND id = ?`

	imp, err := scanImport(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, importID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return imp, err
}

// ListImports returns a page of imports, newest first, and the total number
// of imports matching the filter.
func (r *SQLRepository) ListImports(ctx context.Context, tenantID string, filter domain.ImportFilter, page domain.Page) ([]*domain.Import, int, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, 0, err
	}
	page = page.Normalize()

	where := []string{"tenant_id = ?"}
	args := []any{tenantID}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.TemplateID != "" {
		where = append(where, "template_id = ?")
		args = append(args, filter.TemplateID)
	}
	if filter.From != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.To.UTC())
	}
	cond := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM imports WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, r.rebind(countQuery), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + importColumns + ` FROM imports WHERE ` + cond + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), append(args, page.Limit, page.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	imports := []*domain.Import{}
	for rows.Next() {
		imp, err := scanImport(rows)
		if err != nil {
			return nil, 0, err
		}
		imports = append(imports, imp)
	}
	return imports, total, rows.Err()
}

const lineColumns = `
	id, tenant_id, import_id, line_number,
	plate, raw_date, purchase_date, fuel_type, quantity, amount,
	card_number, odometer, description, unit_price, extraction_errors,
	match_status, matched_record_id, match_score, breakdown, vehicle_id,
	candidate_count, error_message, status, created_record_id, reviewed_at,
	created_at, updated_at`

// lineValues returns the column values of a line in lineColumns order,
// without id, tenant_id and import_id.
func lineValues(l *domain.ImportLine) ([]any, error) {
	errs := l.ExtractionErrors
	if errs == nil {
		errs = []string{}
	}
	extractionErrors, err := toJSON(errs)
	if err != nil {
		return nil, err
	}
	var breakdown any
	if l.Breakdown != nil {
		b, err := toJSON(l.Breakdown)
		if err != nil {
			return nil, err
		}
		breakdown = b
	}

	return []any{
		l.LineNumber,
		nullString(l.Plate), nullString(l.RawDate), nullTime(l.PurchaseDate), nullString(l.FuelType),
		nullFloat(l.Quantity), nullFloat(l.Amount),
		nullString(l.CardNumber), nullInt(l.Odometer), nullString(l.Description), nullFloat(l.UnitPrice),
		extractionErrors,
		string(l.MatchStatus), nullString(l.MatchedRecordID), nullFloat(l.MatchScore), breakdown, nullString(l.VehicleID),
		l.CandidateCount, nullString(l.ErrorMessage), string(l.Status), nullString(l.CreatedRecordID), nullTime(l.ReviewedAt),
		utc(l.CreatedAt), utc(l.UpdatedAt),
	}, nil
}

// CreateImportLine stores a new import line.
func (r *SQLRepository) CreateImportLine(ctx context.Context, tenantID string, line *domain.ImportLine) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	return r.insertLine(ctx, r.db, tenantID, line)
}

func (r *SQLRepository) insertLine(ctx context.Context, db execer, tenantID string, line *domain.ImportLine) error {
	values, err := lineValues(line)
	if err != nil {
		return fmt.Errorf("failed to encode line: %w", err)
	}

	query := `INSERT INTO import_lines (` + lineColumns + `) VALUES (` + placeholders(27) + `)`
	args := append([]any{line.ID, tenantID, line.ImportID}, values...)

	_, err = db.ExecContext(ctx, r.rebind(query), args...)
	return err
}

// SaveProcessedImport replaces the lines of an import and updates the import
// in one transaction. Either all lines and the new import state are stored,
// or nothing changes.
func (r *SQLRepository) SaveProcessedImport(ctx context.Context, tenantID string, imp *domain.Import, lines []*domain.ImportLine) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM import_lines WHERE tenant_id = ? AND import_id = ?`), tenantID, imp.ID); err != nil {
		return fmt.Errorf("failed to clear lines: %w", err)
	}
	for _, line := range lines {
		if err := r.insertLine(ctx, tx, tenantID, line); err != nil {
			return fmt.Errorf("failed to create line %d: %w", line.LineNumber, err)
		}
	}
	if err := r.updateImport(ctx, tx, tenantID, imp); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateImportLine overwrites the mutable fields of a line.
func (r *SQLRepository) UpdateImportLine(ctx context.Context, tenantID string, line *domain.ImportLine) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	query := `
		UPDATE import_lines SET
			match_status = ?, matched_record_id = ?, match_score = ?, vehicle_id = ?,
			error_message = ?, status = ?, created_record_id = ?, reviewed_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	return expectOne(r.db.ExecContext(ctx, r.rebind(query),
		string(line.MatchStatus), nullString(line.MatchedRecordID), nullFloat(line.MatchScore), nullString(line.VehicleID),
		nullString(line.ErrorMessage), string(line.Status), nullString(line.CreatedRecordID),
		nullTime(line.ReviewedAt), utc(line.UpdatedAt),
		tenantID, line.ID,
	))
}

func scanLine(s scanner) (*domain.ImportLine, error) {
	var l domain.ImportLine
	var plate, rawDate, fuelType, card, desc, recordID, vehicleID, errMsg, createdID sql.NullString
	var quantity, amount, unitPrice, score sql.NullFloat64
	var odometer sql.NullInt64
	var purchaseDate, reviewedAt sql.NullTime
	var extractionErrors, matchStatus, status string
	var breakdown sql.NullString

	if err := s.Scan(
		&l.ID, &l.TenantID, &l.ImportID, &l.LineNumber,
		&plate, &rawDate, &purchaseDate, &fuelType, &quantity, &amount,
		&card, &odometer, &desc, &unitPrice, &extractionErrors,
		&matchStatus, &recordID, &score, &breakdown, &vehicleID,
		&l.CandidateCount, &errMsg, &status, &createdID, &reviewedAt,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}

	l.Plate = stringPtr(plate)
	l.RawDate = stringPtr(rawDate)
	l.PurchaseDate = timePtr(purchaseDate)
	l.FuelType = stringPtr(fuelType)
	l.Quantity = floatPtr(quantity)
	l.Amount = floatPtr(amount)
	l.CardNumber = stringPtr(card)
	l.Odometer = intPtr(odometer)
	l.Description = stringPtr(desc)
	l.UnitPrice = floatPtr(unitPrice)
	l.MatchStatus = domain.MatchStatus(matchStatus)
	l.MatchedRecordID = stringPtr(recordID)
	l.MatchScore = floatPtr(score)
	l.VehicleID = stringPtr(vehicleID)
	l.ErrorMessage = stringPtr(errMsg)
	l.Status = domain.LineStatus(status)
	l.CreatedRecordID = stringPtr(createdID)
	l.ReviewedAt = timePtr(reviewedAt)

	if err := fromJSON(extractionErrors, &l.ExtractionErrors); err != nil {
		return nil, fmt.Errorf("failed to parse extraction errors of line %s: %w", l.ID, err)
	}
	if breakdown.Valid {
		l.Breakdown = &domain.MatchScoreBreakdown{}
		if err := fromJSON(breakdown.String, l.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to parse breakdown of line %s: %w", l.ID, err)
		}
	}
	return &l, nil
}

// GetImportLine retrieves one line with tenant isolation.
func (r *SQLRepository) GetImportLine(ctx context.Context, tenantID string, lineID string) (*domain.ImportLine, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + lineColumns + ` FROM import_lines WHERE tenant_id = ? AND id = ?`

	l, err := scanLine(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, lineID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return l, err
}

// ListImportLines returns the lines of an import ordered by line number.
func (r *SQLRepository) ListImportLines(ctx context.Context, tenantID string, importID string) ([]*domain.ImportLine, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + lineColumns + ` FROM import_lines WHERE tenant_id = ? AND import_id = ? ORDER BY line_number`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []*domain.ImportLine{}
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// CountImportLines counts the lines of an import matching the filter.
func (r *SQLRepository) CountImportLines(ctx context.Context, tenantID string, filter domain.ImportLineFilter) (int, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	if filter.ImportID == "" {
		return 0, fmt.Errorf("%w: importID is required", domain.ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM import_lines WHERE tenant_id = ? AND import_id = ?`
	args := []any{tenantID, filter.ImportID}

	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, s := range filter.Statuses {
			args = append(args, string(s))
		}
	}
	if filter.HasCreatedRecord != nil {
		if *filter.HasCreatedRecord {
			query += ` AND created_record_id IS NOT NULL`
		} else {
			query += ` AND created_record_id IS NULL`
		}
	}

	var n int
	err := r.db.QueryRowContext(ctx, r.rebind(query), args...).Scan(&n)
	return n, err
}
