package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

const templateColumns = `id, tenant_id, name, supplier_vat, config, tolerances, require_manual_confirm, enabled, created_at, updated_at`

// SaveTemplate inserts or updates a supplier template.
func (r *SQLRepository) SaveTemplate(ctx context.Context, tenantID string, tpl *domain.Template) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}

	config, err := toJSON(tpl.Config)
	if err != nil {
		return fmt.Errorf("failed to encode template config: %w", err)
	}
	tolerances, err := toJSON(tpl.Tolerances)
	if err != nil {
		return fmt.Errorf("failed to encode tolerances: %w", err)
	}

	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now
	tpl.TenantID = tenantID

	var supplierVAT any
	if tpl.SupplierVAT != "" {
		supplierVAT = tpl.SupplierVAT
	}

	query := `
		INSERT INTO templates (` + templateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			supplier_vat = excluded.supplier_vat,
			config = excluded.config,
			tolerances = excluded.tolerances,
			require_manual_confirm = excluded.require_manual_confirm,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		tpl.ID, tenantID, tpl.Name, supplierVAT, config, tolerances,
		boolToInt(tpl.RequireManualConfirm), boolToInt(tpl.Enabled),
		utc(tpl.CreatedAt), now,
	)
	return err
}

func scanTemplate(s scanner) (*domain.Template, error) {
	var t domain.Template
	var supplierVAT sql.NullString
	var config, tolerances string
	var manual, enabled int

	if err := s.Scan(
		&t.ID, &t.TenantID, &t.Name, &supplierVAT, &config, &tolerances,
		&manual, &enabled, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	t.SupplierVAT = supplierVAT.String
	t.RequireManualConfirm = manual == 1
	t.Enabled = enabled == 1
	if err := fromJSON(config, &t.Config); err != nil {
		return nil, fmt.Errorf("failed to parse config of template %s: %w", t.ID, err)
	}
	if err := fromJSON(tolerances, &t.Tolerances); err != nil {
		return nil, fmt.Errorf("failed to parse tolerances of template %s: %w", t.ID, err)
	}
	return &t, nil
}

// GetTemplate retrieves a template with tenant isolation.
func (r *SQLRepository) GetTemplate(ctx context.Context, tenantID string, templateID string) (*domain.Template, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + templateColumns + ` FROM templates WHERE tenant_id = ? AND id = ?`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, templateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return t, err
}

// ListTemplates returns all templates of a tenant ordered by name.
func (r *SQLRepository) ListTemplates(ctx context.Context, tenantID string) ([]*domain.Template, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT ` + templateColumns + ` FROM templates WHERE tenant_id = ? ORDER BY name`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
