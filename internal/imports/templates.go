package imports

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/extract"
)

// SaveTemplate validates and stores a template. A template without an id
// is created; one with an id replaces the stored version.
func (s *Service) SaveTemplate(ctx context.Context, tenantID string, tpl *domain.Template) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", domain.ErrInvalidInput)
	}
	if tpl == nil || strings.TrimSpace(tpl.Name) == "" {
		return fmt.Errorf("%w: template name is required", domain.ErrInvalidInput)
	}
	if err := tpl.Config.Validate(); err != nil {
		return err
	}
	for i, f := range tpl.Config.Filters {
		if f.Expression == "" {
			continue
		}
		if err := s.extractor.ValidateFilter(f.Expression); err != nil {
			return fmt.Errorf("%w: filter %d: %v", domain.ErrInvalidInput, i, err)
		}
	}
	if !tpl.Tolerances.IsZero() {
		if err := tpl.Tolerances.Validate(); err != nil {
			return err
		}
	}

	now := s.now()
	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
		tpl.CreatedAt = now
	} else if existing, err := s.store.GetTemplate(ctx, tenantID, tpl.ID); err == nil {
		tpl.CreatedAt = existing.CreatedAt
	} else {
		tpl.CreatedAt = now
	}
	tpl.TenantID = tenantID
	tpl.UpdatedAt = now

	if err := s.store.SaveTemplate(ctx, tenantID, tpl); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}

	s.logger.Info("template saved",
		"tenant_id", tenantID,
		"template_id", tpl.ID,
		"name", tpl.Name,
	)
	return nil
}

// GetTemplate returns one template.
func (s *Service) GetTemplate(ctx context.Context, tenantID, templateID string) (*domain.Template, error) {
	if templateID == "" {
		return nil, fmt.Errorf("%w: templateId is required", domain.ErrInvalidInput)
	}
	return s.store.GetTemplate(ctx, tenantID, templateID)
}

// ListTemplates returns the tenant's templates.
func (s *Service) ListTemplates(ctx context.Context, tenantID string) ([]*domain.Template, error) {
	return s.store.ListTemplates(ctx, tenantID)
}

// Preview runs extraction with a stored template without persisting anything.
func (s *Service) Preview(ctx context.Context, tenantID, templateID string, doc []byte) (domain.ExtractionResult, error) {
	tpl, err := s.GetTemplate(ctx, tenantID, templateID)
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return s.extractor.ExtractLines(doc, tpl.Config), nil
}

// DetectTemplate recognises a known e-invoice layout and proposes a
// template for it. It returns ErrInvalidInput when the layout is unknown.
func DetectTemplate(doc []byte) (*extract.FatturaDetection, *domain.Template, error) {
	d := extract.Detect(doc)
	if d == nil {
		return nil, nil, fmt.Errorf("%w: document layout not recognised", domain.ErrInvalidInput)
	}

	tpl := &domain.Template{
		Name:    "Detected " + d.Root,
		Config:  extract.GenerateTemplateConfig(d),
		Enabled: true,
	}
	if d.SupplierName != nil && *d.SupplierName != "" {
		tpl.Name = *d.SupplierName
	}
	if d.SupplierVAT != nil {
		tpl.SupplierVAT = *d.SupplierVAT
	}
	return d, tpl, nil
}
