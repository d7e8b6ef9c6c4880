package extract

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/fuelrecon/internal/document"
	"github.com/opensource-finance/fuelrecon/internal/domain"
	"github.com/opensource-finance/fuelrecon/internal/normalize"
)

// Extractor applies templates to documents. It is safe for concurrent use.
type Extractor struct {
	env    *cel.Env
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger uses slog.Default().
func NewExtractor(logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := newFilterEnv()
	if err != nil {
		return nil, err
	}
	return &Extractor{env: env, logger: logger}, nil
}

// ValidateFilter compiles a CEL filter expression without running it.
func (e *Extractor) ValidateFilter(expr string) error {
	_, err := compileExpression(e.env, expr)
	return err
}

// ExtractLines parses the document and extracts its lines with cfg.
func (e *Extractor) ExtractLines(data []byte, cfg domain.TemplateConfig) domain.ExtractionResult {
	root, err := document.Parse(data)
	if err != nil {
		e.logger.Debug("document parse failed", "error", err)
		return domain.Failed(fmt.Sprintf("failed to parse document: %v", err))
	}
	return e.ExtractTree(root, cfg)
}

type compiledField struct {
	name domain.FieldName
	rule Rule
	err  error
}

// ExtractTree extracts lines from an already parsed document.
func (e *Extractor) ExtractTree(root *document.Node, cfg domain.TemplateConfig) domain.ExtractionResult {
	invoice := invoiceMetadata(root, cfg)

	if cfg.LineXPath == "" {
		res := domain.Failed("template has no lineXpath")
		res.Invoice = invoice
		return res
	}
	items := root.Lookup(cfg.LineXPath)
	if items == nil {
		res := domain.Failed(fmt.Sprintf("line path not found: %s", cfg.LineXPath))
		res.Invoice = invoice
		return res
	}

	fields := compileFields(cfg)
	lines := make([]domain.ExtractedLine, 0, len(items))
	for i, item := range items {
		lines = append(lines, extractLine(i+1, item, root, fields))
	}

	filters, warnings := compileFilters(e.env, cfg.Filters)
	survivors := applyFilters(filters, lines)

	e.logger.Debug("document extracted",
		"total_lines", len(items),
		"kept_lines", len(survivors),
		"filters", len(filters),
	)

	return domain.ExtractionResult{
		Success:       true,
		Lines:         survivors,
		TotalLines:    len(items),
		FilteredLines: len(items) - len(survivors),
		Errors:        warnings,
		Invoice:       invoice,
	}
}

func compileFields(cfg domain.TemplateConfig) []compiledField {
	var out []compiledField
	for _, name := range domain.Fields {
		rule, ok := cfg.Fields[name]
		if !ok {
			continue
		}
		compiled, err := CompileRule(rule)
		out = append(out, compiledField{name: name, rule: compiled, err: err})
	}
	return out
}

func extractLine(number int, item, root *document.Node, fields []compiledField) domain.ExtractedLine {
	line := domain.ExtractedLine{LineNumber: number}
	for _, f := range fields {
		if f.err != nil {
			line.Errors = append(line.Errors, fmt.Sprintf("%s: %v", f.name, f.err))
			continue
		}
		assign(&line, f.name, f.rule.Extract(item, root))
	}
	return line
}

// assign stores a raw value in the line field, parsing numeric fields.
// Unparsable numbers leave the field nil.
func assign(line *domain.ExtractedLine, name domain.FieldName, raw *string) {
	if raw == nil {
		return
	}
	switch name {
	case domain.FieldPlate:
		line.Plate = raw
	case domain.FieldDate:
		line.Date = raw
	case domain.FieldFuelType:
		line.FuelType = raw
	case domain.FieldCardNumber:
		line.CardNumber = raw
	case domain.FieldDescription:
		line.Description = raw
	case domain.FieldQuantity:
		line.Quantity = normalize.Float(*raw)
	case domain.FieldAmount:
		line.Amount = normalize.Float(*raw)
	case domain.FieldUnitPrice:
		line.UnitPrice = normalize.Float(*raw)
	case domain.FieldOdometer:
		line.Odometer = normalize.Odometer(*raw)
	}
}

func invoiceMetadata(root *document.Node, cfg domain.TemplateConfig) *domain.InvoiceMetadata {
	read := func(path string) *string {
		if path == "" {
			return nil
		}
		v, ok := root.ValueAt(path)
		if !ok || v == "" {
			return nil
		}
		return &v
	}
	meta := &domain.InvoiceMetadata{
		Number:      read(cfg.InvoiceNumberXPath),
		Date:        read(cfg.InvoiceDateXPath),
		SupplierVAT: read(cfg.SupplierVATXPath),
	}
	if meta.Number == nil && meta.Date == nil && meta.SupplierVAT == nil {
		return nil
	}
	return meta
}
