package domain

import (
	"fmt"
	"time"
)

// FieldName identifies one extractable line field.
type FieldName string

// The closed set of fields a template may configure.
const (
	FieldPlate       FieldName = "plate"
	FieldDate        FieldName = "date"
	FieldFuelType    FieldName = "fuelType"
	FieldQuantity    FieldName = "quantity"
	FieldAmount      FieldName = "amount"
	FieldCardNumber  FieldName = "cardNumber"
	FieldOdometer    FieldName = "odometer"
	FieldDescription FieldName = "description"
	FieldUnitPrice   FieldName = "unitPrice"
)

// Fields lists every known field in extraction order.
var Fields = []FieldName{
	FieldPlate,
	FieldDate,
	FieldFuelType,
	FieldQuantity,
	FieldAmount,
	FieldCardNumber,
	FieldOdometer,
	FieldDescription,
	FieldUnitPrice,
}

// Valid reports whether f belongs to the closed field set.
func (f FieldName) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// ExtractionMethod selects how a field value is obtained.
type ExtractionMethod string

const (
	// MethodStatic returns a configured constant.
	MethodStatic ExtractionMethod = "STATIC"

	// MethodXPath reads the value at a dot-separated path below the line node.
	MethodXPath ExtractionMethod = "XPATH"

	// MethodRegex applies patterns to text read from the document root.
	MethodRegex ExtractionMethod = "REGEX"

	// MethodXPathRegex reads a path below the line node, then applies patterns.
	MethodXPathRegex ExtractionMethod = "XPATH_REGEX"
)

// Transform is a text transformation applied after extraction.
type Transform string

const (
	TransformNone      Transform = ""
	TransformUppercase Transform = "uppercase"
	TransformLowercase Transform = "lowercase"
	TransformTrim      Transform = "trim"
)

// RegexPattern is one entry of an ordered pattern cascade.
type RegexPattern struct {
	Pattern   string    `json:"pattern" yaml:"pattern"`
	Group     *int      `json:"group,omitempty" yaml:"group,omitempty"`
	Transform Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// FieldExtractionRule is the persisted form of a field rule.
// It is compiled into a typed rule before use.
type FieldExtractionRule struct {
	Method      ExtractionMethod `json:"method" yaml:"method"`
	XPath       string           `json:"xpath,omitempty" yaml:"xpath,omitempty"`
	StaticValue string           `json:"staticValue,omitempty" yaml:"staticValue,omitempty"`
	Patterns    []RegexPattern   `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	// Regex and RegexGroup are the single-pattern form used by older templates.
	Regex      string `json:"regex,omitempty" yaml:"regex,omitempty"`
	RegexGroup *int   `json:"regexGroup,omitempty" yaml:"regexGroup,omitempty"`

	Transform Transform `json:"transform,omitempty" yaml:"transform,omitempty"`
}

// HasPatterns reports whether the rule carries any regex pattern.
func (r FieldExtractionRule) HasPatterns() bool {
	return len(r.Patterns) > 0 || r.Regex != ""
}

// Validate checks the per-method invariants of a rule.
func (r FieldExtractionRule) Validate() error {
	switch r.Method {
	case MethodStatic:
		if r.StaticValue == "" {
			return fmt.Errorf("%w: STATIC rule requires a static value", ErrInvalidInput)
		}
	case MethodXPath:
		if r.XPath == "" {
			return fmt.Errorf("%w: XPATH rule requires a path", ErrInvalidInput)
		}
	case MethodRegex:
		if !r.HasPatterns() {
			return fmt.Errorf("%w: REGEX rule requires at least one pattern", ErrInvalidInput)
		}
	case MethodXPathRegex:
		if r.XPath == "" {
			return fmt.Errorf("%w: XPATH_REGEX rule requires a path", ErrInvalidInput)
		}
		if !r.HasPatterns() {
			return fmt.Errorf("%w: XPATH_REGEX rule requires at least one pattern", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown extraction method %q", ErrInvalidInput, r.Method)
	}
	if !r.Transform.valid() {
		return fmt.Errorf("%w: unknown transform %q", ErrInvalidInput, r.Transform)
	}
	for _, p := range r.Patterns {
		if !p.Transform.valid() {
			return fmt.Errorf("%w: unknown transform %q", ErrInvalidInput, p.Transform)
		}
	}
	return nil
}

func (t Transform) valid() bool {
	switch t {
	case TransformNone, TransformUppercase, TransformLowercase, TransformTrim:
		return true
	}
	return false
}

// FilterAction decides what happens to lines matching a filter.
type FilterAction string

const (
	FilterInclude FilterAction = "include"
	FilterExclude FilterAction = "exclude"
)

// LineFilter keeps or drops extracted lines.
// Field+Regex is matched case-insensitively. Expression, when set, is a CEL
// boolean over the line fields and takes precedence over Field+Regex.
type LineFilter struct {
	Field      FieldName    `json:"field,omitempty" yaml:"field,omitempty"`
	Regex      string       `json:"regex,omitempty" yaml:"regex,omitempty"`
	Action     FilterAction `json:"action" yaml:"action"`
	Expression string       `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// TemplateConfig is the declarative recipe for one supplier's document shape.
type TemplateConfig struct {
	LineXPath          string                            `json:"lineXpath" yaml:"lineXpath"`
	Fields             map[FieldName]FieldExtractionRule `json:"fields" yaml:"fields"`
	InvoiceNumberXPath string                            `json:"invoiceNumberXpath,omitempty" yaml:"invoiceNumberXpath,omitempty"`
	InvoiceDateXPath   string                            `json:"invoiceDateXpath,omitempty" yaml:"invoiceDateXpath,omitempty"`
	SupplierVATXPath   string                            `json:"supplierVatXpath,omitempty" yaml:"supplierVatXpath,omitempty"`
	Filters            []LineFilter                      `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// Validate checks the template against the field set and rule invariants.
func (c TemplateConfig) Validate() error {
	if c.LineXPath == "" {
		return fmt.Errorf("%w: lineXpath is required", ErrInvalidInput)
	}
	for name, rule := range c.Fields {
		if !name.Valid() {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, name)
		}
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	for i, f := range c.Filters {
		if f.Action != FilterInclude && f.Action != FilterExclude {
			return fmt.Errorf("%w: filter %d has unknown action %q", ErrInvalidInput, i, f.Action)
		}
		if f.Field != "" && !f.Field.Valid() {
			return fmt.Errorf("%w: filter %d names unknown field %q", ErrInvalidInput, i, f.Field)
		}
	}
	return nil
}

// Template is a persisted, supplier-specific extraction and matching setup.
type Template struct {
	ID                   string             `json:"id"`
	TenantID             string             `json:"tenantId"`
	Name                 string             `json:"name"`
	SupplierVAT          string             `json:"supplierVat,omitempty"`
	Config               TemplateConfig     `json:"config"`
	Tolerances           MatchingTolerances `json:"tolerances"`
	RequireManualConfirm bool               `json:"requireManualConfirm"`
	Enabled              bool               `json:"enabled"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}
