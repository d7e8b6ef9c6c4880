package extract

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/opensource-finance/fuelrecon/internal/domain"
)

const templateSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["lineXpath", "fields"],
  "properties": {
    "lineXpath": {"type": "string", "minLength": 1},
    "invoiceNumberXpath": {"type": "string"},
    "invoiceDateXpath": {"type": "string"},
    "supplierVatXpath": {"type": "string"},
    "fields": {
      "type": "object",
      "propertyNames": {
        "enum": ["plate", "date", "fuelType", "quantity", "amount", "cardNumber", "odometer", "description", "unitPrice"]
      },
      "additionalProperties": {"$ref": "#/definitions/rule"}
    },
    "filters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["action"],
        "properties": {
          "field": {"type": "string"},
          "regex": {"type": "string"},
          "expression": {"type": "string"},
          "action": {"enum": ["include", "exclude"]}
        }
      }
    }
  },
  "definitions": {
    "transform": {"enum": ["", "uppercase", "lowercase", "trim"]},
    "rule": {
      "type": "object",
      "required": ["method"],
      "properties": {
        "method": {"enum": ["STATIC", "XPATH", "REGEX", "XPATH_REGEX"]},
        "xpath": {"type": "string"},
        "staticValue": {"type": "string"},
        "regex": {"type": "string"},
        "regexGroup": {"type": "integer", "minimum": 0},
        "transform": {"$ref": "#/definitions/transform"},
        "patterns": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["pattern"],
            "properties": {
              "pattern": {"type": "string", "minLength": 1},
              "group": {"type": "integer", "minimum": 0},
              "transform": {"$ref": "#/definitions/transform"}
            }
          }
        }
      }
    }
  }
}`

var compiledTemplateSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("template.json", strings.NewReader(templateSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("template.json")
})

// ParseTemplateConfig validates a JSON template document against the
// template schema and the rule invariants, then decodes it.
func ParseTemplateConfig(data []byte) (domain.TemplateConfig, error) {
	var cfg domain.TemplateConfig

	schema, err := compiledTemplateSchema()
	if err != nil {
		return cfg, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return cfg, fmt.Errorf("%w: unmarshal template: %v", domain.ErrInvalidInput, err)
	}
	if err := schema.Validate(v); err != nil {
		return cfg, fmt.Errorf("%w: template does not match schema: %v", domain.ErrInvalidInput, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: decode template: %v", domain.ErrInvalidInput, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
