// Package ingress validates the wire-level context contract before anything
// touches the ledger, so malformed submissions are rejected with field-level
// detail instead of decode errors.
package ingress

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// contextSchema is the JSON Schema for the ingress context object. All
// enumerated fields plus the agency_present bool are required;
// influence_methods is optional.
const contextSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["causation", "agency_present", "duty_of_care", "knowledge_level", "control_level"],
  "properties": {
    "causation": {"enum": ["ai_decision", "natural", "human_directed"]},
    "agency_present": {"type": "boolean"},
    "duty_of_care": {"enum": ["critical", "high", "medium", "low"]},
    "knowledge_level": {"enum": ["full", "partial", "none"]},
    "control_level": {"enum": ["direct", "indirect", "none"]},
    "influence_methods": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["method", "weight"],
        "properties": {
          "method": {"type": "string", "minLength": 1},
          "weight": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  },
  "additionalProperties": false
}`

// Validator checks raw context JSON against the ingress schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded context schema.
func NewValidator() (*Validator, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(contextSchema)))
	if err != nil {
		return nil, fmt.Errorf("NewValidator: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("context.json", doc); err != nil {
		return nil, fmt.Errorf("NewValidator: %w", err)
	}
	schema, err := c.Compile("context.json")
	if err != nil {
		return nil, fmt.Errorf("NewValidator: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks one context document. raw must be valid JSON; the returned
// error carries the schema violation detail.
func (v *Validator) Validate(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("context is not valid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("context schema: %w", err)
	}
	return nil
}
