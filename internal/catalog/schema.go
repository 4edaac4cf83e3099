package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/kartikbazzad/reactorcore/internal/errs"
)

// FieldType enumerates the scalar JSON types a schema can require.
type FieldType int

const (
	TypeAny FieldType = iota
	TypeString
	TypeNumber
	TypeBool
)

// FieldRule constrains one top-level field of a document's value.
type FieldRule struct {
	Name     string
	Type     FieldType
	Required bool
}

// Schema validates a document's JSON value against a cached set of field
// rules. A nil rule set accepts anything.
type Schema struct {
	rules []FieldRule
}

// NewSchema returns a Schema enforcing rules.
func NewSchema(rules []FieldRule) *Schema {
	return &Schema{rules: rules}
}

// Validate checks payload (a JSON object) against the schema's rules.
func (s *Schema) Validate(payload []byte) error {
	if len(s.rules) == 0 {
		if !json.Valid(payload) {
			return &errs.InvalidWrite{Reason: "payload is not valid JSON"}
		}
		return nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return &errs.InvalidWrite{Reason: "payload must be a JSON object: " + err.Error()}
	}

	for _, rule := range s.rules {
		v, present := obj[rule.Name]
		if !present {
			if rule.Required {
				return &errs.InvalidWrite{Reason: fmt.Sprintf("missing required field %q", rule.Name)}
			}
			continue
		}
		if !typeMatches(rule.Type, v) {
			return &errs.InvalidWrite{Reason: fmt.Sprintf("field %q has wrong type", rule.Name)}
		}
	}
	return nil
}

func typeMatches(t FieldType, v interface{}) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeBool:
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

// ExtractFields decodes a JSON document value into a flat field map,
// suitable for model.IndexDefinition.DeriveKey.
func ExtractFields(payload []byte) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, &errs.InvalidWrite{Reason: "payload must be a JSON object: " + err.Error()}
	}
	return obj, nil
}
