package template

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// JSONSchema renders the schema as a draft-07 JSON Schema document for a
// partial values object: one property per field, no extra keys allowed,
// nothing required. Override maps are partial by design, so presence is
// never enforced here.
func (s *Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		properties[f.Key()] = fieldJSONSchema(f)
	}
	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
}

func fieldJSONSchema(f Field) map[string]any {
	out := map[string]any{}
	if desc := f.Description(); desc != "" {
		out["description"] = desc
	}
	switch tf := f.(type) {
	case *StringField:
		out["type"] = "string"
		out["minLength"] = tf.MinLength()
		out["maxLength"] = tf.MaxLength()
	case *NumberField:
		out["type"] = "number"
		out["minimum"] = tf.MinValue()
		out["maximum"] = tf.MaxValue()
	case *BooleanField:
		out["type"] = "boolean"
	case *EnumField:
		opts := tf.Options()
		enum := make([]any, len(opts))
		for i, o := range opts {
			enum[i] = o
		}
		out["type"] = "string"
		out["enum"] = enum
	}
	return out
}

// ValidateValues checks a partial values map against the schema. Structure,
// types, ranges, and enum membership go through JSON Schema validation; the
// number increment grid is anchored at each field's minimum, which JSON
// Schema's multipleOf cannot express, so it is checked separately.
func (s *Schema) ValidateValues(values map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(s.JSONSchema())
	documentLoader := gojsonschema.NewGoLoader(values)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate values: %w", err)
	}
	if !result.Valid() {
		msgs := ""
		for i, desc := range result.Errors() {
			if i > 0 {
				msgs += "; "
			}
			msgs += desc.String()
		}
		return fmt.Errorf("values do not satisfy template schema: %s", msgs)
	}

	for _, f := range s.fields {
		nf, ok := f.(*NumberField)
		if !ok {
			continue
		}
		v, present := values[f.Key()]
		if !present {
			continue
		}
		if err := nf.Validate(v); err != nil {
			return fmt.Errorf("field %q: %w", f.Key(), err)
		}
	}
	return nil
}
