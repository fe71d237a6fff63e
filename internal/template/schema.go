package template

import (
	"encoding/json"
	"fmt"
)

// Schema is an ordered collection of template fields with unique keys.
type Schema struct {
	fields []Field
}

// NewSchema builds a schema, rejecting duplicate field keys.
func NewSchema(fields ...Field) (*Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, dup := seen[f.Key()]; dup {
			return nil, fmt.Errorf("duplicate field key %q", f.Key())
		}
		seen[f.Key()] = struct{}{}
	}
	return &Schema{fields: append([]Field(nil), fields...)}, nil
}

// Fields returns the schema's fields in declaration order.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// Field looks up a field by key.
func (s *Schema) Field(key string) (Field, bool) {
	for _, f := range s.fields {
		if f.Key() == key {
			return f, true
		}
	}
	return nil, false
}

// DefaultValues returns a fresh map of every field's default keyed by field
// key. Fields without a default are omitted. Callers own the map.
func (s *Schema) DefaultValues() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		if dv := f.DefaultValue(); dv != nil {
			out[f.Key()] = dv
		}
	}
	return out
}

// fieldEnvelope is the wire form of a field. The type tag selects which
// constraint columns are meaningful.
type fieldEnvelope struct {
	Type            FieldKind `json:"type"`
	Key             string    `json:"key"`
	Description     string    `json:"description,omitempty"`
	Editable        bool      `json:"editable"`
	DefaultValue    any       `json:"defaultValue"`
	MinLength       *int      `json:"minLength,omitempty"`
	MaxLength       *int      `json:"maxLength,omitempty"`
	MinValue        *float64  `json:"minValue,omitempty"`
	MaxValue        *float64  `json:"maxValue,omitempty"`
	IncrementAmount *float64  `json:"incrementAmount,omitempty"`
	Options         []string  `json:"options,omitempty"`
}

type schemaEnvelope struct {
	Fields []fieldEnvelope `json:"fields"`
}

// MarshalJSON encodes the schema as {"fields": [...]} with one envelope per
// field. A field without a default serializes with an explicit null.
func (s *Schema) MarshalJSON() ([]byte, error) {
	env := schemaEnvelope{Fields: make([]fieldEnvelope, 0, len(s.fields))}
	for _, f := range s.fields {
		fe := fieldEnvelope{
			Type:         f.Kind(),
			Key:          f.Key(),
			Description:  f.Description(),
			Editable:     f.Editable(),
			DefaultValue: f.DefaultValue(),
		}
		switch tf := f.(type) {
		case *StringField:
			minLen, maxLen := tf.MinLength(), tf.MaxLength()
			fe.MinLength = &minLen
			fe.MaxLength = &maxLen
		case *NumberField:
			minVal, maxVal, inc := tf.MinValue(), tf.MaxValue(), tf.IncrementAmount()
			fe.MinValue = &minVal
			fe.MaxValue = &maxVal
			fe.IncrementAmount = &inc
		case *EnumField:
			fe.Options = tf.Options()
		}
		env.Fields = append(env.Fields, fe)
	}
	return json.Marshal(env)
}

// UnmarshalJSON decodes a schema, running the same constructor validation as
// programmatically built schemas.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var env schemaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	fields := make([]Field, 0, len(env.Fields))
	for _, fe := range env.Fields {
		f, err := fe.build()
		if err != nil {
			return err
		}
		fields = append(fields, f)
	}
	built, err := NewSchema(fields...)
	if err != nil {
		return err
	}
	*s = *built
	return nil
}

func (fe fieldEnvelope) build() (Field, error) {
	switch fe.Type {
	case KindString:
		def, err := stringDefault(fe)
		if err != nil {
			return nil, err
		}
		return NewStringField(fe.Key, fe.Description, fe.Editable, def, intOrZero(fe.MinLength), intOrZero(fe.MaxLength))
	case KindNumber:
		var def *float64
		if fe.DefaultValue != nil {
			n, ok := toFloat(fe.DefaultValue)
			if !ok {
				return nil, fmt.Errorf("field %q: number default must be numeric", fe.Key)
			}
			def = &n
		}
		return NewNumberField(fe.Key, fe.Description, fe.Editable, def, floatOrZero(fe.MinValue), floatOrZero(fe.MaxValue), floatOrZero(fe.IncrementAmount))
	case KindBoolean:
		var def *bool
		if fe.DefaultValue != nil {
			b, ok := fe.DefaultValue.(bool)
			if !ok {
				return nil, fmt.Errorf("field %q: boolean default must be a boolean", fe.Key)
			}
			def = &b
		}
		return NewBooleanField(fe.Key, fe.Description, fe.Editable, def)
	case KindEnum:
		def, err := stringDefault(fe)
		if err != nil {
			return nil, err
		}
		return NewEnumField(fe.Key, fe.Description, fe.Editable, def, fe.Options)
	default:
		return nil, fmt.Errorf("field %q: unknown field type %q", fe.Key, fe.Type)
	}
}

func stringDefault(fe fieldEnvelope) (*string, error) {
	if fe.DefaultValue == nil {
		return nil, nil
	}
	s, ok := fe.DefaultValue.(string)
	if !ok {
		return nil, fmt.Errorf("field %q: default must be a string", fe.Key)
	}
	return &s, nil
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
