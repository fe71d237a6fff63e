// Package template models configuration templates: typed field schemas,
// default values, and the merge rules that turn schemas plus override
// layers into the values served to customers.
package template

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FieldKind identifies the value type of a template field.
type FieldKind string

const (
	KindString  FieldKind = "STRING"
	KindNumber  FieldKind = "NUMBER"
	KindBoolean FieldKind = "BOOLEAN"
	KindEnum    FieldKind = "ENUM"
)

// Field is a single typed entry in a template schema. Implementations are
// immutable once constructed; constructors reject invalid constraint
// combinations so a Field in hand is always well-formed.
type Field interface {
	Kind() FieldKind
	Key() string
	Description() string
	Editable() bool

	// DefaultValue returns the field's default, or nil when none is set.
	DefaultValue() any

	// Validate reports whether v satisfies the field's constraints.
	Validate(v any) error
}

type baseField struct {
	key         string
	description string
	editable    bool
}

func (b baseField) Key() string         { return b.key }
func (b baseField) Description() string { return b.description }
func (b baseField) Editable() bool      { return b.editable }

func validateBase(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("field key must not be blank")
	}
	return nil
}

// StringField constrains values to strings within a length range.
type StringField struct {
	baseField
	defaultValue *string
	minLength    int
	maxLength    int
}

// NewStringField builds a string field. A nil defaultValue means the field
// has no default and contributes nothing to the schema's default map.
func NewStringField(key, description string, editable bool, defaultValue *string, minLength, maxLength int) (*StringField, error) {
	if err := validateBase(key); err != nil {
		return nil, err
	}
	if minLength < 0 {
		return nil, fmt.Errorf("field %q: minLength must not be negative", key)
	}
	if maxLength <= 0 {
		return nil, fmt.Errorf("field %q: maxLength must be positive", key)
	}
	if minLength > maxLength {
		return nil, fmt.Errorf("field %q: minLength %d exceeds maxLength %d", key, minLength, maxLength)
	}
	f := &StringField{
		baseField:    baseField{key: key, description: description, editable: editable},
		defaultValue: defaultValue,
		minLength:    minLength,
		maxLength:    maxLength,
	}
	if defaultValue != nil {
		if err := f.Validate(*defaultValue); err != nil {
			return nil, fmt.Errorf("field %q: default value invalid: %w", key, err)
		}
	}
	return f, nil
}

func (f *StringField) Kind() FieldKind { return KindString }
func (f *StringField) MinLength() int  { return f.minLength }
func (f *StringField) MaxLength() int  { return f.maxLength }

func (f *StringField) DefaultValue() any {
	if f.defaultValue == nil {
		return nil
	}
	return *f.defaultValue
}

func (f *StringField) Validate(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	if len(s) < f.minLength {
		return fmt.Errorf("string shorter than minimum length %d", f.minLength)
	}
	if len(s) > f.maxLength {
		return fmt.Errorf("string longer than maximum length %d", f.maxLength)
	}
	return nil
}

// NumberField constrains values to a range aligned to an increment grid
// anchored at minValue.
type NumberField struct {
	baseField
	defaultValue    *float64
	minValue        float64
	maxValue        float64
	incrementAmount float64
}

func NewNumberField(key, description string, editable bool, defaultValue *float64, minValue, maxValue, incrementAmount float64) (*NumberField, error) {
	if err := validateBase(key); err != nil {
		return nil, err
	}
	if minValue > maxValue {
		return nil, fmt.Errorf("field %q: minValue %v exceeds maxValue %v", key, minValue, maxValue)
	}
	if incrementAmount <= 0 {
		return nil, fmt.Errorf("field %q: incrementAmount must be positive", key)
	}
	f := &NumberField{
		baseField:       baseField{key: key, description: description, editable: editable},
		defaultValue:    defaultValue,
		minValue:        minValue,
		maxValue:        maxValue,
		incrementAmount: incrementAmount,
	}
	if defaultValue != nil {
		if err := f.Validate(*defaultValue); err != nil {
			return nil, fmt.Errorf("field %q: default value invalid: %w", key, err)
		}
	}
	return f, nil
}

func (f *NumberField) Kind() FieldKind          { return KindNumber }
func (f *NumberField) MinValue() float64        { return f.minValue }
func (f *NumberField) MaxValue() float64        { return f.maxValue }
func (f *NumberField) IncrementAmount() float64 { return f.incrementAmount }

func (f *NumberField) DefaultValue() any {
	if f.defaultValue == nil {
		return nil
	}
	return *f.defaultValue
}

func (f *NumberField) Validate(v any) error {
	n, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("expected number, got %T", v)
	}
	if n < f.minValue || n > f.maxValue {
		return fmt.Errorf("number %v outside range [%v, %v]", n, f.minValue, f.maxValue)
	}
	steps := (n - f.minValue) / f.incrementAmount
	// Tolerance scales with the increment so float rounding on large grids
	// does not reject values that sit on a step.
	if math.Abs(steps-math.Round(steps)) > f.incrementAmount*1e-9 {
		return fmt.Errorf("number %v not reachable from %v in increments of %v", n, f.minValue, f.incrementAmount)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// BooleanField constrains values to booleans.
type BooleanField struct {
	baseField
	defaultValue *bool
}

func NewBooleanField(key, description string, editable bool, defaultValue *bool) (*BooleanField, error) {
	if err := validateBase(key); err != nil {
		return nil, err
	}
	return &BooleanField{
		baseField:    baseField{key: key, description: description, editable: editable},
		defaultValue: defaultValue,
	}, nil
}

func (f *BooleanField) Kind() FieldKind { return KindBoolean }

func (f *BooleanField) DefaultValue() any {
	if f.defaultValue == nil {
		return nil
	}
	return *f.defaultValue
}

func (f *BooleanField) Validate(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", v)
	}
	return nil
}

// EnumField constrains values to a fixed set of options.
type EnumField struct {
	baseField
	defaultValue *string
	options      []string
}

// NewEnumField builds an enum field. Options must be non-empty, contain no
// blank entries, and include the default when one is set.
func NewEnumField(key, description string, editable bool, defaultValue *string, options []string) (*EnumField, error) {
	if err := validateBase(key); err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, fmt.Errorf("field %q: enum requires at least one option", key)
	}
	for _, opt := range options {
		if strings.TrimSpace(opt) == "" {
			return nil, fmt.Errorf("field %q: enum options must not be blank", key)
		}
	}
	f := &EnumField{
		baseField:    baseField{key: key, description: description, editable: editable},
		defaultValue: defaultValue,
		options:      append([]string(nil), options...),
	}
	if defaultValue != nil {
		if err := f.Validate(*defaultValue); err != nil {
			return nil, fmt.Errorf("field %q: default value invalid: %w", key, err)
		}
	}
	return f, nil
}

func (f *EnumField) Kind() FieldKind { return KindEnum }

func (f *EnumField) DefaultValue() any {
	if f.defaultValue == nil {
		return nil
	}
	return *f.defaultValue
}

// Options returns a copy of the allowed values.
func (f *EnumField) Options() []string {
	return append([]string(nil), f.options...)
}

func (f *EnumField) Validate(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	for _, opt := range f.options {
		if s == opt {
			return nil
		}
	}
	return fmt.Errorf("value %q is not an allowed option", s)
}
