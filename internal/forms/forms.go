// Package forms describes record-backed input forms: an ordered set of field
// descriptors, per-field constraints, form-wide validation and a save hook.
// Mutations are derived from these definitions; forms know nothing about GraphQL.
package forms

import (
	"context"
	"errors"
	"sort"
)

// Record is a domain entity instance produced or loaded by a form's backing store.
type Record = any

var (
	// ErrNotFound reports that a record identifier could not be resolved.
	ErrNotFound = errors.New("record not found")
	// ErrNotValid is returned by Save when the bound form has not passed validation.
	ErrNotValid = errors.New("form is not valid")
)

// FieldKind classifies how a field's value is interpreted.
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindChoice
	KindReference
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindChoice:
		return "choice"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ValueType is the scalar type a field's cleaned value is coerced to.
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBoolean
	TypeDecimal
	TypeID
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeDecimal:
		return "decimal"
	case TypeID:
		return "id"
	default:
		return "unknown"
	}
}

// Choice is one allowed (value, label) pair of a choice field.
type Choice struct {
	Value string
	Label string
}

// Field describes a single form field. Descriptors are immutable once a form is defined.
type Field struct {
	Name     string
	Kind     FieldKind
	Type     ValueType
	Required bool
	Choices  []Choice
	Help     string

	// Optional constraints checked during cleaning.
	MaxLength int
	Min       *float64
	Email     bool
	// MaxDigits and DecimalPlaces bound TypeDecimal values. Zero means unbounded.
	MaxDigits     int
	DecimalPlaces int
	// NoStrip keeps surrounding whitespace of string values, e.g. for passwords.
	NoStrip bool
}

// Errors collects validation failures: per-field messages and form-wide messages.
type Errors struct {
	Fields   map[string][]string
	NonField []string
}

// Add records a message against a named field.
func (e *Errors) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

// AddNonField records a message that is not attributable to a single field.
func (e *Errors) AddNonField(message string) {
	e.NonField = append(e.NonField, message)
}

// Has reports whether the field already has at least one message.
func (e *Errors) Has(field string) bool {
	return len(e.Fields[field]) > 0
}

// Valid reports whether no failures were recorded.
func (e Errors) Valid() bool {
	for _, msgs := range e.Fields {
		if len(msgs) > 0 {
			return false
		}
	}
	return len(e.NonField) == 0
}

// FieldNames returns the names of fields with messages, sorted.
func (e Errors) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name, msgs := range e.Fields {
		if len(msgs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Definition is a static form description, shared by all requests.
type Definition interface {
	// Name identifies the form, e.g. "ProductForm".
	Name() string
	// Model names the record type the form creates or updates.
	Model() string
	// Fields returns descriptors in declaration order.
	Fields() []Field
	// Bind attaches submitted data to the form. instance is nil when creating.
	Bind(instance Record, data map[string]any) Bound
}

// Bound is a form holding one request's data.
type Bound interface {
	Validate(ctx context.Context) Errors
	// Save persists the record. It returns ErrNotValid unless Validate succeeded.
	Save(ctx context.Context) (Record, error)
}

// MinValue is a helper for declaring Field.Min inline.
func MinValue(v float64) *float64 {
	return &v
}
