package forms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
)

const requiredMessage = "This field is required."

// Spec declares a record-backed form.
type Spec struct {
	Name   string
	Model  string
	Fields []Field
	// Initial returns current values of an existing record, keyed by field name.
	// When a form is bound to an instance, a field whose key is missing or nil in
	// the submitted data takes its value from here. Only an empty string clears a
	// stored value; graphql-go drops null arguments, so null and omitted look alike.
	Initial func(instance Record) map[string]any
	// Clean runs form-wide validation after field cleaning, even when fields failed.
	// cleaned only holds values of fields that passed.
	Clean func(ctx context.Context, instance Record, cleaned map[string]any, errs *Errors)
	// Save persists cleaned data and returns the resulting record.
	Save func(ctx context.Context, instance Record, cleaned map[string]any) (Record, error)
}

// ModelForm is the declarative Definition implementation.
type ModelForm struct {
	spec   Spec
	fields []Field
}

// New validates spec and returns a form definition.
func New(spec Spec) (*ModelForm, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, errors.New("form name is required")
	}
	if strings.TrimSpace(spec.Model) == "" {
		return nil, fmt.Errorf("form %s: model is required", spec.Name)
	}
	if spec.Save == nil {
		return nil, fmt.Errorf("form %s: save hook is required", spec.Name)
	}
	seen := make(map[string]bool, len(spec.Fields))
	for _, f := range spec.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("form %s: field name cannot be empty", spec.Name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("form %s: duplicate field %q", spec.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Kind == KindChoice && len(f.Choices) == 0 {
			return nil, fmt.Errorf("form %s: choice field %q has no choices", spec.Name, f.Name)
		}
	}
	fields := make([]Field, len(spec.Fields))
	copy(fields, spec.Fields)
	return &ModelForm{spec: spec, fields: fields}, nil
}

// MustNew is New for package-level form declarations.
func MustNew(spec Spec) *ModelForm {
	form, err := New(spec)
	if err != nil {
		panic(err)
	}
	return form
}

func (f *ModelForm) Name() string  { return f.spec.Name }
func (f *ModelForm) Model() string { return f.spec.Model }

// Fields returns a copy so callers cannot mutate the definition.
func (f *ModelForm) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

func (f *ModelForm) Bind(instance Record, data map[string]any) Bound {
	return &boundForm{form: f, instance: instance, data: data}
}

type boundForm struct {
	form      *ModelForm
	instance  Record
	data      map[string]any
	cleaned   map[string]any
	errs      Errors
	validated bool
}

func (b *boundForm) Validate(ctx context.Context) Errors {
	var initial map[string]any
	if b.instance != nil && b.form.spec.Initial != nil {
		initial = b.form.spec.Initial(b.instance)
	}

	errs := Errors{}
	cleaned := make(map[string]any, len(b.form.fields))
	for _, field := range b.form.fields {
		raw, present := b.data[field.Name]
		if (!present || raw == nil) && initial != nil {
			raw = initial[field.Name]
		}
		if isEmpty(field, raw) {
			if field.Required {
				errs.Add(field.Name, requiredMessage)
				continue
			}
			cleaned[field.Name] = nil
			continue
		}
		value, msg := cleanValue(field, raw)
		if msg != "" {
			errs.Add(field.Name, msg)
			continue
		}
		cleaned[field.Name] = value
	}

	if b.form.spec.Clean != nil {
		b.form.spec.Clean(ctx, b.instance, cleaned, &errs)
	}

	b.cleaned = cleaned
	b.errs = errs
	b.validated = true
	return errs
}

func (b *boundForm) Save(ctx context.Context) (Record, error) {
	if !b.validated || !b.errs.Valid() {
		return nil, ErrNotValid
	}
	return b.form.spec.Save(ctx, b.instance, b.cleaned)
}

func isEmpty(field Field, v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		if field.NoStrip {
			return t == ""
		}
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

// cleanValue coerces raw to the field's type and checks its constraints.
// It returns a non-empty message on failure.
func cleanValue(field Field, raw any) (any, string) {
	value, ok := coerce(field, raw)
	if !ok {
		return nil, invalidMessage(field.Type)
	}
	if field.Type == TypeDecimal {
		if msg := checkDigits(field, value.(string)); msg != "" {
			return nil, msg
		}
	}

	if s, isString := value.(string); isString {
		if field.MaxLength > 0 {
			if n := len([]rune(s)); n > field.MaxLength {
				return nil, fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", field.MaxLength, n)
			}
		}
		if field.Email {
			addr, err := mail.ParseAddress(s)
			if err != nil || addr.Address != s {
				return nil, "Enter a valid email address."
			}
		}
	}

	if field.Min != nil {
		if n, numeric := numericValue(value); numeric && n < *field.Min {
			return nil, fmt.Sprintf("Ensure this value is greater than or equal to %s.", strconv.FormatFloat(*field.Min, 'f', -1, 64))
		}
	}

	if field.Kind == KindChoice {
		key := fmt.Sprint(value)
		for _, c := range field.Choices {
			if c.Value == key {
				return value, ""
			}
		}
		return nil, fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", key)
	}

	return value, ""
}

func invalidMessage(t ValueType) string {
	switch t {
	case TypeInt:
		return "Enter a whole number."
	case TypeFloat, TypeDecimal:
		return "Enter a number."
	case TypeBoolean:
		return "Enter a valid boolean."
	default:
		return "Enter a valid value."
	}
}

// decimalLiteral is the plain notation MySQL DECIMAL columns accept.
var decimalLiteral = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d+)?|\.\d+)$`)

func coerce(field Field, raw any) (any, bool) {
	t := field.Type
	strip := strings.TrimSpace
	if field.NoStrip && t == TypeString {
		strip = func(s string) string { return s }
	}
	switch t {
	case TypeString, TypeID:
		switch v := raw.(type) {
		case string:
			return strip(v), true
		case []byte:
			return strip(string(v)), true
		}
		if t == TypeID {
			switch v := raw.(type) {
			case int:
				return strconv.Itoa(v), true
			case int64:
				return strconv.FormatInt(v, 10), true
			}
		}
		return nil, false
	case TypeInt:
		switch v := raw.(type) {
		case int:
			return int64(v), true
		case int32:
			return int64(v), true
		case int64:
			return v, true
		case float64:
			if v != math.Trunc(v) {
				return nil, false
			}
			return int64(v), true
		case string:
			parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			return parsed, err == nil
		}
		return nil, false
	case TypeFloat:
		switch v := raw.(type) {
		case float64:
			return v, !math.IsNaN(v) && !math.IsInf(v, 0)
		case float32:
			return float64(v), !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
		case int:
			return float64(v), true
		case int64:
			return float64(v), true
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			return parsed, err == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0)
		}
		return nil, false
	case TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, true
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			return parsed, err == nil
		}
		return nil, false
	case TypeDecimal:
		var text string
		switch v := raw.(type) {
		case string:
			text = strings.TrimSpace(v)
		case float64:
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, false
			}
			text = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			text = strconv.Itoa(v)
		case int64:
			text = strconv.FormatInt(v, 10)
		default:
			return nil, false
		}
		if !decimalLiteral.MatchString(text) {
			return nil, false
		}
		return text, true
	}
	return nil, false
}

// checkDigits enforces MaxDigits and DecimalPlaces on a decimal literal.
// Leading zeros of the whole part do not count, trailing fraction zeros do.
func checkDigits(field Field, text string) string {
	if field.MaxDigits <= 0 && field.DecimalPlaces <= 0 {
		return ""
	}
	whole, frac, _ := strings.Cut(strings.TrimLeft(text, "+-"), ".")
	whole = strings.TrimLeft(whole, "0")
	digits := len(whole) + len(frac)
	switch {
	case field.MaxDigits > 0 && digits > field.MaxDigits:
		return fmt.Sprintf("Ensure that there are no more than %d digits in total.", field.MaxDigits)
	case field.DecimalPlaces > 0 && len(frac) > field.DecimalPlaces:
		return fmt.Sprintf("Ensure that there are no more than %d decimal places.", field.DecimalPlaces)
	case field.MaxDigits > 0 && field.DecimalPlaces > 0 && len(whole) > field.MaxDigits-field.DecimalPlaces:
		return fmt.Sprintf("Ensure that there are no more than %d digits before the decimal point.", field.MaxDigits-field.DecimalPlaces)
	}
	return ""
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		r, ok := new(big.Rat).SetString(n)
		if !ok {
			return 0, false
		}
		f, _ := r.Float64()
		return f, true
	}
	return 0, false
}

// ValidationError lets a Save hook report failures discovered while persisting,
// such as a unique constraint raced by a concurrent writer.
type ValidationError struct {
	Errors Errors
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, name := range e.Errors.FieldNames() {
		parts = append(parts, name+": "+strings.Join(e.Errors.Fields[name], " "))
	}
	parts = append(parts, e.Errors.NonField...)
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldValidationError builds a ValidationError for a single field.
func FieldValidationError(field, message string) *ValidationError {
	errs := Errors{}
	errs.Add(field, message)
	return &ValidationError{Errors: errs}
}

// NonFieldValidationError builds a ValidationError with one form-wide message.
func NonFieldValidationError(message string) *ValidationError {
	errs := Errors{}
	errs.AddNonField(message)
	return &ValidationError{Errors: errs}
}
