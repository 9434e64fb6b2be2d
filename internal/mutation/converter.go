package mutation

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/scalars"
)

// Converter maps a form field descriptor to a GraphQL input type. Build wraps the
// result in NonNull for required fields, so converters return nullable types.
type Converter interface {
	ScalarTypeFor(field forms.Field) (graphql.Input, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(field forms.Field) (graphql.Input, error)

func (f ConverterFunc) ScalarTypeFor(field forms.Field) (graphql.Input, error) {
	return f(field)
}

var (
	defaultConverterOnce sync.Once
	defaultConverter     *enumConverter
)

// DefaultConverter maps value types to built-in scalars, references to ID and
// choice fields to enums named after the field ("currency" -> "CurrencyEnum").
// Enum types are cached so repeated builds reuse the same graphql-go type.
func DefaultConverter() Converter {
	defaultConverterOnce.Do(func() {
		defaultConverter = &enumConverter{enums: map[string]*cachedEnum{}}
	})
	return defaultConverter
}

type cachedEnum struct {
	enum    *graphql.Enum
	choices []forms.Choice
}

type enumConverter struct {
	mu    sync.Mutex
	enums map[string]*cachedEnum
}

func (c *enumConverter) ScalarTypeFor(field forms.Field) (graphql.Input, error) {
	switch field.Kind {
	case forms.KindReference:
		return graphql.ID, nil
	case forms.KindChoice:
		return c.enumFor(field)
	case forms.KindScalar:
		return scalarFor(field.Type)
	default:
		return nil, fmt.Errorf("unsupported field kind %s", field.Kind)
	}
}

func scalarFor(t forms.ValueType) (graphql.Input, error) {
	switch t {
	case forms.TypeString:
		return graphql.String, nil
	case forms.TypeInt:
		return graphql.Int, nil
	case forms.TypeFloat:
		return graphql.Float, nil
	case forms.TypeBoolean:
		return graphql.Boolean, nil
	case forms.TypeDecimal:
		return scalars.Decimal(), nil
	case forms.TypeID:
		return graphql.ID, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", t)
	}
}

func (c *enumConverter) enumFor(field forms.Field) (graphql.Input, error) {
	if len(field.Choices) == 0 {
		return nil, fmt.Errorf("choice field has no choices")
	}
	name := enumTypeName(field.Name)

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.enums[name]; ok {
		if !sameChoices(cached.choices, field.Choices) {
			return nil, fmt.Errorf("enum %s is already defined with different choices", name)
		}
		return cached.enum, nil
	}

	values := graphql.EnumValueConfigMap{}
	for _, choice := range field.Choices {
		valueName := enumValueName(choice.Value)
		if valueName == "" {
			return nil, fmt.Errorf("choice %q cannot be used as an enum value", choice.Value)
		}
		if _, exists := values[valueName]; exists {
			return nil, fmt.Errorf("choices collide on enum value %s", valueName)
		}
		values[valueName] = &graphql.EnumValueConfig{
			Value:       choice.Value,
			Description: choice.Label,
		}
	}
	enum := graphql.NewEnum(graphql.EnumConfig{
		Name:        name,
		Description: "An enumeration.",
		Values:      values,
	})
	c.enums[name] = &cachedEnum{
		enum:    enum,
		choices: append([]forms.Choice(nil), field.Choices...),
	}
	return enum, nil
}

func sameChoices(a, b []forms.Choice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func enumTypeName(fieldName string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range fieldName {
		if r == '_' || r == '-' || r == ' ' {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		b.WriteRune(r)
	}
	return b.String() + "Enum"
}

// enumValueName converts a choice value into a GraphQL enum value name:
// "usd" -> "USD", "in-stock" -> "IN_STOCK", "3d" -> "A_3D".
func enumValueName(value string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToUpper(r))
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	name := strings.TrimSuffix(b.String(), "_")
	if name == "" {
		return ""
	}
	if unicode.IsDigit(rune(name[0])) {
		name = "A_" + name
	}
	return name
}
