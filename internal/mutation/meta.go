// Package mutation derives GraphQL mutations from form definitions.
//
// A Config names a form, the record type it produces and any explicitly declared
// arguments or output fields. Build merges the declarations with arguments derived
// from the form's fields and returns an immutable Meta; a Mutation executes it per
// request and shapes validation failures into {field, message} errors.
package mutation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/forms"
)

// Kind selects create or update behavior.
type Kind int

const (
	kindUnset Kind = iota
	KindCreate
	KindUpdate
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	default:
		return "unset"
	}
}

const (
	errorsFieldName = "errors"
	idArgumentName  = "id"
	maxExtendsDepth = 32
)

// Config declares a mutation. Only Form, RecordType and Name are mandatory for
// concrete mutations; update mutations also need a Resolver.
type Config struct {
	// Name is the mutation field name, e.g. "productCreate".
	Name        string
	Description string
	Form        forms.Definition
	// Model defaults to Form.Model().
	Model string
	// ReturnFieldName defaults to the model name with a lower-cased leading word.
	ReturnFieldName string
	// RecordType is the GraphQL type of the return field.
	RecordType graphql.Output
	// Arguments are declared explicitly and win over form-derived arguments.
	Arguments graphql.FieldConfigArgument
	// Fields are extra payload fields. Their resolvers receive the payload map as source.
	Fields    graphql.Fields
	Kind      Kind
	Resolver  RecordResolver
	Converter Converter
	// Authorize runs before binding; an error becomes a non-field error.
	Authorize func(ctx context.Context) error
	// Extends points at a less-derived config. The most-derived value wins.
	Extends *Config
	// Abstract configs exist only to be extended and need no form.
	Abstract bool
}

// Meta is the merged, read-only description of a mutation. It is computed once
// and shared by all requests; callers must not modify its maps.
type Meta struct {
	Name            string
	Description     string
	Form            forms.Definition
	Model           string
	ReturnFieldName string
	Kind            Kind
	Abstract        bool
	RecordType      graphql.Output
	Arguments       graphql.FieldConfigArgument
	Fields          graphql.Fields

	resolver  RecordResolver
	authorize func(ctx context.Context) error
}

// ConfigurationError reports an invalid mutation declaration. It is raised while
// the schema is assembled and never reaches a client.
type ConfigurationError struct {
	Mutation string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	name := e.Mutation
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("mutation %s: %s", name, e.Reason)
}

func configErr(name, format string, args ...any) error {
	return &ConfigurationError{Mutation: name, Reason: fmt.Sprintf(format, args...)}
}

// Build merges cfg (and its Extends chain) into a Meta. It has no side effects,
// so building the same Config twice yields structurally identical results.
func Build(cfg Config) (*Meta, error) {
	merged, err := flatten(cfg)
	if err != nil {
		return nil, err
	}

	if merged.Abstract {
		return &Meta{
			Name:            merged.Name,
			Description:     merged.Description,
			Form:            merged.Form,
			Model:           merged.Model,
			ReturnFieldName: merged.ReturnFieldName,
			Kind:            merged.Kind,
			Abstract:        true,
			RecordType:      merged.RecordType,
			Arguments:       copyArguments(merged.Arguments),
			Fields:          copyFields(merged.Fields),
			resolver:        merged.Resolver,
			authorize:       merged.Authorize,
		}, nil
	}

	name := strings.TrimSpace(merged.Name)
	if name == "" {
		return nil, configErr("", "name is required")
	}
	if merged.Form == nil {
		return nil, configErr(name, "form is required")
	}
	if merged.RecordType == nil {
		return nil, configErr(name, "record type is required")
	}
	kind := merged.Kind
	if kind == kindUnset {
		kind = KindCreate
	}
	if kind == KindUpdate && merged.Resolver == nil {
		return nil, configErr(name, "update mutations require a record resolver")
	}

	model := strings.TrimSpace(merged.Model)
	if model == "" {
		model = strings.TrimSpace(merged.Form.Model())
	}
	if model == "" {
		return nil, configErr(name, "model is required")
	}

	returnField := strings.TrimSpace(merged.ReturnFieldName)
	if returnField == "" {
		returnField = defaultReturnFieldName(model)
	}
	if returnField == errorsFieldName {
		return nil, configErr(name, "return field name %q is reserved", errorsFieldName)
	}
	for fieldName := range merged.Fields {
		if fieldName == errorsFieldName || fieldName == returnField {
			return nil, configErr(name, "declared output field %q collides with a generated payload field", fieldName)
		}
	}

	converter := merged.Converter
	if converter == nil {
		converter = DefaultConverter()
	}

	arguments := copyArguments(merged.Arguments)
	for _, field := range merged.Form.Fields() {
		if _, declared := arguments[field.Name]; declared {
			continue
		}
		argType, err := converter.ScalarTypeFor(field)
		if err != nil {
			return nil, configErr(name, "field %q: %v", field.Name, err)
		}
		if field.Required {
			argType = graphql.NewNonNull(argType)
		}
		arguments[field.Name] = &graphql.ArgumentConfig{
			Type:        argType,
			Description: field.Help,
		}
	}
	if kind == KindUpdate {
		arguments[idArgumentName] = &graphql.ArgumentConfig{
			Type:        graphql.NewNonNull(graphql.ID),
			Description: "ID of the " + model + " to update.",
		}
	}

	fields := copyFields(merged.Fields)
	fields[returnField] = &graphql.Field{Type: merged.RecordType}
	fields[errorsFieldName] = &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(ErrorType()))),
		Description: "List of errors that occurred executing the mutation.",
	}

	return &Meta{
		Name:            name,
		Description:     merged.Description,
		Form:            merged.Form,
		Model:           model,
		ReturnFieldName: returnField,
		Kind:            kind,
		RecordType:      merged.RecordType,
		Arguments:       arguments,
		Fields:          fields,
		resolver:        merged.Resolver,
		authorize:       merged.Authorize,
	}, nil
}

// flatten walks the Extends chain and overlays configs from the root ancestor to cfg.
func flatten(cfg Config) (Config, error) {
	chain := []Config{cfg}
	seen := map[*Config]bool{}
	for parent := cfg.Extends; parent != nil; parent = parent.Extends {
		if seen[parent] || len(chain) > maxExtendsDepth {
			return Config{}, configErr(cfg.Name, "Extends chain is cyclic or too deep")
		}
		seen[parent] = true
		chain = append(chain, *parent)
	}

	merged := Config{
		Arguments: graphql.FieldConfigArgument{},
		Fields:    graphql.Fields{},
	}
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		if c.Name != "" {
			merged.Name = c.Name
		}
		if c.Description != "" {
			merged.Description = c.Description
		}
		if c.Form != nil {
			merged.Form = c.Form
		}
		if c.Model != "" {
			merged.Model = c.Model
		}
		if c.ReturnFieldName != "" {
			merged.ReturnFieldName = c.ReturnFieldName
		}
		if c.RecordType != nil {
			merged.RecordType = c.RecordType
		}
		if c.Kind != kindUnset {
			merged.Kind = c.Kind
		}
		if c.Resolver != nil {
			merged.Resolver = c.Resolver
		}
		if c.Converter != nil {
			merged.Converter = c.Converter
		}
		if c.Authorize != nil {
			merged.Authorize = c.Authorize
		}
		for k, v := range c.Arguments {
			merged.Arguments[k] = v
		}
		for k, v := range c.Fields {
			merged.Fields[k] = v
		}
	}
	merged.Abstract = cfg.Abstract
	return merged, nil
}

// defaultReturnFieldName lower-cases the leading word of a model name:
// "Product" -> "product", "ProductType" -> "productType", "SKU" -> "sku".
func defaultReturnFieldName(model string) string {
	runes := []rune(model)
	upper := 0
	for upper < len(runes) && unicode.IsUpper(runes[upper]) {
		upper++
	}
	lower := upper
	if upper > 1 && upper < len(runes) {
		lower = upper - 1
	}
	for i := 0; i < lower; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func copyArguments(in graphql.FieldConfigArgument) graphql.FieldConfigArgument {
	out := make(graphql.FieldConfigArgument, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFields(in graphql.Fields) graphql.Fields {
	out := make(graphql.Fields, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ArgumentNames returns the merged argument names, sorted.
func (m *Meta) ArgumentNames() []string {
	names := make([]string, 0, len(m.Arguments))
	for name := range m.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Description is a comparable snapshot of a Meta's schema shape.
type Description struct {
	Name            string
	Model           string
	ReturnFieldName string
	Kind            string
	Arguments       map[string]string
	Fields          map[string]string
}

// Describe renders argument and field types as GraphQL type strings.
func (m *Meta) Describe() Description {
	d := Description{
		Name:            m.Name,
		Model:           m.Model,
		ReturnFieldName: m.ReturnFieldName,
		Kind:            m.Kind.String(),
		Arguments:       make(map[string]string, len(m.Arguments)),
		Fields:          make(map[string]string, len(m.Fields)),
	}
	for name, arg := range m.Arguments {
		d.Arguments[name] = typeString(arg.Type)
	}
	for name, field := range m.Fields {
		d.Fields[name] = typeString(field.Type)
	}
	return d
}

func typeString(t graphql.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
