package mutation

import (
	"sync"
	"unicode"

	"github.com/graphql-go/graphql"
)

var (
	errorTypeOnce sync.Once
	errorType     *graphql.Object
)

// ErrorType is the shared payload error object: {field: String, message: String!}.
func ErrorType() *graphql.Object {
	errorTypeOnce.Do(func() {
		errorType = graphql.NewObject(graphql.ObjectConfig{
			Name:        "Error",
			Description: "A validation error attached to an input field, or to the whole input when field is null.",
			Fields: graphql.Fields{
				"field": &graphql.Field{
					Type:        graphql.String,
					Description: "Name of the input field that caused the error. Null for form-wide errors.",
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						fe, ok := p.Source.(FieldError)
						if !ok || fe.Field == nil {
							return nil, nil
						}
						return *fe.Field, nil
					},
				},
				"message": &graphql.Field{
					Type:        graphql.NewNonNull(graphql.String),
					Description: "The error message.",
					Resolve: func(p graphql.ResolveParams) (interface{}, error) {
						fe, ok := p.Source.(FieldError)
						if !ok {
							return nil, nil
						}
						return fe.Message, nil
					},
				},
			},
		})
	})
	return errorType
}

// Field returns the graphql-go mutation field. Call it once per Mutation: the
// payload object type is created on each call and type names must be unique
// within a schema.
func (m *Mutation) Field() *graphql.Field {
	payload := graphql.NewObject(graphql.ObjectConfig{
		Name:   payloadTypeName(m.meta.Name),
		Fields: m.meta.Fields,
	})
	return &graphql.Field{
		Type:        payload,
		Description: m.meta.Description,
		Args:        m.meta.Arguments,
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			result, err := m.Execute(p.Context, Input(p.Args))
			if err != nil {
				return nil, err
			}
			return m.Payload(result), nil
		},
	}
}

// Payload maps a result onto the payload object's fields.
func (m *Mutation) Payload(result Result) map[string]interface{} {
	errs := result.Errors
	if errs == nil {
		errs = []FieldError{}
	}
	var record interface{}
	if result.Success() {
		record = result.Record
	}
	return map[string]interface{}{
		m.meta.ReturnFieldName: record,
		errorsFieldName:        errs,
	}
}

func payloadTypeName(mutationName string) string {
	runes := []rune(mutationName)
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes) + "Payload"
}
