package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/logging"
)

// Input maps argument names to submitted values for one invocation.
type Input map[string]any

// FieldError is one entry of a payload's errors list. Field is nil for errors
// that are not attributable to a single input field.
type FieldError struct {
	Field   *string `json:"field"`
	Message string  `json:"message"`
}

// NewFieldError returns an error attached to field.
func NewFieldError(field, message string) FieldError {
	return FieldError{Field: &field, Message: message}
}

// NonFieldError returns a form-wide error.
func NonFieldError(message string) FieldError {
	return FieldError{Message: message}
}

// Result is the outcome of one execution. It succeeded iff Errors is empty.
type Result struct {
	Record forms.Record
	Errors []FieldError
}

// Success reports whether the mutation produced a record.
func (r Result) Success() bool {
	return len(r.Errors) == 0
}

// RecordResolver loads the record an update mutation targets. Implementations
// return forms.ErrNotFound (possibly wrapped) when id does not resolve.
type RecordResolver interface {
	Resolve(ctx context.Context, id string) (forms.Record, error)
}

// ResolverFunc adapts a function to the RecordResolver interface.
type ResolverFunc func(ctx context.Context, id string) (forms.Record, error)

func (f ResolverFunc) Resolve(ctx context.Context, id string) (forms.Record, error) {
	return f(ctx, id)
}

// Outcome labels used for metrics, spans and logs.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeDenied   = "denied"
	OutcomeError    = "error"
)

// MetricsRecorder receives one observation per execution.
type MetricsRecorder interface {
	RecordMutation(ctx context.Context, mutation, kind, outcome string, duration time.Duration)
}

// Option configures a Mutation.
type Option func(*Mutation)

// WithMetrics records execution outcomes.
func WithMetrics(recorder MetricsRecorder) Option {
	return func(m *Mutation) {
		m.metrics = recorder
	}
}

// Mutation executes a built Meta. It holds no per-request state and is safe for
// concurrent use.
type Mutation struct {
	meta    *Meta
	metrics MetricsRecorder
}

// New builds cfg and wraps the result.
func New(cfg Config, opts ...Option) (*Mutation, error) {
	meta, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	return NewMutation(meta, opts...)
}

// NewMutation wraps an already built Meta. Abstract metas cannot be executed.
func NewMutation(meta *Meta, opts ...Option) (*Mutation, error) {
	if meta == nil {
		return nil, &ConfigurationError{Reason: "meta is nil"}
	}
	if meta.Abstract {
		return nil, configErr(meta.Name, "abstract mutations cannot be executed")
	}
	m := &Mutation{meta: meta}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Meta returns the shared, read-only mutation description.
func (m *Mutation) Meta() *Meta {
	return m.meta
}

// Execute binds input onto the form, validates it and saves the record.
// Validation failures, unresolvable ids and authorization failures are reported
// in Result.Errors; the returned error is non-nil only for store faults.
func (m *Mutation) Execute(ctx context.Context, input Input) (result Result, err error) {
	start := time.Now()
	ctx, span := startMutationSpan(ctx, m.meta)
	outcome := OutcomeError
	defer func() {
		finishMutationSpan(span, err, outcome)
		if m.metrics != nil {
			m.metrics.RecordMutation(ctx, m.meta.Name, m.meta.Kind.String(), outcome, time.Since(start))
		}
		logOutcome(ctx, m.meta, outcome, len(result.Errors), err)
	}()

	if m.meta.authorize != nil {
		if authErr := m.meta.authorize(ctx); authErr != nil {
			outcome = OutcomeDenied
			return Result{Errors: []FieldError{NonFieldError(authErr.Error())}}, nil
		}
	}

	var instance forms.Record
	if m.meta.Kind == KindUpdate {
		id := idFromInput(input)
		if id == "" {
			outcome = OutcomeNotFound
			return notFoundResult(id), nil
		}
		instance, err = m.meta.resolver.Resolve(ctx, id)
		if errors.Is(err, forms.ErrNotFound) {
			outcome = OutcomeNotFound
			return notFoundResult(id), nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s: resolve %s %q: %w", m.meta.Name, m.meta.Model, id, err)
		}
		if instance == nil {
			outcome = OutcomeNotFound
			return notFoundResult(id), nil
		}
	}

	bound := m.meta.Form.Bind(instance, m.formData(input))
	if errs := bound.Validate(ctx); !errs.Valid() {
		outcome = OutcomeInvalid
		return Result{Errors: shapeErrors(m.meta.Form.Fields(), errs)}, nil
	}

	record, err := bound.Save(ctx)
	if err != nil {
		var validationErr *forms.ValidationError
		if errors.As(err, &validationErr) {
			outcome = OutcomeInvalid
			return Result{Errors: shapeErrors(m.meta.Form.Fields(), validationErr.Errors)}, nil
		}
		return Result{}, fmt.Errorf("%s: save %s: %w", m.meta.Name, m.meta.Model, err)
	}

	outcome = OutcomeSuccess
	return Result{Record: record}, nil
}

// formData copies input for binding. The update id is consumed by the resolver
// and never reaches the form.
func (m *Mutation) formData(input Input) map[string]any {
	data := make(map[string]any, len(input))
	for k, v := range input {
		if m.meta.Kind == KindUpdate && k == idArgumentName {
			continue
		}
		data[k] = v
	}
	return data
}

func idFromInput(input Input) string {
	switch v := input[idArgumentName].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func notFoundResult(id string) Result {
	return Result{Errors: []FieldError{
		NewFieldError(idArgumentName, fmt.Sprintf("Couldn't resolve to a node: %s", id)),
	}}
}

// shapeErrors flattens form errors: declared fields in declaration order, then
// any other fields by name, then non-field errors in the order produced.
func shapeErrors(fields []forms.Field, errs forms.Errors) []FieldError {
	out := make([]FieldError, 0, len(errs.Fields)+len(errs.NonField))
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		seen[field.Name] = true
		for _, msg := range errs.Fields[field.Name] {
			out = append(out, NewFieldError(field.Name, msg))
		}
	}
	for _, name := range errs.FieldNames() {
		if seen[name] {
			continue
		}
		for _, msg := range errs.Fields[name] {
			out = append(out, NewFieldError(name, msg))
		}
	}
	for _, msg := range errs.NonField {
		out = append(out, NonFieldError(msg))
	}
	return out
}

func logOutcome(ctx context.Context, meta *Meta, outcome string, errorCount int, err error) {
	logger := logging.FromContext(ctx)
	switch outcome {
	case OutcomeSuccess:
		logger.Debug("mutation executed",
			"mutation", meta.Name,
			"outcome", outcome,
		)
	case OutcomeError:
		logger.Error("mutation failed",
			"mutation", meta.Name,
			"outcome", outcome,
			"error", err,
		)
	default:
		logger.Warn("mutation rejected",
			"mutation", meta.Name,
			"outcome", outcome,
			"error_count", errorCount,
		)
	}
}
