package mutation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storefront-graphql/internal/forms"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type widget struct {
	ID    string
	Name  string
	Color string
	Size  int64
}

var widgetType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Widget",
	Fields: graphql.Fields{
		"id":    &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"name":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"color": &graphql.Field{Type: graphql.String},
		"size":  &graphql.Field{Type: graphql.Int},
	},
})

var widgetChoices = []forms.Choice{{Value: "red", Label: "Red"}, {Value: "blue", Label: "Blue"}}

// widgetStore is an in-memory backing store for the widget form.
type widgetStore struct {
	mu      sync.Mutex
	records map[string]*widget
	saves   int
	saveErr error
}

func newWidgetStore() *widgetStore {
	return &widgetStore{records: map[string]*widget{
		"1": {ID: "1", Name: "gear", Color: "red", Size: 2},
	}}
}

func (s *widgetStore) Resolve(_ context.Context, id string) (forms.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.records[id]
	if !ok {
		return nil, forms.ErrNotFound
	}
	copied := *w
	return &copied, nil
}

func (s *widgetStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *widgetStore) save(_ context.Context, instance forms.Record, cleaned map[string]any) (forms.Record, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	name, _ := cleaned["name"].(string)
	if name == "taken" {
		return nil, forms.FieldValidationError("name", "Widget with this Name already exists.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	w := &widget{}
	if existing, ok := instance.(*widget); ok {
		*w = *existing
	} else {
		w.ID = strconv.Itoa(len(s.records) + 1)
	}
	w.Name = name
	if color, ok := cleaned["color"].(string); ok {
		w.Color = color
	}
	if size, ok := cleaned["size"].(int64); ok {
		w.Size = size
	}
	s.records[w.ID] = w
	s.saves++
	return w, nil
}

func newWidgetForm(t testing.TB, store *widgetStore) *forms.ModelForm {
	t.Helper()
	form, err := forms.New(forms.Spec{
		Name:  "WidgetForm",
		Model: "Widget",
		Fields: []forms.Field{
			{Name: "name", Kind: forms.KindScalar, Type: forms.TypeString, Required: true, MaxLength: 16},
			{Name: "color", Kind: forms.KindChoice, Type: forms.TypeString, Choices: widgetChoices},
			{Name: "size", Kind: forms.KindScalar, Type: forms.TypeInt, Min: forms.MinValue(1)},
		},
		Initial: func(instance forms.Record) map[string]any {
			w := instance.(*widget)
			return map[string]any{"name": w.Name, "color": w.Color, "size": w.Size}
		},
		Clean: func(_ context.Context, _ forms.Record, cleaned map[string]any, errs *forms.Errors) {
			switch cleaned["name"] {
			case "forbidden":
				errs.AddNonField("Widgets cannot be called that.")
			case "crowded":
				errs.Add("zeta", "zeta is unavailable.")
				errs.Add("alpha", "alpha is unavailable.")
				errs.AddNonField("The workshop is full.")
			}
		},
		Save: store.save,
	})
	require.NoError(t, err)
	return form
}

func widgetCreateConfig(form forms.Definition) Config {
	return Config{
		Name:       "widgetCreate",
		Form:       form,
		RecordType: widgetType,
	}
}

func widgetUpdateConfig(form forms.Definition, store *widgetStore) Config {
	return Config{
		Name:       "widgetUpdate",
		Form:       form,
		RecordType: widgetType,
		Kind:       KindUpdate,
		Resolver:   store,
	}
}

// emptyForm declares no fields and saves nothing.
type emptyForm struct{}

func (emptyForm) Name() string { return "EmptyForm" }
func (emptyForm) Model() string { return "Widget" }
func (emptyForm) Fields() []forms.Field { return nil }
func (emptyForm) Bind(forms.Record, map[string]any) forms.Bound { return emptyBound{} }

type emptyBound struct{}

func (emptyBound) Validate(context.Context) forms.Errors { return forms.Errors{} }
func (emptyBound) Save(context.Context) (forms.Record, error) {
	return nil, errors.New("empty form does not save")
}

func fieldNames(errs []FieldError) []*string {
	out := make([]*string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func strPtr(s string) *string { return &s }
