package catalog

import (
	"context"
	"fmt"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/mutation"
	"storefront-graphql/internal/nodeid"
)

// MutationOptions configures the catalog's write mutations.
type MutationOptions struct {
	// Authorize guards every catalog mutation, e.g. to staff viewers. Nil allows all.
	Authorize func(ctx context.Context) error
	Metrics   mutation.MetricsRecorder
}

// Mutations builds categoryCreate, categoryUpdate, productCreate and productUpdate.
func (t *Types) Mutations(opts MutationOptions) ([]*mutation.Mutation, error) {
	categoryBase := &mutation.Config{
		Form:       NewCategoryForm(t.store),
		RecordType: t.Category,
		Authorize:  opts.Authorize,
		Abstract:   true,
	}
	productBase := &mutation.Config{
		Form:       NewProductForm(t.store),
		RecordType: t.Product,
		Authorize:  opts.Authorize,
		Abstract:   true,
	}

	configs := []mutation.Config{
		{
			Name:        "categoryCreate",
			Description: "Creates a new category.",
			Kind:        mutation.KindCreate,
			Extends:     categoryBase,
		},
		{
			Name:        "categoryUpdate",
			Description: "Updates a category.",
			Kind:        mutation.KindUpdate,
			Resolver:    mutation.ResolverFunc(t.resolveCategory),
			Extends:     categoryBase,
		},
		{
			Name:        "productCreate",
			Description: "Creates a new product.",
			Kind:        mutation.KindCreate,
			Extends:     productBase,
		},
		{
			Name:        "productUpdate",
			Description: "Updates an existing product.",
			Kind:        mutation.KindUpdate,
			Resolver:    mutation.ResolverFunc(t.resolveProduct),
			Extends:     productBase,
		},
	}

	var mutationOpts []mutation.Option
	if opts.Metrics != nil {
		mutationOpts = append(mutationOpts, mutation.WithMetrics(opts.Metrics))
	}

	out := make([]*mutation.Mutation, 0, len(configs))
	for _, cfg := range configs {
		m, err := mutation.New(cfg, mutationOpts...)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *Types) resolveCategory(ctx context.Context, id string) (forms.Record, error) {
	pk, err := nodeid.DecodeInt(CategoryTypeName, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", forms.ErrNotFound, err)
	}
	c, err := t.store.GetCategory(ctx, pk)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (t *Types) resolveProduct(ctx context.Context, id string) (forms.Record, error) {
	pk, err := nodeid.DecodeInt(ProductTypeName, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", forms.ErrNotFound, err)
	}
	p, err := t.store.GetProduct(ctx, pk)
	if err != nil {
		return nil, err
	}
	return p, nil
}
