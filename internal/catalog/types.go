package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/nodeid"
	"storefront-graphql/internal/scalars"
)

// Types holds the catalog's GraphQL object types, built once per schema.
type Types struct {
	store *Store

	Category           *graphql.Object
	Product            *graphql.Object
	Money              *graphql.Object
	PageInfo           *graphql.Object
	CategoryConnection *graphql.Object
	ProductConnection  *graphql.Object
}

// NewTypes builds the catalog object types over store. Category and Product
// reference each other, so their fields are thunks.
func NewTypes(store *Store) *Types {
	t := &Types{store: store}
	t.Money = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Money",
		Description: "An amount of money in one currency.",
		Fields: graphql.Fields{
			"amount":   &graphql.Field{Type: graphql.NewNonNull(scalars.Decimal())},
			"currency": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		},
	})
	t.PageInfo = newPageInfoType()
	t.Category = graphql.NewObject(graphql.ObjectConfig{
		Name:        CategoryTypeName,
		Description: "A node of the product category tree.",
		Fields:      graphql.FieldsThunk(t.categoryFields),
	})
	t.Product = graphql.NewObject(graphql.ObjectConfig{
		Name:        ProductTypeName,
		Description: "A sellable product.",
		Fields:      graphql.FieldsThunk(t.productFields),
	})
	t.CategoryConnection = newConnectionType(t.Category, t.PageInfo)
	t.ProductConnection = newConnectionType(t.Product, t.PageInfo)
	return t
}

func (t *Types) categoryFields() graphql.Fields {
	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.NewNonNull(graphql.ID),
			Resolve: categoryResolver(func(_ context.Context, c *Category) (interface{}, error) {
				return nodeid.Encode(CategoryTypeName, c.ID), nil
			}),
		},
		"name": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: categoryResolver(func(_ context.Context, c *Category) (interface{}, error) {
				return c.Name, nil
			}),
		},
		"slug": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: categoryResolver(func(_ context.Context, c *Category) (interface{}, error) {
				return c.Slug, nil
			}),
		},
		"description": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: categoryResolver(func(_ context.Context, c *Category) (interface{}, error) {
				return c.Description, nil
			}),
		},
		"parent": &graphql.Field{
			Type: t.Category,
			Resolve: categoryResolver(func(ctx context.Context, c *Category) (interface{}, error) {
				if c.ParentID == nil {
					return nil, nil
				}
				return t.lookupCategory(ctx, *c.ParentID)
			}),
		},
		"ancestors": &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.Category))),
			Description: "Parents of the category, starting at the root.",
			Resolve: categoryResolver(func(ctx context.Context, c *Category) (interface{}, error) {
				return t.store.CategoryAncestors(ctx, c)
			}),
		},
		"children": &graphql.Field{
			Type: graphql.NewNonNull(t.CategoryConnection),
			Args: connectionArgs(nil),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				c, ok := p.Source.(*Category)
				if !ok {
					return nil, nil
				}
				return t.categoryConnection(p.Context, p.Args, "children", CategoryFilter{ParentID: &c.ID})
			},
		},
		"products": &graphql.Field{
			Type: graphql.NewNonNull(t.ProductConnection),
			Args: connectionArgs(productListArgs()),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				c, ok := p.Source.(*Category)
				if !ok {
					return nil, nil
				}
				filter, err := productFilterFromArgs(p.Args)
				if err != nil {
					return nil, err
				}
				filter.CategoryID = &c.ID
				return t.productConnection(p.Context, p.Args, "products", filter)
			},
		},
	}
}

func (t *Types) productFields() graphql.Fields {
	return graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.NewNonNull(graphql.ID),
			Resolve: productResolver(func(_ context.Context, p *Product) (interface{}, error) {
				return nodeid.Encode(ProductTypeName, p.ID), nil
			}),
		},
		"name": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: productResolver(func(_ context.Context, p *Product) (interface{}, error) {
				return p.Name, nil
			}),
		},
		"slug": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: productResolver(func(_ context.Context, p *Product) (interface{}, error) {
				return p.Slug, nil
			}),
		},
		"description": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: productResolver(func(_ context.Context, p *Product) (interface{}, error) {
				return p.Description, nil
			}),
		},
		"price": &graphql.Field{
			Type: graphql.NewNonNull(t.Money),
			Resolve: productResolver(func(_ context.Context, p *Product) (interface{}, error) {
				return map[string]interface{}{"amount": p.Price, "currency": p.Currency}, nil
			}),
		},
		"isAvailable": &graphql.Field{
			Type: graphql.NewNonNull(graphql.Boolean),
			Resolve: productResolver(func(_ context.Context, p *Product) (interface{}, error) {
				return p.Available, nil
			}),
		},
		"category": &graphql.Field{
			Type: t.Category,
			Resolve: productResolver(func(ctx context.Context, p *Product) (interface{}, error) {
				return t.lookupCategory(ctx, p.CategoryID)
			}),
		},
	}
}

func categoryResolver(fn func(context.Context, *Category) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		c, ok := p.Source.(*Category)
		if !ok || c == nil {
			return nil, nil
		}
		return fn(p.Context, c)
	}
}

func productResolver(fn func(context.Context, *Product) (interface{}, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		product, ok := p.Source.(*Product)
		if !ok || product == nil {
			return nil, nil
		}
		return fn(p.Context, product)
	}
}

// lookupCategory resolves a reference, mapping a dangling key to null.
func (t *Types) lookupCategory(ctx context.Context, id int64) (interface{}, error) {
	c, err := t.store.GetCategory(ctx, id)
	if errors.Is(err, forms.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (t *Types) categoryConnection(ctx context.Context, args map[string]interface{}, name string, filter CategoryFilter) (*connectionResult, error) {
	const sortKey = SortByName
	p, err := pageFromArgs(args, name, CategoryTypeName, sortKey)
	if err != nil {
		return nil, err
	}
	filter.Limit = p.limit + 1
	filter.Offset = p.offset
	categories, err := t.store.ListCategories(ctx, filter)
	if err != nil {
		return nil, err
	}
	nodes := make([]interface{}, len(categories))
	for i, c := range categories {
		nodes[i] = c
	}
	return newConnectionResult(ctx, nodes, p, CategoryTypeName, sortKey, func(ctx context.Context) (int, error) {
		return t.store.CountCategories(ctx, filter)
	}), nil
}

func (t *Types) productConnection(ctx context.Context, args map[string]interface{}, name string, filter ProductFilter) (*connectionResult, error) {
	sortKey := filter.SortBy
	if sortKey == "" {
		sortKey = SortByName
	}
	p, err := pageFromArgs(args, name, ProductTypeName, sortKey)
	if err != nil {
		return nil, err
	}
	filter.Limit = p.limit + 1
	filter.Offset = p.offset
	products, err := t.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	nodes := make([]interface{}, len(products))
	for i, product := range products {
		nodes[i] = product
	}
	return newConnectionResult(ctx, nodes, p, ProductTypeName, sortKey, func(ctx context.Context) (int, error) {
		return t.store.CountProducts(ctx, filter)
	}), nil
}

func productListArgs() graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"sortBy": &graphql.ArgumentConfig{
			Type:        graphql.String,
			Description: "Sort order: name, -name, price or -price.",
		},
		"price_Gte": &graphql.ArgumentConfig{Type: scalars.Decimal()},
		"price_Lte": &graphql.ArgumentConfig{Type: scalars.Decimal()},
		"query": &graphql.ArgumentConfig{
			Type:        graphql.String,
			Description: "Matches products whose name or description contains the text.",
		},
		"isAvailable": &graphql.ArgumentConfig{Type: graphql.Boolean},
	}
}

func productFilterFromArgs(args map[string]interface{}) (ProductFilter, error) {
	var filter ProductFilter
	if sortBy, ok := args["sortBy"].(string); ok {
		if _, err := productOrderBy(sortBy); err != nil {
			return ProductFilter{}, err
		}
		filter.SortBy = sortBy
	}
	filter.PriceGte, _ = args["price_Gte"].(string)
	filter.PriceLte, _ = args["price_Lte"].(string)
	filter.Query, _ = args["query"].(string)
	if available, ok := args["isAvailable"].(bool); ok {
		filter.Available = &available
	}
	if raw, ok := args["categoryId"].(string); ok && raw != "" {
		id, err := nodeid.DecodeInt(CategoryTypeName, raw)
		if err != nil {
			return ProductFilter{}, fmt.Errorf("categoryId: %w", err)
		}
		filter.CategoryID = &id
	}
	return filter, nil
}
