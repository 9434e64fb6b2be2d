package catalog

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/graphql-go/graphql"
	"github.com/jinzhu/inflection"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/nodeid"
)

// QueryFields returns the catalog's root query fields: a single-node lookup
// and a list connection for both categories and products.
func (t *Types) QueryFields() graphql.Fields {
	categoryName := lowerFirst(CategoryTypeName)
	productName := lowerFirst(ProductTypeName)
	categoriesName := inflection.Plural(categoryName)
	productsName := inflection.Plural(productName)

	return graphql.Fields{
		categoryName: &graphql.Field{
			Type:        t.Category,
			Description: "Look up a category by ID.",
			Args:        idArgs(),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id, err := decodeIDArg(p.Args, CategoryTypeName)
				if err != nil {
					return nil, err
				}
				return t.lookupCategory(p.Context, id)
			},
		},
		categoriesName: &graphql.Field{
			Type:        graphql.NewNonNull(t.CategoryConnection),
			Description: "List categories, optionally narrowed to the children of one parent or to the roots of the tree.",
			Args: connectionArgs(graphql.FieldConfigArgument{
				"parent": &graphql.ArgumentConfig{
					Type:        graphql.ID,
					Description: "List the children of this category.",
				},
				"level": &graphql.ArgumentConfig{
					Type:        graphql.Int,
					Description: "Set to 0 to list root categories only.",
				},
			}),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				var filter CategoryFilter
				if raw, ok := p.Args["parent"].(string); ok && raw != "" {
					id, err := nodeid.DecodeInt(CategoryTypeName, raw)
					if err != nil {
						return nil, fmt.Errorf("parent: %w", err)
					}
					filter.ParentID = &id
				} else if level, ok := p.Args["level"].(int); ok && level == 0 {
					filter.RootsOnly = true
				}
				return t.categoryConnection(p.Context, p.Args, categoriesName, filter)
			},
		},
		productName: &graphql.Field{
			Type:        t.Product,
			Description: "Look up a product by ID.",
			Args:        idArgs(),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				id, err := decodeIDArg(p.Args, ProductTypeName)
				if err != nil {
					return nil, err
				}
				product, err := t.store.GetProduct(p.Context, id)
				if errors.Is(err, forms.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return product, nil
			},
		},
		productsName: &graphql.Field{
			Type:        graphql.NewNonNull(t.ProductConnection),
			Description: "List products.",
			Args: connectionArgs(func() graphql.FieldConfigArgument {
				args := productListArgs()
				args["categoryId"] = &graphql.ArgumentConfig{
					Type:        graphql.ID,
					Description: "Only list products of this category.",
				}
				return args
			}()),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				filter, err := productFilterFromArgs(p.Args)
				if err != nil {
					return nil, err
				}
				return t.productConnection(p.Context, p.Args, productsName, filter)
			},
		},
	}
}

func idArgs() graphql.FieldConfigArgument {
	return graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
	}
}

func decodeIDArg(args map[string]interface{}, typeName string) (int64, error) {
	raw, _ := args["id"].(string)
	id, err := nodeid.DecodeInt(typeName, raw)
	if err != nil {
		return 0, fmt.Errorf("id: %w", err)
	}
	return id, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
