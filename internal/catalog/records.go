// Package catalog holds the storefront's categories and products: their SQL
// store, the forms that create and update them and their GraphQL surface.
package catalog

import (
	"errors"
)

const (
	categoryTable = "catalog_category"
	productTable  = "catalog_product"

	// CategoryTypeName and ProductTypeName are the GraphQL type names, also
	// used as node ID prefixes.
	CategoryTypeName = "Category"
	ProductTypeName  = "Product"
)

var (
	// ErrDuplicate reports a unique constraint violation (MySQL 1062).
	ErrDuplicate = errors.New("duplicate entry")
	// ErrMissingReference reports a foreign key pointing at no row (MySQL 1452).
	ErrMissingReference = errors.New("referenced row does not exist")
)

// Category groups products. Categories form a tree through ParentID.
type Category struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	ParentID    *int64
}

// Product is a sellable item. Price is an exact decimal string.
type Product struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	Price       string
	Currency    string
	CategoryID  int64
	Available   bool
}

var categoryColumns = []string{"id", "name", "slug", "description", "parent_id"}

var productColumns = []string{"id", "name", "slug", "description", "price", "currency", "category_id", "is_available"}
