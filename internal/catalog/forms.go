package catalog

import (
	"context"
	"errors"
	"regexp"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/nodeid"
)

const (
	nameMaxLength = 128
	slugMaxLength = 128

	// DefaultCurrency is stored when a product is created without one.
	DefaultCurrency = "USD"

	invalidSlugMessage      = `Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`
	invalidReferenceMessage = "Select a valid choice. That choice is not one of the available choices."
	ownParentMessage        = "A category cannot be its own parent."
	descendantParentMessage = "A category cannot be moved under one of its descendants."
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Product prices are stored as DECIMAL(12,3).
const (
	priceMaxDigits     = 12
	priceDecimalPlaces = 3
)

// CurrencyChoices are the currencies a product can be priced in.
var CurrencyChoices = []forms.Choice{
	{Value: "USD", Label: "US Dollar"},
	{Value: "EUR", Label: "Euro"},
	{Value: "GBP", Label: "Pound Sterling"},
	{Value: "PLN", Label: "Polish Zloty"},
}

// NewCategoryForm returns the form behind categoryCreate and categoryUpdate.
func NewCategoryForm(store *Store) *forms.ModelForm {
	return forms.MustNew(forms.Spec{
		Name:  "CategoryForm",
		Model: CategoryTypeName,
		Fields: []forms.Field{
			{Name: "name", Type: forms.TypeString, Required: true, MaxLength: nameMaxLength, Help: "Category name."},
			{Name: "slug", Type: forms.TypeString, Required: true, MaxLength: slugMaxLength, Help: "URL-safe unique identifier."},
			{Name: "description", Type: forms.TypeString, Help: "Category description."},
			{Name: "parent", Kind: forms.KindReference, Type: forms.TypeID, Help: "ID of the parent category."},
		},
		Initial: func(instance forms.Record) map[string]any {
			c := instance.(*Category)
			initial := map[string]any{
				"name":        c.Name,
				"slug":        c.Slug,
				"description": c.Description,
			}
			if c.ParentID != nil {
				initial["parent"] = nodeid.Encode(CategoryTypeName, *c.ParentID)
			}
			return initial
		},
		Clean: func(ctx context.Context, instance forms.Record, cleaned map[string]any, errs *forms.Errors) {
			cleanSlug(cleaned, errs)
			parentID, ok := cleanReference(cleaned, "parent", CategoryTypeName, errs)
			if !ok || parentID == nil {
				return
			}
			if c, isCategory := instance.(*Category); isCategory && c.ID == *parentID {
				errs.Add("parent", ownParentMessage)
			}
		},
		Save: func(ctx context.Context, instance forms.Record, cleaned map[string]any) (forms.Record, error) {
			category := Category{
				Name:        stringValue(cleaned, "name"),
				Slug:        stringValue(cleaned, "slug"),
				Description: stringValue(cleaned, "description"),
			}
			if id, ok := cleaned["parent"].(int64); ok {
				category.ParentID = &id
			}

			existing, updating := instance.(*Category)
			if updating {
				category.ID = existing.ID
			}
			if category.ParentID != nil {
				if err := checkParent(ctx, store, existing, *category.ParentID); err != nil {
					return nil, err
				}
			}

			var (
				saved *Category
				err   error
			)
			if updating {
				saved, err = store.UpdateCategory(ctx, category)
			} else {
				saved, err = store.CreateCategory(ctx, category)
			}
			if err != nil {
				return nil, saveError(err, CategoryTypeName, "parent")
			}
			return saved, nil
		},
	})
}

// NewProductForm returns the form behind productCreate and productUpdate.
func NewProductForm(store *Store) *forms.ModelForm {
	return forms.MustNew(forms.Spec{
		Name:  "ProductForm",
		Model: ProductTypeName,
		Fields: []forms.Field{
			{Name: "name", Type: forms.TypeString, Required: true, MaxLength: nameMaxLength, Help: "Product name."},
			{Name: "slug", Type: forms.TypeString, Required: true, MaxLength: slugMaxLength, Help: "URL-safe unique identifier."},
			{Name: "description", Type: forms.TypeString, Help: "Product description."},
			{Name: "price", Type: forms.TypeDecimal, Required: true, Min: forms.MinValue(0), MaxDigits: priceMaxDigits, DecimalPlaces: priceDecimalPlaces, Help: "Unit price."},
			{Name: "currency", Kind: forms.KindChoice, Type: forms.TypeString, Choices: CurrencyChoices, Help: "Price currency. Defaults to USD."},
			{Name: "category", Kind: forms.KindReference, Type: forms.TypeID, Required: true, Help: "ID of the product's category."},
			{Name: "isAvailable", Type: forms.TypeBoolean, Help: "Whether the product can be purchased. Defaults to true."},
		},
		Initial: func(instance forms.Record) map[string]any {
			p := instance.(*Product)
			return map[string]any{
				"name":        p.Name,
				"slug":        p.Slug,
				"description": p.Description,
				"price":       p.Price,
				"currency":    p.Currency,
				"category":    nodeid.Encode(CategoryTypeName, p.CategoryID),
				"isAvailable": p.Available,
			}
		},
		Clean: func(ctx context.Context, instance forms.Record, cleaned map[string]any, errs *forms.Errors) {
			cleanSlug(cleaned, errs)
			cleanReference(cleaned, "category", CategoryTypeName, errs)
		},
		Save: func(ctx context.Context, instance forms.Record, cleaned map[string]any) (forms.Record, error) {
			product := Product{
				Name:        stringValue(cleaned, "name"),
				Slug:        stringValue(cleaned, "slug"),
				Description: stringValue(cleaned, "description"),
				Price:       stringValue(cleaned, "price"),
				Currency:    stringValue(cleaned, "currency"),
				Available:   true,
			}
			if product.Currency == "" {
				product.Currency = DefaultCurrency
			}
			if available, ok := cleaned["isAvailable"].(bool); ok {
				product.Available = available
			}
			categoryID, _ := cleaned["category"].(int64)
			product.CategoryID = categoryID

			if _, err := store.GetCategory(ctx, categoryID); err != nil {
				if errors.Is(err, forms.ErrNotFound) {
					return nil, forms.FieldValidationError("category", invalidReferenceMessage)
				}
				return nil, err
			}

			var (
				saved *Product
				err   error
			)
			if existing, updating := instance.(*Product); updating {
				product.ID = existing.ID
				saved, err = store.UpdateProduct(ctx, product)
			} else {
				saved, err = store.CreateProduct(ctx, product)
			}
			if err != nil {
				return nil, saveError(err, ProductTypeName, "category")
			}
			return saved, nil
		},
	})
}

func cleanSlug(cleaned map[string]any, errs *forms.Errors) {
	slug, ok := cleaned["slug"].(string)
	if !ok {
		return
	}
	if !slugPattern.MatchString(slug) {
		errs.Add("slug", invalidSlugMessage)
		delete(cleaned, "slug")
	}
}

// cleanReference replaces a node ID in cleaned with the integer key it
// encodes. It reports false when the ID does not decode.
func cleanReference(cleaned map[string]any, field, typeName string, errs *forms.Errors) (*int64, bool) {
	raw, ok := cleaned[field].(string)
	if !ok {
		return nil, true
	}
	id, err := nodeid.DecodeInt(typeName, raw)
	if err != nil {
		errs.Add(field, invalidReferenceMessage)
		delete(cleaned, field)
		return nil, false
	}
	cleaned[field] = id
	return &id, true
}

// checkParent rejects parents that do not exist and, when moving an existing
// category, parents that sit below it in the tree.
func checkParent(ctx context.Context, store *Store, category *Category, parentID int64) error {
	parent, err := store.GetCategory(ctx, parentID)
	if errors.Is(err, forms.ErrNotFound) {
		return forms.FieldValidationError("parent", invalidReferenceMessage)
	}
	if err != nil {
		return err
	}
	if category == nil {
		return nil
	}
	ancestors, err := store.CategoryAncestors(ctx, parent)
	if err != nil {
		return err
	}
	for _, ancestor := range append(ancestors, parent) {
		if ancestor.ID == category.ID {
			return forms.FieldValidationError("parent", descendantParentMessage)
		}
	}
	return nil
}

func saveError(err error, model, referenceField string) error {
	switch {
	case errors.Is(err, ErrDuplicate):
		return forms.FieldValidationError("slug", model+" with this Slug already exists.")
	case errors.Is(err, ErrMissingReference):
		return forms.FieldValidationError(referenceField, invalidReferenceMessage)
	default:
		return err
	}
}

func stringValue(cleaned map[string]any, key string) string {
	s, _ := cleaned[key].(string)
	return s
}
