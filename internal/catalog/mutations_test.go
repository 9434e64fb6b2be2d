package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-graphql/internal/mutation"
	"storefront-graphql/internal/nodeid"
)

func catalogMutation(t *testing.T, store *Store, opts MutationOptions, name string) *mutation.Mutation {
	t.Helper()
	mutations, err := NewTypes(store).Mutations(opts)
	require.NoError(t, err)
	for _, m := range mutations {
		if m.Meta().Name == name {
			return m
		}
	}
	t.Fatalf("mutation %s not built", name)
	return nil
}

func errorPairs(errs []mutation.FieldError) [][2]string {
	out := make([][2]string, len(errs))
	for i, e := range errs {
		field := "<nil>"
		if e.Field != nil {
			field = *e.Field
		}
		out[i] = [2]string{field, e.Message}
	}
	return out
}

func TestMutations_Shapes(t *testing.T) {
	store, _ := newMockStore(t)
	mutations, err := NewTypes(store).Mutations(MutationOptions{})
	require.NoError(t, err)
	require.Len(t, mutations, 4)

	byName := map[string]*mutation.Meta{}
	for _, m := range mutations {
		byName[m.Meta().Name] = m.Meta()
	}

	create := byName["productCreate"]
	require.NotNil(t, create)
	assert.Equal(t, "product", create.ReturnFieldName)
	assert.Equal(t, []string{"category", "currency", "description", "isAvailable", "name", "price", "slug"}, create.ArgumentNames())
	assert.Equal(t, "Decimal!", create.Arguments["price"].Type.String())
	assert.Equal(t, "CurrencyEnum", create.Arguments["currency"].Type.String())
	assert.Equal(t, "ID!", create.Arguments["category"].Type.String())

	update := byName["categoryUpdate"]
	require.NotNil(t, update)
	assert.Equal(t, mutation.KindUpdate, update.Kind)
	assert.Equal(t, "ID!", update.Arguments["id"].Type.String())
	assert.Contains(t, update.Fields, "category")
	assert.Contains(t, update.Fields, "errors")
}

func TestProductCreate_Success(t *testing.T) {
	store, mock := newMockStore(t)
	expectCategory(mock, 3, "Shoes", nil)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `catalog_product`")).
		WithArgs("Boot", "boot", "", "19.99", "USD", int64(3), true).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectProductSQL)).
		WithArgs(int64(11)).
		WillReturnRows(productRows().AddRow(int64(11), "Boot", "boot", "", "19.99", "USD", int64(3), true))
	mock.ExpectCommit()

	m := catalogMutation(t, store, MutationOptions{}, "productCreate")
	result, err := m.Execute(context.Background(), mutation.Input{
		"name":     "Boot",
		"slug":     "boot",
		"price":    "19.99",
		"category": nodeid.Encode(CategoryTypeName, 3),
	})
	require.NoError(t, err)
	require.True(t, result.Success(), "%v", errorPairs(result.Errors))
	product, ok := result.Record.(*Product)
	require.True(t, ok)
	assert.Equal(t, int64(11), product.ID)
	assert.Equal(t, DefaultCurrency, product.Currency)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductCreate_ValidationErrors(t *testing.T) {
	store, mock := newMockStore(t)
	m := catalogMutation(t, store, MutationOptions{}, "productCreate")

	result, err := m.Execute(context.Background(), mutation.Input{
		"name":     "Boot",
		"slug":     "bad slug",
		"price":    "-1",
		"currency": "JPY",
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{
		{"slug", invalidSlugMessage},
		{"price", "Ensure this value is greater than or equal to 0."},
		{"currency", "Select a valid choice. JPY is not one of the available choices."},
		{"category", "This field is required."},
	}, errorPairs(result.Errors))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductCreate_BadPriceNeverWrites(t *testing.T) {
	tests := []struct {
		name    string
		price   string
		message string
	}{
		{name: "hex", price: "0x10", message: "Enter a number."},
		{name: "binary", price: "0b101", message: "Enter a number."},
		{name: "hex float", price: "0x1p4", message: "Enter a number."},
		{name: "exponent", price: "1e3", message: "Enter a number."},
		{name: "too many digits", price: "123456789012345678901234567890", message: "Ensure that there are no more than 12 digits in total."},
		{name: "too many decimal places", price: "1.2345", message: "Ensure that there are no more than 3 decimal places."},
		{name: "whole part too long", price: "1234567890.5", message: "Ensure that there are no more than 9 digits before the decimal point."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			m := catalogMutation(t, store, MutationOptions{}, "productCreate")

			result, err := m.Execute(context.Background(), mutation.Input{
				"name":     "Boot",
				"slug":     "boot",
				"price":    tt.price,
				"category": nodeid.Encode(CategoryTypeName, 3),
			})
			require.NoError(t, err)
			assert.Nil(t, result.Record)
			assert.Equal(t, [][2]string{{"price", tt.message}}, errorPairs(result.Errors))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProductCreate_ReferenceErrors(t *testing.T) {
	t.Run("wrong node type", func(t *testing.T) {
		store, mock := newMockStore(t)
		m := catalogMutation(t, store, MutationOptions{}, "productCreate")

		result, err := m.Execute(context.Background(), mutation.Input{
			"name": "Boot", "slug": "boot", "price": "1",
			"category": nodeid.Encode(ProductTypeName, 3),
		})
		require.NoError(t, err)
		assert.Equal(t, [][2]string{{"category", invalidReferenceMessage}}, errorPairs(result.Errors))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown category", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta(selectCategorySQL)).
			WithArgs(int64(404)).
			WillReturnRows(categoryRows())
		m := catalogMutation(t, store, MutationOptions{}, "productCreate")

		result, err := m.Execute(context.Background(), mutation.Input{
			"name": "Boot", "slug": "boot", "price": "1",
			"category": nodeid.Encode(CategoryTypeName, 404),
		})
		require.NoError(t, err)
		assert.Equal(t, [][2]string{{"category", invalidReferenceMessage}}, errorPairs(result.Errors))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductCreate_DuplicateSlug(t *testing.T) {
	store, mock := newMockStore(t)
	expectCategory(mock, 3, "Shoes", nil)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `catalog_product`")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'boot' for key 'slug'"})
	mock.ExpectRollback()

	m := catalogMutation(t, store, MutationOptions{}, "productCreate")
	result, err := m.Execute(context.Background(), mutation.Input{
		"name": "Boot", "slug": "boot", "price": "5",
		"category": nodeid.Encode(CategoryTypeName, 3),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Record)
	assert.Equal(t, [][2]string{{"slug", "Product with this Slug already exists."}}, errorPairs(result.Errors))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductUpdate_KeepsOmittedValues(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectProductSQL)).
		WithArgs(int64(5)).
		WillReturnRows(productRows().AddRow(int64(5), "Boot", "boot", "Leather", "19.99", "EUR", int64(3), false))
	expectCategory(mock, 3, "Shoes", nil)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `catalog_product`")).
		WithArgs("Boot", "boot", "Leather", "24.00", "EUR", int64(3), false, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectProductSQL)).
		WithArgs(int64(5)).
		WillReturnRows(productRows().AddRow(int64(5), "Boot", "boot", "Leather", "24.00", "EUR", int64(3), false))
	mock.ExpectCommit()

	m := catalogMutation(t, store, MutationOptions{}, "productUpdate")
	result, err := m.Execute(context.Background(), mutation.Input{
		"id":    nodeid.Encode(ProductTypeName, 5),
		"price": "24.00",
	})
	require.NoError(t, err)
	require.True(t, result.Success(), "%v", errorPairs(result.Errors))
	assert.Equal(t, "24.00", result.Record.(*Product).Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryUpdate_UnresolvableID(t *testing.T) {
	store, mock := newMockStore(t)
	m := catalogMutation(t, store, MutationOptions{}, "categoryUpdate")

	productID := nodeid.Encode(ProductTypeName, 1)
	result, err := m.Execute(context.Background(), mutation.Input{"id": productID, "name": "X", "slug": "x"})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"id", "Couldn't resolve to a node: " + productID}}, errorPairs(result.Errors))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryUpdate_ParentRules(t *testing.T) {
	t.Run("own parent", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectCategory(mock, 1, "apparel", nil)
		m := catalogMutation(t, store, MutationOptions{}, "categoryUpdate")

		result, err := m.Execute(context.Background(), mutation.Input{
			"id":     nodeid.Encode(CategoryTypeName, 1),
			"parent": nodeid.Encode(CategoryTypeName, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, [][2]string{{"parent", ownParentMessage}}, errorPairs(result.Errors))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("descendant parent", func(t *testing.T) {
		store, mock := newMockStore(t)
		expectCategory(mock, 1, "apparel", nil)
		expectCategory(mock, 3, "boots", int64(2))
		expectCategory(mock, 2, "shoes", int64(1))
		expectCategory(mock, 1, "apparel", nil)
		m := catalogMutation(t, store, MutationOptions{}, "categoryUpdate")

		result, err := m.Execute(context.Background(), mutation.Input{
			"id":     nodeid.Encode(CategoryTypeName, 1),
			"parent": nodeid.Encode(CategoryTypeName, 3),
		})
		require.NoError(t, err)
		assert.Equal(t, [][2]string{{"parent", descendantParentMessage}}, errorPairs(result.Errors))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMutations_Authorize(t *testing.T) {
	store, mock := newMockStore(t)
	denied := errors.New("You do not have permission to perform this action.")
	m := catalogMutation(t, store, MutationOptions{
		Authorize: func(context.Context) error { return denied },
	}, "categoryCreate")

	result, err := m.Execute(context.Background(), mutation.Input{"name": "Shoes", "slug": "shoes"})
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"<nil>", denied.Error()}}, errorPairs(result.Errors))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryCreate_StoreFault(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("pool exhausted"))
	m := catalogMutation(t, store, MutationOptions{}, "categoryCreate")

	_, err := m.Execute(context.Background(), mutation.Input{"name": "Shoes", "slug": "shoes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool exhausted")
}
