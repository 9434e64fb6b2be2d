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

	"storefront-graphql/internal/dbexec"
	"storefront-graphql/internal/forms"
)

const (
	selectCategorySQL = "SELECT `id`, `name`, `slug`, `description`, `parent_id` FROM `catalog_category` WHERE `id` = ? LIMIT 1"
	selectProductSQL  = "SELECT `id`, `name`, `slug`, `description`, `price`, `currency`, `category_id`, `is_available` FROM `catalog_product` WHERE `id` = ? LIMIT 1"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(dbexec.NewStandardExecutor(db)), mock
}

func categoryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "slug", "description", "parent_id"})
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "slug", "description", "price", "currency", "category_id", "is_available"})
}

func expectCategory(mock sqlmock.Sqlmock, id int64, name string, parentID interface{}) {
	mock.ExpectQuery(regexp.QuoteMeta(selectCategorySQL)).
		WithArgs(id).
		WillReturnRows(categoryRows().AddRow(id, name, name, nil, parentID))
}

func TestStore_GetCategory(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectCategorySQL)).
		WithArgs(int64(3)).
		WillReturnRows(categoryRows().AddRow(int64(3), "Shoes", "shoes", "All shoes", int64(1)))

	c, err := store.GetCategory(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Shoes", c.Name)
	assert.Equal(t, "All shoes", c.Description)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, int64(1), *c.ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetCategory_NotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(selectCategorySQL)).
		WithArgs(int64(9)).
		WillReturnRows(categoryRows())

	_, err := store.GetCategory(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, forms.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateCategory(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `catalog_category`")).
		WithArgs("Shoes", "shoes", "", nil).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectCategorySQL)).
		WithArgs(int64(7)).
		WillReturnRows(categoryRows().AddRow(int64(7), "Shoes", "shoes", "", nil))
	mock.ExpectCommit()

	c, err := store.CreateCategory(context.Background(), Category{Name: "Shoes", Slug: "shoes"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	assert.Nil(t, c.ParentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateProduct(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `catalog_product` SET `name` = ?, `slug` = ?, `description` = ?, `price` = ?, `currency` = ?, `category_id` = ?, `is_available` = ? WHERE `id` = ?")).
		WithArgs("Boot", "boot", "", "12.50", "EUR", int64(3), false, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(selectProductSQL)).
		WithArgs(int64(5)).
		WillReturnRows(productRows().AddRow(int64(5), "Boot", "boot", "", "12.50", "EUR", int64(3), false))
	mock.ExpectCommit()

	p, err := store.UpdateProduct(context.Background(), Product{
		ID: 5, Name: "Boot", Slug: "boot", Price: "12.50", Currency: "EUR", CategoryID: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "12.50", p.Price)
	assert.False(t, p.Available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateProduct_ClassifiesConstraintErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "duplicate", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'boot' for key 'slug'"}, want: ErrDuplicate},
		{name: "missing reference", err: &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}, want: ErrMissingReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `catalog_product`")).WillReturnError(tt.err)
			mock.ExpectRollback()

			_, err := store.CreateProduct(context.Background(), Product{Name: "Boot", Slug: "boot", Price: "1", Currency: "USD", CategoryID: 1})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_CreateProduct_OtherErrorsPassThrough(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("connection reset")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `catalog_product`")).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := store.CreateProduct(context.Background(), Product{Name: "Boot"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, ErrDuplicate))
}

func TestStore_ListProducts_Filters(t *testing.T) {
	store, mock := newMockStore(t)
	categoryID := int64(4)
	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM `catalog_product` WHERE `category_id` = ? AND `price` >= ? AND `price` <= ? AND (`name` LIKE ? OR `description` LIKE ?) ORDER BY `price` DESC, `id` DESC LIMIT 3 OFFSET 2",
	)).
		WithArgs(int64(4), "10", "99.99", `%50\%%`, `%50\%%`).
		WillReturnRows(productRows().
			AddRow(int64(8), "Hat", "hat", "", "20.00", "USD", int64(4), true).
			AddRow(int64(2), "Cap", "cap", "", "15.00", "USD", int64(4), true))

	products, err := store.ListProducts(context.Background(), ProductFilter{
		CategoryID: &categoryID,
		PriceGte:   "10",
		PriceLte:   "99.99",
		Query:      "50%",
		SortBy:     SortByPriceDesc,
		Limit:      3,
		Offset:     2,
	})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Hat", products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListProducts_RejectsUnknownSort(t *testing.T) {
	store, _ := newMockStore(t)
	_, err := store.ListProducts(context.Background(), ProductFilter{SortBy: "rating"})
	require.Error(t, err)
}

func TestStore_ListCategories_RootsOnly(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM `catalog_category` WHERE `parent_id` IS NULL ORDER BY `name` ASC, `id` ASC LIMIT 10")).
		WillReturnRows(categoryRows().AddRow(int64(1), "Apparel", "apparel", "", nil))

	categories, err := store.ListCategories(context.Background(), CategoryFilter{RootsOnly: true, Limit: 10})
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CountProducts(t *testing.T) {
	store, mock := newMockStore(t)
	available := true
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `catalog_product` WHERE `is_available` = ?")).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(42))

	count, err := store.CountProducts(context.Background(), ProductFilter{Available: &available, Limit: 5, SortBy: SortByPrice})
	require.NoError(t, err)
	assert.Equal(t, 42, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CategoryAncestors(t *testing.T) {
	store, mock := newMockStore(t)
	expectCategory(mock, 2, "Shoes", int64(1))
	expectCategory(mock, 1, "Apparel", nil)

	leafParent := int64(2)
	ancestors, err := store.CategoryAncestors(context.Background(), &Category{ID: 3, Name: "Boots", ParentID: &leafParent})
	require.NoError(t, err)
	require.Len(t, ancestors, 2)
	assert.Equal(t, "Apparel", ancestors[0].Name)
	assert.Equal(t, "Shoes", ancestors[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CategoryAncestors_Cycle(t *testing.T) {
	store, mock := newMockStore(t)
	expectCategory(mock, 2, "B", int64(3))

	parent := int64(2)
	_, err := store.CategoryAncestors(context.Background(), &Category{ID: 3, ParentID: &parent})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}
