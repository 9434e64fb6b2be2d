package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"storefront-graphql/internal/dbexec"
	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/sqlutil"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrNoReferencedRow = 1452

	maxCategoryDepth = 32
)

// Sort orders accepted by ListProducts. A leading "-" sorts descending.
const (
	SortByName      = "name"
	SortByNameDesc  = "-name"
	SortByPrice     = "price"
	SortByPriceDesc = "-price"
)

// CategoryFilter narrows ListCategories and CountCategories.
type CategoryFilter struct {
	// ParentID lists children of one category. RootsOnly lists top-level categories.
	ParentID  *int64
	RootsOnly bool
	Limit     int
	Offset    int
}

// ProductFilter narrows ListProducts and CountProducts.
type ProductFilter struct {
	CategoryID *int64
	PriceGte   string
	PriceLte   string
	Query      string
	Available  *bool
	SortBy     string
	Limit      int
	Offset     int
}

// Store reads and writes catalog rows.
type Store struct {
	db dbexec.Beginner
}

// NewStore creates a catalog store over db.
func NewStore(db dbexec.Beginner) *Store {
	return &Store{db: db}
}

func selectCategories() sq.SelectBuilder {
	return sq.Select(sqlutil.QuoteIdentifiers(categoryColumns...)...).
		From(sqlutil.QuoteIdentifier(categoryTable)).
		PlaceholderFormat(sq.Question)
}

func selectProducts() sq.SelectBuilder {
	return sq.Select(sqlutil.QuoteIdentifiers(productColumns...)...).
		From(sqlutil.QuoteIdentifier(productTable)).
		PlaceholderFormat(sq.Question)
}

// GetCategory returns forms.ErrNotFound when no category has id.
func (s *Store) GetCategory(ctx context.Context, id int64) (*Category, error) {
	return getCategory(ctx, s.db, id)
}

func getCategory(ctx context.Context, exec dbexec.QueryExecutor, id int64) (*Category, error) {
	query, args, err := selectCategories().
		Where(sq.Eq{sqlutil.QuoteIdentifier("id"): id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	categories, err := queryCategories(ctx, exec, query, args)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("category %d: %w", id, forms.ErrNotFound)
	}
	return categories[0], nil
}

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(ctx context.Context, filter CategoryFilter) ([]*Category, error) {
	builder := applyCategoryFilter(selectCategories(), filter).
		OrderBy(sqlutil.QuoteIdentifier("name")+" ASC", sqlutil.QuoteIdentifier("id")+" ASC")
	builder = applyPage(builder, filter.Limit, filter.Offset)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return queryCategories(ctx, s.db, query, args)
}

// CountCategories counts the categories matching filter, ignoring paging.
func (s *Store) CountCategories(ctx context.Context, filter CategoryFilter) (int, error) {
	builder := applyCategoryFilter(
		sq.Select("COUNT(*)").From(sqlutil.QuoteIdentifier(categoryTable)).PlaceholderFormat(sq.Question),
		filter,
	)
	return s.count(ctx, builder)
}

// CategoryAncestors returns the parents of a category, root first.
func (s *Store) CategoryAncestors(ctx context.Context, category *Category) ([]*Category, error) {
	chain := []*Category{}
	seen := map[int64]bool{category.ID: true}
	parentID := category.ParentID
	for parentID != nil {
		if seen[*parentID] || len(chain) >= maxCategoryDepth {
			return nil, fmt.Errorf("category %d: parent chain is cyclic or too deep", category.ID)
		}
		seen[*parentID] = true
		parent, err := s.GetCategory(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, parent)
		parentID = parent.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// CreateCategory inserts c and returns the stored row.
func (s *Store) CreateCategory(ctx context.Context, c Category) (*Category, error) {
	var created *Category
	err := dbexec.WithTx(ctx, s.db, func(tx dbexec.QueryExecutor) error {
		query, args, err := sq.Insert(sqlutil.QuoteIdentifier(categoryTable)).
			Columns(sqlutil.QuoteIdentifiers("name", "slug", "description", "parent_id")...).
			Values(c.Name, c.Slug, c.Description, nullableID(c.ParentID)).
			PlaceholderFormat(sq.Question).
			ToSql()
		if err != nil {
			return err
		}
		id, err := insert(ctx, tx, query, args)
		if err != nil {
			return err
		}
		created, err = getCategory(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

// UpdateCategory overwrites every column of the category with c.ID.
func (s *Store) UpdateCategory(ctx context.Context, c Category) (*Category, error) {
	var updated *Category
	err := dbexec.WithTx(ctx, s.db, func(tx dbexec.QueryExecutor) error {
		query, args, err := sq.Update(sqlutil.QuoteIdentifier(categoryTable)).
			Set(sqlutil.QuoteIdentifier("name"), c.Name).
			Set(sqlutil.QuoteIdentifier("slug"), c.Slug).
			Set(sqlutil.QuoteIdentifier("description"), c.Description).
			Set(sqlutil.QuoteIdentifier("parent_id"), nullableID(c.ParentID)).
			Where(sq.Eq{sqlutil.QuoteIdentifier("id"): c.ID}).
			PlaceholderFormat(sq.Question).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classifyWriteError(err)
		}
		updated, err = getCategory(ctx, tx, c.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return updated, nil
}

// GetProduct returns forms.ErrNotFound when no product has id.
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, exec dbexec.QueryExecutor, id int64) (*Product, error) {
	query, args, err := selectProducts().
		Where(sq.Eq{sqlutil.QuoteIdentifier("id"): id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}
	products, err := queryProducts(ctx, exec, query, args)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("product %d: %w", id, forms.ErrNotFound)
	}
	return products[0], nil
}

// ListProducts returns products matching filter in the requested order.
func (s *Store) ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	orderBy, err := productOrderBy(filter.SortBy)
	if err != nil {
		return nil, err
	}
	builder := applyProductFilter(selectProducts(), filter).OrderBy(orderBy...)
	builder = applyPage(builder, filter.Limit, filter.Offset)
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	return queryProducts(ctx, s.db, query, args)
}

// CountProducts counts the products matching filter, ignoring paging and order.
func (s *Store) CountProducts(ctx context.Context, filter ProductFilter) (int, error) {
	builder := applyProductFilter(
		sq.Select("COUNT(*)").From(sqlutil.QuoteIdentifier(productTable)).PlaceholderFormat(sq.Question),
		filter,
	)
	return s.count(ctx, builder)
}

// CreateProduct inserts p and returns the stored row.
func (s *Store) CreateProduct(ctx context.Context, p Product) (*Product, error) {
	var created *Product
	err := dbexec.WithTx(ctx, s.db, func(tx dbexec.QueryExecutor) error {
		query, args, err := sq.Insert(sqlutil.QuoteIdentifier(productTable)).
			Columns(sqlutil.QuoteIdentifiers("name", "slug", "description", "price", "currency", "category_id", "is_available")...).
			Values(p.Name, p.Slug, p.Description, p.Price, p.Currency, p.CategoryID, p.Available).
			PlaceholderFormat(sq.Question).
			ToSql()
		if err != nil {
			return err
		}
		id, err := insert(ctx, tx, query, args)
		if err != nil {
			return err
		}
		created, err = getProduct(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// UpdateProduct overwrites every column of the product with p.ID.
func (s *Store) UpdateProduct(ctx context.Context, p Product) (*Product, error) {
	var updated *Product
	err := dbexec.WithTx(ctx, s.db, func(tx dbexec.QueryExecutor) error {
		query, args, err := sq.Update(sqlutil.QuoteIdentifier(productTable)).
			Set(sqlutil.QuoteIdentifier("name"), p.Name).
			Set(sqlutil.QuoteIdentifier("slug"), p.Slug).
			Set(sqlutil.QuoteIdentifier("description"), p.Description).
			Set(sqlutil.QuoteIdentifier("price"), p.Price).
			Set(sqlutil.QuoteIdentifier("currency"), p.Currency).
			Set(sqlutil.QuoteIdentifier("category_id"), p.CategoryID).
			Set(sqlutil.QuoteIdentifier("is_available"), p.Available).
			Where(sq.Eq{sqlutil.QuoteIdentifier("id"): p.ID}).
			PlaceholderFormat(sq.Question).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return classifyWriteError(err)
		}
		updated, err = getProduct(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update product %d: %w", p.ID, err)
	}
	return updated, nil
}

func applyCategoryFilter(builder sq.SelectBuilder, filter CategoryFilter) sq.SelectBuilder {
	parentCol := sqlutil.QuoteIdentifier("parent_id")
	switch {
	case filter.ParentID != nil:
		builder = builder.Where(sq.Eq{parentCol: *filter.ParentID})
	case filter.RootsOnly:
		builder = builder.Where(sq.Eq{parentCol: nil})
	}
	return builder
}

func applyProductFilter(builder sq.SelectBuilder, filter ProductFilter) sq.SelectBuilder {
	if filter.CategoryID != nil {
		builder = builder.Where(sq.Eq{sqlutil.QuoteIdentifier("category_id"): *filter.CategoryID})
	}
	if filter.PriceGte != "" {
		builder = builder.Where(sq.GtOrEq{sqlutil.QuoteIdentifier("price"): filter.PriceGte})
	}
	if filter.PriceLte != "" {
		builder = builder.Where(sq.LtOrEq{sqlutil.QuoteIdentifier("price"): filter.PriceLte})
	}
	if filter.Available != nil {
		builder = builder.Where(sq.Eq{sqlutil.QuoteIdentifier("is_available"): *filter.Available})
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + sqlutil.EscapeLike(q) + "%"
		builder = builder.Where(sq.Or{
			sq.Like{sqlutil.QuoteIdentifier("name"): pattern},
			sq.Like{sqlutil.QuoteIdentifier("description"): pattern},
		})
	}
	return builder
}

func applyPage(builder sq.SelectBuilder, limit, offset int) sq.SelectBuilder {
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	return builder
}

func productOrderBy(sortBy string) ([]string, error) {
	id := sqlutil.QuoteIdentifier("id")
	switch sortBy {
	case "", SortByName:
		return []string{sqlutil.QuoteIdentifier("name") + " ASC", id + " ASC"}, nil
	case SortByNameDesc:
		return []string{sqlutil.QuoteIdentifier("name") + " DESC", id + " DESC"}, nil
	case SortByPrice:
		return []string{sqlutil.QuoteIdentifier("price") + " ASC", id + " ASC"}, nil
	case SortByPriceDesc:
		return []string{sqlutil.QuoteIdentifier("price") + " DESC", id + " DESC"}, nil
	default:
		return nil, fmt.Errorf("unsupported product sort %q", sortBy)
	}
}

func (s *Store) count(ctx context.Context, builder sq.SelectBuilder) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, err
		}
	}
	return count, rows.Err()
}

func insert(ctx context.Context, tx dbexec.QueryExecutor, query string, args []interface{}) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classifyWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read insert id: %w", err)
	}
	return id, nil
}

func queryCategories(ctx context.Context, exec dbexec.QueryExecutor, query string, args []interface{}) ([]*Category, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Category
	for rows.Next() {
		var (
			c           Category
			description sql.NullString
			parentID    sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &description, &parentID); err != nil {
			return nil, err
		}
		c.Description = description.String
		if parentID.Valid {
			id := parentID.Int64
			c.ParentID = &id
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func queryProducts(ctx context.Context, exec dbexec.QueryExecutor, query string, args []interface{}) ([]*Product, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Product
	for rows.Next() {
		var (
			p           Product
			description sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &description, &p.Price, &p.Currency, &p.CategoryID, &p.Available); err != nil {
			return nil, err
		}
		p.Description = description.String
		out = append(out, &p)
	}
	return out, rows.Err()
}

func nullableID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// classifyWriteError maps constraint violations onto sentinel errors so forms
// can report them against a field. Other errors pass through unchanged.
func classifyWriteError(err error) error {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case mysqlErrDuplicateEntry:
		return fmt.Errorf("%w: %s", ErrDuplicate, mysqlErr.Message)
	case mysqlErrNoReferencedRow:
		return fmt.Errorf("%w: %s", ErrMissingReference, mysqlErr.Message)
	default:
		return err
	}
}
