package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productColumns = `id, title, price, category, description, image, rating_rate, rating_count`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY position`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listCategoriesSQL = `SELECT category FROM products GROUP BY category ORDER BY MIN(position)`
)

var copyColumns = []string{
	"id", "position", "title", "price", "category",
	"description", "image", "rating_rate", "rating_count",
}

var _ product.Source = (*ProductRepository)(nil)

// ProductRepository implements product.Source backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns the mirrored catalog in its original order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	if products == nil {
		products = []product.Product{}
	}
	return products, nil
}

// GetByID returns a single product. It returns product.ErrNotFound when no
// row matches.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// Categories returns distinct categories ordered by first appearance in the
// catalog.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ReplaceCatalog swaps the mirrored catalog for products in one transaction.
// Readers see either the old catalog or the new one.
func (r *ProductRepository) ReplaceCatalog(ctx context.Context, products []product.Product) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM products`); err != nil {
		return errors.Wrap(err, "clear products")
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"products"}, copyColumns,
		pgx.CopyFromSlice(len(products), func(i int) ([]any, error) {
			p := products[i]
			var (
				rate  *decimal.Decimal
				count *int32
			)
			if p.Rating != nil {
				r, c := p.Rating.Rate, int32(p.Rating.Count)
				rate, count = &r, &c
			}
			return []any{p.ID, int32(i), p.Title, p.Price, p.Category, p.Description, p.Image, rate, count}, nil
		}),
	)
	if err != nil {
		return errors.Wrap(err, "copy products")
	}
	if int(n) != len(products) {
		return errors.Errorf("copied %d of %d products", n, len(products))
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Ping checks database connectivity.
func (r *ProductRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		rate  decimal.NullDecimal
		count *int32
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Price, &p.Category, &p.Description, &p.Image, &rate, &count); err != nil {
		return product.Product{}, err
	}
	if rate.Valid {
		p.Rating = &product.Rating{Rate: rate.Decimal}
		if count != nil {
			p.Rating.Count = int(*count)
		}
	}
	return p, nil
}
