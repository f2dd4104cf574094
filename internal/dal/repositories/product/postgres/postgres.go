package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/product"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const foreignKeyViolation = "23503"

var productColumns = []string{
	"id",
	"name",
	"description",
	"category",
	"price::text",
	"stock",
	"expiry_date",
	"created_at",
	"updated_at",
}

var returningProduct = "RETURNING " + strings.Join(productColumns, ", ")

// ProductRepository implements the inventory ledger for PostgreSQL.
type ProductRepository struct {
	conn postgres.GenericConn
}

// NewProductRepository creates a new product repository.
func NewProductRepository(conn postgres.GenericConn) *ProductRepository {
	return &ProductRepository{
		conn: conn,
	}
}

// Insert adds a product to the catalog.
func (r *ProductRepository) Insert(ctx context.Context, p product.Product) (product.Product, error) {
	query, args, err := sq.Insert("products").
		Columns("name", "description", "category", "price", "stock", "expiry_date", "created_at", "updated_at").
		Values(p.Name, p.Description, p.Category, p.Price.String(), p.Stock, p.ExpiryDate, p.CreatedAt, p.UpdatedAt).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&p.ID); err != nil {
		return product.Product{}, fmt.Errorf("failed to insert product: %w", postgres.MapError(err))
	}

	return p, nil
}

// Query retrieves products based on filter criteria.
func (r *ProductRepository) Query(
	ctx context.Context,
	filter *product.QueryProductsModel,
) ([]product.Product, error) {
	builder := sq.Select(productColumns...).
		From("products").
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar)

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": filter.Category})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var result []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", postgres.MapError(err))
	}

	return result, nil
}

// Reserve decrements stock line by line with a conditional update. The caller
// owns the transaction: a failed line leaves earlier decrements to be rolled
// back with it.
func (r *ProductRepository) Reserve(
	ctx context.Context,
	lines []product.ReservationLine,
) ([]product.Product, error) {
	now := time.Now()
	result := make([]product.Product, 0, len(lines))

	for _, line := range lines {
		query, args, err := sq.Update("products").
			Set("stock", sq.Expr("stock - ?", line.Quantity)).
			Set("updated_at", now).
			Where(sq.Eq{"id": line.ProductID}).
			Where(sq.GtOrEq{"stock": line.Quantity}).
			Suffix(returningProduct).
			PlaceholderFormat(sq.Dollar).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build reserve query: %w", err)
		}

		p, err := scanProduct(r.conn.QueryRow(ctx, query, args...))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.reserveFailure(ctx, line)
		}
		if err != nil {
			return nil, err
		}

		result = append(result, p)
	}

	return result, nil
}

// Update applies upd in a single UPDATE, which holds the row lock for the rest
// of the caller's transaction.
func (r *ProductRepository) Update(
	ctx context.Context,
	id int64,
	upd product.Update,
	at time.Time,
) (product.Product, error) {
	builder := sq.Update("products").
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Suffix(returningProduct).
		PlaceholderFormat(sq.Dollar)

	if upd.Name != nil {
		builder = builder.Set("name", *upd.Name)
	}
	if upd.Description != nil {
		builder = builder.Set("description", *upd.Description)
	}
	if upd.Category != nil {
		builder = builder.Set("category", *upd.Category)
	}
	if upd.Price != nil {
		builder = builder.Set("price", upd.Price.String())
	}
	if upd.Stock != nil {
		builder = builder.Set("stock", *upd.Stock)
	}
	switch {
	case upd.ClearExpiry:
		builder = builder.Set("expiry_date", nil)
	case upd.ExpiryDate != nil:
		builder = builder.Set("expiry_date", *upd.ExpiryDate)
	}

	return r.updateOne(ctx, id, builder)
}

// Restock increments stock in place so concurrent reservations and restocks
// never lose each other's writes.
func (r *ProductRepository) Restock(
	ctx context.Context,
	id int64,
	quantity int64,
	at time.Time,
) (product.Product, error) {
	builder := sq.Update("products").
		Set("stock", sq.Expr("stock + ?", quantity)).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Suffix(returningProduct).
		PlaceholderFormat(sq.Dollar)

	return r.updateOne(ctx, id, builder)
}

func (r *ProductRepository) updateOne(ctx context.Context, id int64, builder sq.UpdateBuilder) (product.Product, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to build update query: %w", err)
	}

	p, err := scanProduct(r.conn.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return product.Product{}, fmt.Errorf("%w: %d", product.ErrNotFound, id)
	}
	if err != nil {
		return product.Product{}, err
	}

	return p, nil
}

// Delete removes a product. The order_items foreign key rejects the delete
// while any order still references it.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("products").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w: %d", product.ErrInUse, id)
		}

		return fmt.Errorf("failed to delete product: %w", postgres.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", product.ErrNotFound, id)
	}

	return nil
}

// reserveFailure tells a missing product apart from one without enough stock.
func (r *ProductRepository) reserveFailure(ctx context.Context, line product.ReservationLine) error {
	query, args, err := sq.Select("stock").
		From("products").
		Where(sq.Eq{"id": line.ProductID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build stock query: %w", err)
	}

	var available int64
	err = r.conn.QueryRow(ctx, query, args...).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %d", product.ErrNotFound, line.ProductID)
	}
	if err != nil {
		return fmt.Errorf("failed to query stock: %w", postgres.MapError(err))
	}

	return &product.InsufficientStockError{
		ProductID: line.ProductID,
		Requested: line.Quantity,
		Available: available,
	}
}

func scanProduct(row pgx.Row) (product.Product, error) {
	var (
		p     product.Product
		price string
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Category,
		&price,
		&p.Stock,
		&p.ExpiryDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, err
		}

		return product.Product{}, fmt.Errorf("failed to scan product: %w", postgres.MapError(err))
	}

	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return product.Product{}, fmt.Errorf("failed to parse product price: %w", err)
	}

	return p, nil
}
