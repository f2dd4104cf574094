package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/order"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OrderDal represents order data access layer model
type OrderDal struct {
	Id               int64
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	DeliveryAddress  string
	Status           string
	TotalPrice       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastTransitionAt time.Time
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	st, err := status.Parse(o.Status)
	if err != nil {
		return nil, err
	}
	total, err := decimal.NewFromString(o.TotalPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to parse total price: %w", err)
	}

	return &order.Order{
		ID:               o.Id,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		DeliveryAddress:  o.DeliveryAddress,
		Status:           st,
		TotalPrice:       total,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		LastTransitionAt: o.LastTransitionAt,
		OrderItems:       []orderitem.OrderItem{}, // Will be populated separately
	}, nil
}

var orderColumns = []string{
	"id",
	"customer_name",
	"customer_email",
	"customer_phone",
	"delivery_address",
	"status",
	"total_price::text",
	"created_at",
	"updated_at",
	"last_transition_at",
}

// PostgresOrderRepository implements the order store for PostgreSQL.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
}

// NewPostgresOrderRepository creates a new order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
	}
}

// Insert stores a new order and returns it with its id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	query, args, err := sq.Insert("orders").
		Columns(
			"customer_name",
			"customer_email",
			"customer_phone",
			"delivery_address",
			"status",
			"total_price",
			"created_at",
			"updated_at",
			"last_transition_at",
		).
		Values(
			o.CustomerName,
			o.CustomerEmail,
			o.CustomerPhone,
			o.DeliveryAddress,
			o.Status.String(),
			o.TotalPrice.StringFixed(2),
			o.CreatedAt,
			o.UpdatedAt,
			o.LastTransitionAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&o.ID); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", postgres.MapError(err))
	}

	return o, nil
}

// Query retrieves orders based on filter criteria
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	builder := sq.Select(orderColumns...).
		From("orders").
		PlaceholderFormat(sq.Dollar)

	if len(filter.Ids) > 0 {
		builder = builder.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = st.String()
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"status": pattern},
			sq.ILike{"customer_name": pattern},
			sq.ILike{"customer_email": pattern},
		})
	}

	if !filter.TransitionBefore.IsZero() {
		builder = builder.Where(sq.Lt{"last_transition_at": filter.TransitionBefore})
	}

	if !filter.CreatedBefore.IsZero() {
		builder = builder.Where(sq.Lt{"created_at": filter.CreatedBefore})
	}

	switch filter.OrderBy {
	case order.RecentTransitionFirst:
		builder = builder.OrderBy("last_transition_at DESC", "id DESC")
	case order.OldestTransitionFirst:
		builder = builder.OrderBy("last_transition_at ASC", "id ASC")
	default:
		builder = builder.OrderBy("created_at DESC", "id DESC")
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
		return nil, fmt.Errorf("failed to query orders: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		err := rows.Scan(
			&dal.Id,
			&dal.CustomerName,
			&dal.CustomerEmail,
			&dal.CustomerPhone,
			&dal.DeliveryAddress,
			&dal.Status,
			&dal.TotalPrice,
			&dal.CreatedAt,
			&dal.UpdatedAt,
			&dal.LastTransitionAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", postgres.MapError(err))
	}

	return result, nil
}

// UpdateStatus applies a guarded status change. The stored transition time is
// bumped by one microsecond when the clock did not move past the previous one.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to status.Status,
	at time.Time,
) (time.Time, error) {
	query, args, err := sq.Update("orders").
		Set("status", to.String()).
		Set("last_transition_at", sq.Expr("GREATEST(?::timestamptz, last_transition_at + interval '1 microsecond')", at)).
		Set("updated_at", sq.Expr("GREATEST(?::timestamptz, last_transition_at + interval '1 microsecond')", at)).
		Where(sq.Eq{"id": id, "status": from.String()}).
		Suffix("RETURNING last_transition_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to build update query: %w", err)
	}

	var applied time.Time
	err = r.conn.QueryRow(ctx, query, args...).Scan(&applied)
	if err == nil {
		return applied, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("failed to update order status: %w", postgres.MapError(err))
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if !exists {
		return time.Time{}, fmt.Errorf("%w: %d", order.ErrNotFound, id)
	}

	return time.Time{}, fmt.Errorf("%w: order %d is not %s", order.ErrStatusConflict, id, from)
}

// Delete removes an order; its items go with it by cascade.
func (r *PostgresOrderRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := sq.Delete("orders").
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", postgres.MapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", order.ErrNotFound, id)
	}

	return nil
}

func (r *PostgresOrderRepository) exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check order existence: %w", postgres.MapError(err))
	}

	return exists, nil
}
