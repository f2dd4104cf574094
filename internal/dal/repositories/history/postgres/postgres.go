package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/fulfillment/internal/dal/postgres"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/history"
	"github.com/corray333/backend-labs/fulfillment/internal/service/models/status"
)

// HistoryRepository implements the history ledger for PostgreSQL.
type HistoryRepository struct {
	conn postgres.GenericConn
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(conn postgres.GenericConn) *HistoryRepository {
	return &HistoryRepository{
		conn: conn,
	}
}

// Append inserts the entry with seq = last seq of the order + 1. Callers hold
// the order row lock (the guarded status update), so sequences cannot race.
func (r *HistoryRepository) Append(ctx context.Context, entry history.Entry) (history.Entry, error) {
	query, args, err := sq.Insert("order_history").
		Columns("order_id", "seq", "previous_status", "new_status", "created_at").
		Select(
			sq.Select().
				Column("?::bigint", entry.OrderID).
				Column("COALESCE(MAX(seq), 0) + 1").
				Column("?::text", entry.PreviousStatus.String()).
				Column("?::text", entry.NewStatus.String()).
				Column("?::timestamptz", entry.CreatedAt).
				From("order_history").
				Where(sq.Eq{"order_id": entry.OrderID}),
		).
		Suffix("RETURNING id, seq").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return history.Entry{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.Seq); err != nil {
		return history.Entry{}, fmt.Errorf("failed to append history entry: %w", postgres.MapError(err))
	}

	return entry, nil
}

// Query retrieves history entries ordered by order and sequence.
func (r *HistoryRepository) Query(
	ctx context.Context,
	filter *history.QueryHistoryModel,
) ([]history.Entry, error) {
	builder := sq.Select("id", "order_id", "seq", "previous_status", "new_status", "created_at").
		From("order_history").
		OrderBy("order_id ASC", "seq ASC").
		PlaceholderFormat(sq.Dollar)

	if len(filter.OrderIds) > 0 {
		builder = builder.Where(sq.Eq{"order_id": filter.OrderIds})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", postgres.MapError(err))
	}
	defer rows.Close()

	var result []history.Entry
	for rows.Next() {
		var (
			entry     history.Entry
			prev, cur string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Seq, &prev, &cur, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if entry.PreviousStatus, err = status.Parse(prev); err != nil {
			return nil, err
		}
		if entry.NewStatus, err = status.Parse(cur); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", postgres.MapError(err))
	}

	return result, nil
}
