package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/netvend-ledger/internal/domain/refund"
	"github.com/netvend-ledger/internal/platform/persistence"
)

// RefundMarkerRepository implements the refund.Repository interface for
// PostgreSQL. The entry_id primary key makes marker creation the mutual
// exclusion point for refunds of the same entry.
type RefundMarkerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRefundMarkerRepository creates a new PostgreSQL refund marker repository
func NewRefundMarkerRepository(logger *slog.Logger, db *persistence.PostgresDB) refund.Repository {
	return &RefundMarkerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the marker insert and
// the balance credit commit together
func (r *RefundMarkerRepository) WithTx(tx pgx.Tx) refund.Repository {
	return &RefundMarkerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a refund-in-progress marker. Fails ErrMarkerExists when a
// refund of the same entry is already in flight.
func (r *RefundMarkerRepository) Create(ctx context.Context, marker *refund.Marker) error {
	query := `
		INSERT INTO refund_markers (entry_id, refund_entry_id, user_id, amount, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		marker.EntryID,
		marker.RefundEntryID,
		marker.UserID,
		marker.Amount,
		marker.StartedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return refund.ErrMarkerExists{EntryID: marker.EntryID}
		}
		r.logger.Error("Failed to create refund marker", "entry_id", marker.EntryID, "error", err)
		return fmt.Errorf("failed to create refund marker: %w", err)
	}

	return nil
}

// Delete removes a marker once its refund sequence has completed. Deleting
// an absent marker is not an error.
func (r *RefundMarkerRepository) Delete(ctx context.Context, entryID string) error {
	query := `DELETE FROM refund_markers WHERE entry_id = $1`

	if _, err := r.querier.Exec(ctx, query, entryID); err != nil {
		r.logger.Error("Failed to delete refund marker", "entry_id", entryID, "error", err)
		return fmt.Errorf("failed to delete refund marker: %w", err)
	}

	return nil
}

// ListOlderThan retrieves markers whose refund has been in flight longer
// than age. Those are the crashed sequences the reconciler rolls forward.
func (r *RefundMarkerRepository) ListOlderThan(ctx context.Context, age time.Duration, limit int) ([]*refund.Marker, error) {
	query := `
		SELECT entry_id, refund_entry_id, user_id, amount, started_at
		FROM refund_markers
		WHERE started_at < $1
		ORDER BY started_at
		LIMIT $2
	`

	cutoff := time.Now().Add(-age)
	rows, err := r.querier.Query(ctx, query, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list stalled refund markers", "error", err)
		return nil, fmt.Errorf("failed to list stalled refund markers: %w", err)
	}
	defer rows.Close()

	var markers []*refund.Marker
	for rows.Next() {
		var m refund.Marker
		if err := rows.Scan(&m.EntryID, &m.RefundEntryID, &m.UserID, &m.Amount, &m.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan refund marker: %w", err)
		}
		markers = append(markers, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refund markers: %w", err)
	}

	return markers, nil
}
