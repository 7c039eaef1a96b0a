package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/netvend-ledger/internal/domain/topup"
	"github.com/netvend-ledger/internal/platform/persistence"
)

// TopUpRepository implements the topup.Repository interface for PostgreSQL
type TopUpRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTopUpRepository creates a new PostgreSQL top-up request repository
func NewTopUpRepository(logger *slog.Logger, db *persistence.PostgresDB) topup.Repository {
	return &TopUpRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *TopUpRepository) WithTx(tx pgx.Tx) topup.Repository {
	return &TopUpRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new pending top-up request
func (r *TopUpRepository) Create(ctx context.Context, req *topup.Request) error {
	query := `
		INSERT INTO topup_requests (id, user_id, amount, payment_method, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		req.ID,
		req.UserID,
		req.Amount,
		req.PaymentMethod,
		req.Status,
		req.RequestedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create top-up request", "request_id", req.ID.String(), "error", err)
		return fmt.Errorf("failed to create top-up request: %w", err)
	}

	return nil
}

// GetByID retrieves a top-up request by its ID
func (r *TopUpRepository) GetByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	query := `
		SELECT id, user_id, amount, payment_method, status, requested_at, processed_at, processed_by
		FROM topup_requests
		WHERE id = $1
	`

	var req topup.Request
	var processedBy *string
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&req.ID,
		&req.UserID,
		&req.Amount,
		&req.PaymentMethod,
		&req.Status,
		&req.RequestedAt,
		&req.ProcessedAt,
		&processedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, topup.ErrRequestNotFound{ID: id}
		}
		r.logger.Error("Failed to get top-up request", "request_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get top-up request: %w", err)
	}
	if processedBy != nil {
		req.ProcessedBy = *processedBy
	}

	return &req, nil
}

// ListByStatus retrieves a page of requests in the given state, oldest first
// so pending requests are processed in submission order
func (r *TopUpRepository) ListByStatus(ctx context.Context, status topup.Status, limit, offset int) ([]*topup.Request, error) {
	query := `
		SELECT id, user_id, amount, payment_method, status, requested_at, processed_at, processed_by
		FROM topup_requests
		WHERE status = $1
		ORDER BY requested_at
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list top-up requests", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list top-up requests: %w", err)
	}
	defer rows.Close()

	var requests []*topup.Request
	for rows.Next() {
		var req topup.Request
		var processedBy *string
		if err := rows.Scan(
			&req.ID,
			&req.UserID,
			&req.Amount,
			&req.PaymentMethod,
			&req.Status,
			&req.RequestedAt,
			&req.ProcessedAt,
			&processedBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan top-up request: %w", err)
		}
		if processedBy != nil {
			req.ProcessedBy = *processedBy
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top-up requests: %w", err)
	}

	return requests, nil
}

// MarkProcessed stamps a terminal state onto a request. The update is
// conditional on status = PENDING; when a request has already been
// processed the affected-row count is zero and the follow-up read decides
// between ErrRequestNotFound and ErrAlreadyProcessed.
func (r *TopUpRepository) MarkProcessed(ctx context.Context, id uuid.UUID, status topup.Status, adminID string, processedAt time.Time) error {
	query := `
		UPDATE topup_requests
		SET status = $1, processed_at = $2, processed_by = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query, status, processedAt, adminID, id, topup.StatusPending)
	if err != nil {
		r.logger.Error("Failed to mark top-up request processed",
			"request_id", id.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to mark top-up request processed: %w", err)
	}

	if result.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err // ErrRequestNotFound or a transient store failure
	}
	return topup.ErrAlreadyProcessed{ID: id}
}
