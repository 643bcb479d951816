package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/internal/repository"
)

// maxOutboxRetries is the number of failed deliveries before an event is
// parked as failed.
const maxOutboxRetries = 5

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

// ClaimPending moves up to limit pending or retryable events to processing
// state, together with processing events abandoned before staleBefore by a
// worker that stopped or crashed. Concurrent workers never receive the same
// event.
func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events SET status = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status IN ($3, $4)
				OR (status = $1 AND updated_at < $5)
			ORDER BY created_at ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count,
			created_at, processed_at, updated_at
	`

	var events []*model.OutboxEvent
	err := r.db.SelectContext(ctx, &events, query,
		string(model.OutboxStatusProcessing),
		time.Now().UTC(),
		string(model.OutboxStatusPending),
		string(model.OutboxStatusRetry),
		staleBefore.UTC(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim outbox events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = $2, updated_at = $2, error_message = NULL
		WHERE id = $3
	`
	return r.exec(ctx, "failed to mark event processed", query,
		string(model.OutboxStatusProcessed), time.Now().UTC(), id)
}

// MarkFailed records the delivery error. The event goes back to retry until
// it has failed maxOutboxRetries times.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE outbox_events
		SET retry_count = retry_count + 1,
			status = CASE WHEN retry_count + 1 >= $1 THEN $2 ELSE $3 END,
			error_message = $4,
			updated_at = $5
		WHERE id = $6
	`
	return r.exec(ctx, "failed to mark event failed", query,
		maxOutboxRetries,
		string(model.OutboxStatusFailed),
		string(model.OutboxStatusRetry),
		errorMessage,
		time.Now().UTC(),
		id,
	)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`

	result, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}

func (r *outboxRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return nil
}
