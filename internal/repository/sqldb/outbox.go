package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/capd-api/internal/model"
)

type outboxRepository struct {
	q sqlx.ExtContext
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending

	_, err := r.q.ExecContext(ctx, r.q.Rebind(query),
		event.ID.String(),
		event.EventType,
		string(event.Payload),
		string(event.Status),
		event.RetryCount,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEventsWithLock claims due events; other relays skip the locked rows.
// It must run inside a transaction for the locks to hold.
func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int, now time.Time) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message, retry_count, retry_at,
			created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status IN (?, ?)
			AND (retry_at IS NULL OR retry_at <= ?)
		ORDER BY created_at ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED
	`
	events := []*model.OutboxEvent{}
	err := selectAll(ctx, r.q, &events, query,
		string(model.OutboxStatusPending), string(model.OutboxStatusRetry), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	now := time.Now()
	var processedAt *time.Time
	if status == model.OutboxStatusProcessed {
		processedAt = &now
	}
	attempt := 0
	if status == model.OutboxStatusRetry || status == model.OutboxStatusFailed {
		attempt = 1
	}

	query := `
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_at = ?, processed_at = ?,
			retry_count = retry_count + ?, updated_at = ?
		WHERE id = ?
	`
	err := execOne(ctx, r.q, query, string(status), errorMessage, retryAt, processedAt, attempt, now, id.String())
	return wrap(err, "update outbox event")
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM outbox_events WHERE status = ? AND processed_at < ?`
	res, err := r.q.ExecContext(ctx, r.q.Rebind(query), string(model.OutboxStatusProcessed), before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return res.RowsAffected()
}
