package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
)

// MaxOutboxRetries is how many failed deliveries an event gets before it is
// left in FAILED for manual inspection.
const MaxOutboxRetries = 5

// outboxRow scans payload as text; drivers disagree on TEXT versus []byte.
type outboxRow struct {
	model.OutboxEvent
	RawPayload string `db:"payload"`
}

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = event.CreatedAt
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}

	query := r.q(`
		INSERT INTO outbox_events (
			id, event_type, payload, status, retry_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		string(event.Payload),
		event.Status,
		event.RetryCount,
		event.CreatedAt.UTC(),
		event.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents returns undelivered events, oldest first. FAILED events are
// retried until they reach MaxOutboxRetries.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := r.q(`
		SELECT id, event_type, payload, status, error_message, retry_count,
			created_at, updated_at, processed_at
		FROM outbox_events
		WHERE status = ? OR (status = ? AND retry_count < ?)
		ORDER BY created_at ASC
		LIMIT ?
	`)

	rows := []outboxRow{}
	err := r.db.SelectContext(ctx, &rows, query,
		model.OutboxStatusPending,
		model.OutboxStatusFailed,
		MaxOutboxRetries,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}

	events := make([]*model.OutboxEvent, 0, len(rows))
	for i := range rows {
		event := rows[i].OutboxEvent
		event.Payload = json.RawMessage(rows[i].RawPayload)
		events = append(events, &event)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	now := time.Now().UTC()

	var processedAt *time.Time
	if status == model.OutboxStatusProcessed {
		processedAt = &now
	}
	retryIncrement := 0
	if status == model.OutboxStatusFailed {
		retryIncrement = 1
	}

	query := r.q(`
		UPDATE outbox_events
		SET status = ?, error_message = ?, retry_count = retry_count + ?,
			updated_at = ?, processed_at = ?
		WHERE id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, status, errMsg, retryIncrement, now, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := r.q(`DELETE FROM outbox_events WHERE status = ? AND processed_at < ?`)
	result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return result.RowsAffected()
}
