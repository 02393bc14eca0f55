package billing

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository stores received webhook events.
type EventRepository interface {
	// Record stores the event if it is new. It reports whether an event with
	// the same id has already been processed.
	Record(ctx context.Context, event *WebhookEvent) (processed bool, err error)
	MarkProcessed(ctx context.Context, id, result string, procErr error) error
	Get(ctx context.Context, id string) (*WebhookEvent, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new webhook event repository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) Record(ctx context.Context, event *WebhookEvent) (bool, error) {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(event).Error
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}

	var stored WebhookEvent
	if err := db.Select("id", "processed_at").Where("id = ?", event.ID).First(&stored).Error; err != nil {
		return false, fmt.Errorf("load webhook event: %w", err)
	}
	return stored.ProcessedAt != nil, nil
}

func (r *eventRepository) MarkProcessed(ctx context.Context, id, result string, procErr error) error {
	updates := map[string]any{
		"result":       result,
		"processed_at": time.Now().UTC(),
		"error":        nil,
	}
	if procErr != nil {
		// Failed events stay unprocessed so a redelivery is retried.
		msg := procErr.Error()
		updates["error"] = msg
		updates["processed_at"] = nil
	}

	err := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (r *eventRepository) Get(ctx context.Context, id string) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return &event, nil
}
