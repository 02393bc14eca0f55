package billing

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent is a received billing notification, kept for idempotent
// processing and auditing.
type WebhookEvent struct {
	ID          string         `json:"id" gorm:"primaryKey;size:255"`
	Type        string         `json:"type" gorm:"size:128;index;not null"`
	Payload     datatypes.JSON `json:"payload"`
	Result      string         `json:"result,omitempty" gorm:"size:32"`
	Error       *string        `json:"error,omitempty"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// TableName returns the database table name.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Models returns the billing models for migration.
func Models() []any {
	return []any{&WebhookEvent{}}
}
