package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/pkg/enums"
)

// OutboxEvent represents an append-only event emitted via the outbox pattern.
// Events are published in (occurred_at, insertion) order so indexers observe
// the same ordering the registries produced (approval-clear before transfer).
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OccurredAt    time.Time                 `gorm:"column:occurred_at;not null"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   string                    `gorm:"column:aggregate_id;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}
