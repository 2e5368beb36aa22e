package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/pkg/enums"
)

// Account is a known actor on the ledger. Service accounts may register a
// receiver endpoint; safe transfers probe it and abort unless the endpoint
// acknowledges receipt.
type Account struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Kind        enums.AccountKind `gorm:"column:kind;not null;default:'user'"`
	ReceiverURL *string           `gorm:"column:receiver_url"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
