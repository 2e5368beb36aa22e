package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistryState is the single-row administrative wiring for the ledger:
// the owner (admin) account, the controller (sale engine) account, the
// withdrawal destination for accumulated payment balance, and the pause gate.
type RegistryState struct {
	ID                int64     `gorm:"column:id;primaryKey"`
	Paused            bool      `gorm:"column:paused;not null;default:false"`
	OwnerAccount      uuid.UUID `gorm:"column:owner_account;type:uuid;not null"`
	ControllerAccount uuid.UUID `gorm:"column:controller_account;type:uuid"`
	WithdrawalAccount uuid.UUID `gorm:"column:withdrawal_account;type:uuid"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
