package models

import (
	"time"

	"github.com/google/uuid"
)

// License is a uniquely owned, non-fungible record of purchase for a Product.
// Token ids are assigned monotonically and never reused; a license row is
// never deleted. Owner is never uuid.Nil. Approved holds the single approved
// spender for the token (uuid.Nil when none).
type License struct {
	TokenID    int64     `gorm:"column:token_id;primaryKey;autoIncrement"`
	Owner      uuid.UUID `gorm:"column:owner;type:uuid;not null;index"`
	ProductID  int64     `gorm:"column:product_id;not null;index"`
	Attributes int64     `gorm:"column:attributes;not null"`
	IssuedAt   int64     `gorm:"column:issued_at;not null"`
	ExpiresAt  int64     `gorm:"column:expires_at;not null;default:0"`
	Affiliate  uuid.UUID `gorm:"column:affiliate;type:uuid"`
	Approved   uuid.UUID `gorm:"column:approved;type:uuid"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// HasExpiration reports whether the license is time-bounded.
func (l License) HasExpiration() bool {
	return l.ExpiresAt > 0
}
