package models

import (
	"time"

	"github.com/google/uuid"
)

// OperatorApproval grants an operator blanket transfer rights over all of an
// owner's tokens. The pair is unique; the grant persists until revoked.
type OperatorApproval struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Owner     uuid.UUID `gorm:"column:owner;type:uuid;not null;uniqueIndex:ux_operator_approvals_owner_operator"`
	Operator  uuid.UUID `gorm:"column:operator;type:uuid;not null;uniqueIndex:ux_operator_approvals_owner_operator"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
