package ownership

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/internal/repo"
	"github.com/tokenforge/licensecore/pkg/db/models"
)

// OperatorRepository persists blanket operator grants.
type OperatorRepository struct {
	repo.Base
}

func NewOperatorRepository(db *gorm.DB) *OperatorRepository {
	return &OperatorRepository{Base: repo.NewBase(db)}
}

// GrantTx records the owner/operator pair. Granting an existing pair again
// is a no-op.
func (r *OperatorRepository) GrantTx(tx *gorm.DB, owner, operator uuid.UUID) error {
	var existing models.OperatorApproval
	err := tx.Where("owner = ? AND operator = ?", owner, operator).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	grant := models.OperatorApproval{ID: uuid.New(), Owner: owner, Operator: operator}
	return tx.Create(&grant).Error
}

// RevokeTx removes the owner/operator pair. Revoking an absent pair is a
// no-op.
func (r *OperatorRepository) RevokeTx(tx *gorm.DB, owner, operator uuid.UUID) error {
	return tx.
		Where("owner = ? AND operator = ?", owner, operator).
		Delete(&models.OperatorApproval{}).Error
}

// IsOperator reports whether the operator holds a blanket grant from the
// owner.
func (r *OperatorRepository) IsOperator(ctx context.Context, owner, operator uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.OperatorApproval{}).
		Where("owner = ? AND operator = ?", owner, operator).
		Count(&count).Error
	return count > 0, err
}

// IsOperatorTx answers the same question inside an open transaction.
func (r *OperatorRepository) IsOperatorTx(tx *gorm.DB, owner, operator uuid.UUID) (bool, error) {
	var count int64
	err := tx.
		Model(&models.OperatorApproval{}).
		Where("owner = ? AND operator = ?", owner, operator).
		Count(&count).Error
	return count > 0, err
}
