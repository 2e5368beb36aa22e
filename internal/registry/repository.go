package registry

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/internal/repo"
	"github.com/tokenforge/licensecore/pkg/db/models"
)

// stateRowID is the only row the registry_state table ever holds.
const stateRowID = 1

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// Get returns the administrative wiring, or nil when the row has not been
// seeded yet.
func (r *Repository) Get(ctx context.Context) (*models.RegistryState, error) {
	var state models.RegistryState
	err := r.DB(ctx).Where("id = ?", stateRowID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetTx reads the state row inside an open transaction.
func (r *Repository) GetTx(tx *gorm.DB) (*models.RegistryState, error) {
	var state models.RegistryState
	err := tx.Where("id = ?", stateRowID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *Repository) Insert(ctx context.Context, state *models.RegistryState) error {
	state.ID = stateRowID
	return r.DB(ctx).Create(state).Error
}

func (r *Repository) UpdateTx(tx *gorm.DB, state *models.RegistryState) error {
	state.ID = stateRowID
	return tx.Save(state).Error
}
