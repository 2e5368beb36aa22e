package ownership

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/internal/repo"
	"github.com/tokenforge/licensecore/pkg/db/models"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// CreateTx inserts a new license row and lets the database assign the next
// token id.
func (r *Repository) CreateTx(tx *gorm.DB, license *models.License) error {
	return tx.Create(license).Error
}

// FindByToken returns nil when the token has never been minted.
func (r *Repository) FindByToken(ctx context.Context, tokenID int64) (*models.License, error) {
	var license models.License
	err := r.DB(ctx).Where("token_id = ?", tokenID).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}

// FindByTokenTx reads a license inside an open transaction, taking a row
// lock so concurrent custody mutations serialize on the same token.
func (r *Repository) FindByTokenTx(tx *gorm.DB, tokenID int64) (*models.License, error) {
	var license models.License
	err := repo.LockForUpdate(tx).Where("token_id = ?", tokenID).First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *Repository) SaveTx(tx *gorm.DB, license *models.License) error {
	return tx.Save(license).Error
}

// CountByOwner returns how many tokens the account holds.
func (r *Repository) CountByOwner(ctx context.Context, owner uuid.UUID) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.License{}).
		Where("owner = ?", owner).
		Count(&count).Error
	return count, err
}

// Count returns the number of tokens ever minted.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB(ctx).Model(&models.License{}).Count(&count).Error
	return count, err
}

// CountExpiredBefore counts time-bounded licenses whose access window closed
// before the given unix timestamp. Expired licenses stay owned; this only
// feeds operational reporting.
func (r *Repository) CountExpiredBefore(ctx context.Context, cutoff int64) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.License{}).
		Where("expires_at > 0 AND expires_at < ?", cutoff).
		Count(&count).Error
	return count, err
}

// TokenAt returns the token id at the given zero-based position in mint
// order, or nil when the index is past the end.
func (r *Repository) TokenAt(ctx context.Context, index int64) (*int64, error) {
	var ids []int64
	err := r.DB(ctx).
		Model(&models.License{}).
		Order("token_id ASC").
		Offset(int(index)).
		Limit(1).
		Pluck("token_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

// TokenOfOwnerAt returns the owner's token id at the given zero-based
// position in mint order, or nil when the index is past the end.
func (r *Repository) TokenOfOwnerAt(ctx context.Context, owner uuid.UUID, index int64) (*int64, error) {
	var ids []int64
	err := r.DB(ctx).
		Model(&models.License{}).
		Where("owner = ?", owner).
		Order("token_id ASC").
		Offset(int(index)).
		Limit(1).
		Pluck("token_id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

// TokensByOwner lists the owner's token ids in mint order.
func (r *Repository) TokensByOwner(ctx context.Context, owner uuid.UUID) ([]int64, error) {
	var ids []int64
	err := r.DB(ctx).
		Model(&models.License{}).
		Where("owner = ?", owner).
		Order("token_id ASC").
		Pluck("token_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindAccount returns nil when the account has never been registered;
// unregistered recipients are treated as plain wallets.
func (r *Repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.DB(ctx).Where("id = ?", id).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
