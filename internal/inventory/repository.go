package inventory

import (
	"context"
	"errors"

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

func (r *Repository) Create(tx *gorm.DB, product *models.Product) error {
	return tx.Create(product).Error
}

// FindByID returns nil when the product does not exist.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := r.DB(ctx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDTx reads a product inside an open transaction, taking a row lock
// so concurrent sales serialize on the same product. Mutations re-read
// through this before applying stock math.
func (r *Repository) FindByIDTx(tx *gorm.DB, id int64) (*models.Product, error) {
	var product models.Product
	err := repo.LockForUpdate(tx).Where("id = ?", id).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *Repository) SaveTx(tx *gorm.DB, product *models.Product) error {
	return tx.Save(product).Error
}

// ListIDs returns every catalog id in creation order. Product ids are
// caller-assigned, so id order and creation order can differ.
func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.DB(ctx).
		Model(&models.Product{}).
		Order("created_at ASC, id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListIDsAfter returns up to limit catalog ids greater than afterID, in
// ascending id order. Cursor pages follow id order, not creation order; the
// cursor encodes the last id of the previous page.
func (r *Repository) ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	var ids []int64
	err := r.DB(ctx).
		Model(&models.Product{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// TotalSold sums units sold across the whole catalog.
func (r *Repository) TotalSold(ctx context.Context) (int64, error) {
	var total int64
	err := r.DB(ctx).
		Model(&models.Product{}).
		Select("COALESCE(SUM(sold), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
