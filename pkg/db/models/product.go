package models

import "time"

// Product is a catalog entry: what can be sold, at what price, and how much
// stock remains. Supply is immutable after creation; Available and Sold move
// together under the invariant sold + available <= supply.
type Product struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Price     int64     `gorm:"column:price;not null"`
	Available int64     `gorm:"column:available;not null"`
	Supply    int64     `gorm:"column:supply;not null"`
	Sold      int64     `gorm:"column:sold;not null;default:0"`
	Interval  int64     `gorm:"column:interval_seconds;not null;default:0"`
	Renewable bool      `gorm:"column:renewable;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsSubscription reports whether licenses for this product carry an
// expiration time.
func (p Product) IsSubscription() bool {
	return p.Interval > 0
}
