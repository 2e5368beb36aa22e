package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/api/middleware"
	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
)

type productResponse struct {
	ID              int64 `json:"id"`
	Price           int64 `json:"price"`
	Available       int64 `json:"available"`
	Supply          int64 `json:"supply"`
	Sold            int64 `json:"sold"`
	IntervalSeconds int64 `json:"intervalSeconds"`
	Renewable       bool  `json:"renewable"`
}

func toProductResponse(product *models.Product) productResponse {
	return productResponse{
		ID:              product.ID,
		Price:           product.Price,
		Available:       product.Available,
		Supply:          product.Supply,
		Sold:            product.Sold,
		IntervalSeconds: product.Interval,
		Renewable:       product.Renewable,
	}
}

type licenseResponse struct {
	TokenID    int64     `json:"tokenId"`
	Owner      uuid.UUID `json:"owner"`
	ProductID  int64     `json:"productId"`
	Attributes int64     `json:"attributes"`
	IssuedAt   int64     `json:"issuedAt"`
	ExpiresAt  int64     `json:"expiresAt"`
	Affiliate  uuid.UUID `json:"affiliate"`
	Approved   uuid.UUID `json:"approved"`
}

func toLicenseResponse(license *models.License) licenseResponse {
	return licenseResponse{
		TokenID:    license.TokenID,
		Owner:      license.Owner,
		ProductID:  license.ProductID,
		Attributes: license.Attributes,
		IssuedAt:   license.IssuedAt,
		ExpiresAt:  license.ExpiresAt,
		Affiliate:  license.Affiliate,
		Approved:   license.Approved,
	}
}

// actorFromRequest resolves the authenticated account seeded by the auth
// middleware.
func actorFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.AccountIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account context missing")
	}
	actor, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid account id")
	}
	return actor, nil
}
