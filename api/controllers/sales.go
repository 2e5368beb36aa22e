package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/api/responses"
	"github.com/tokenforge/licensecore/api/validators"
	"github.com/tokenforge/licensecore/internal/sales"
	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/logger"
)

// SalesService is the slice of the sale engine the purchase controllers
// need.
type SalesService interface {
	Purchase(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error)
	Renew(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error)
	PromotionalPurchase(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error)
	PromotionalRenewal(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error)
}

type purchaseRequest struct {
	ProductID  int64      `json:"productId" validate:"required,min=1"`
	Recipient  *uuid.UUID `json:"recipient,omitempty"`
	Cycles     int64      `json:"cycles" validate:"required,min=1"`
	Attributes int64      `json:"attributes"`
	Affiliate  *uuid.UUID `json:"affiliate,omitempty"`
}

func (p purchaseRequest) toInput(actor uuid.UUID) sales.PurchaseInput {
	input := sales.PurchaseInput{
		ProductID:  p.ProductID,
		Recipient:  actor,
		Cycles:     p.Cycles,
		Attributes: p.Attributes,
	}
	if p.Recipient != nil {
		input.Recipient = *p.Recipient
	}
	if p.Affiliate != nil {
		input.Affiliate = *p.Affiliate
	}
	return input
}

// Purchase settles payment for a product and mints the license to the
// recipient, defaulting to the buyer.
func Purchase(svc SalesService, logg *logger.Logger) http.HandlerFunc {
	return purchaseHandler(func(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error) {
		return svc.Purchase(ctx, actor, input)
	}, logg)
}

// PromotionalPurchase mints without settlement. Restricted to the
// registry owner.
func PromotionalPurchase(svc SalesService, logg *logger.Logger) http.HandlerFunc {
	return purchaseHandler(func(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error) {
		return svc.PromotionalPurchase(ctx, actor, input)
	}, logg)
}

func purchaseHandler(
	buy func(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload purchaseRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		license, err := buy(r.Context(), actor, payload.toInput(actor))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toLicenseResponse(license))
	}
}

type renewRequest struct {
	Cycles int64 `json:"cycles" validate:"required,min=1"`
}

// RenewLicense settles payment and extends a subscription license.
func RenewLicense(svc SalesService, logg *logger.Logger) http.HandlerFunc {
	return renewHandler(func(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error) {
		return svc.Renew(ctx, actor, tokenID, cycles)
	}, logg)
}

func renewHandler(
	extend func(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tokenID, err := validators.ParsePathInt64(chi.URLParam(r, "tokenId"), "tokenId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload renewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		license, err := extend(r.Context(), actor, tokenID, payload.Cycles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toLicenseResponse(license))
	}
}

type promotionalRenewRequest struct {
	TokenID int64 `json:"tokenId" validate:"required,min=1"`
	Cycles  int64 `json:"cycles" validate:"required,min=1"`
}

// PromotionalRenewal extends a license without settlement. Restricted
// to the registry owner.
func PromotionalRenewal(svc SalesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload promotionalRenewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		license, err := svc.PromotionalRenewal(r.Context(), actor, payload.TokenID, payload.Cycles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toLicenseResponse(license))
	}
}
