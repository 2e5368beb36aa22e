package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/api/responses"
	"github.com/tokenforge/licensecore/api/validators"
	"github.com/tokenforge/licensecore/internal/inventory"
	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/pagination"
)

// CatalogService is the slice of the inventory service the product
// controllers need.
type CatalogService interface {
	CreateProduct(ctx context.Context, actor uuid.UUID, input inventory.CreateProductInput) (*models.Product, error)
	IncrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error)
	DecrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error)
	ClearInventory(ctx context.Context, actor uuid.UUID, id int64) (*models.Product, error)
	SetPrice(ctx context.Context, actor uuid.UUID, id, price int64) (*models.Product, error)
	SetRenewable(ctx context.Context, actor uuid.UUID, id int64, renewable bool) (*models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProductIDs(ctx context.Context) ([]int64, error)
	ListProductPage(ctx context.Context, params pagination.Params) ([]int64, string, error)
	QuoteCost(ctx context.Context, id, cycles int64) (int64, error)
	TotalSold(ctx context.Context) (int64, error)
}

// ListProducts returns catalog ids. Without query parameters it returns the
// full listing; with limit or cursor it returns one page plus a next cursor.
func ListProducts(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("limit") == "" && query.Get("cursor") == "" {
			ids, err := svc.ListProductIDs(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, map[string]any{"productIds": ids})
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ids, next, err := svc.ListProductPage(r.Context(), pagination.Params{
			Limit:  int(limit),
			Cursor: query.Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"productIds": ids, "nextCursor": next})
	}
}

// GetProduct returns one catalog entry.
func GetProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathInt64(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}

// GetProductCost quotes the cost of purchasing or renewing the given number
// of cycles at the product's current price.
func GetProductCost(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathInt64(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cycles, err := validators.ParseQueryInt(r, "cycles", 1, 1, 1<<31)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cost, err := svc.QuoteCost(r.Context(), id, cycles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"productId": id,
			"cycles":    cycles,
			"cost":      cost,
		})
	}
}

type createProductRequest struct {
	ID              int64 `json:"id" validate:"required,min=1"`
	Price           int64 `json:"price" validate:"min=0"`
	Available       int64 `json:"available" validate:"min=0"`
	Supply          int64 `json:"supply" validate:"min=0"`
	IntervalSeconds int64 `json:"intervalSeconds" validate:"min=0"`
	Renewable       bool  `json:"renewable"`
}

// CreateProduct registers a new catalog entry.
func CreateProduct(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), actor, inventory.CreateProductInput{
			ID:        payload.ID,
			Price:     payload.Price,
			Available: payload.Available,
			Supply:    payload.Supply,
			Interval:  payload.IntervalSeconds,
			Renewable: payload.Renewable,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toProductResponse(product))
	}
}

type adjustInventoryRequest struct {
	Amount int64 `json:"amount" validate:"required,min=1"`
}

// IncrementInventory adds stock to a product.
func IncrementInventory(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return adjustInventoryHandler(svc.IncrementInventory, logg)
}

// DecrementInventory removes stock from a product.
func DecrementInventory(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return adjustInventoryHandler(svc.DecrementInventory, logg)
}

func adjustInventoryHandler(
	adjust func(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := adjust(r.Context(), actor, id, payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}

// ClearInventory takes a product off sale.
func ClearInventory(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.ClearInventory(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}

type setPriceRequest struct {
	Price int64 `json:"price" validate:"min=0"`
}

// SetPrice reprices a product.
func SetPrice(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.SetPrice(r.Context(), actor, id, payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}

type setRenewableRequest struct {
	Renewable *bool `json:"renewable" validate:"required"`
}

// SetRenewable toggles subscription renewals for a product.
func SetRenewable(svc CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathInt64(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setRenewableRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Renewable == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "renewable is required"))
			return
		}
		product, err := svc.SetRenewable(r.Context(), actor, id, *payload.Renewable)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProductResponse(product))
	}
}
