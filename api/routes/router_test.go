package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/internal/inventory"
	"github.com/tokenforge/licensecore/internal/sales"
	pkgAuth "github.com/tokenforge/licensecore/pkg/auth"
	"github.com/tokenforge/licensecore/pkg/config"
	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/enums"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

type routerCatalog struct{}

func (routerCatalog) CreateProduct(ctx context.Context, actor uuid.UUID, input inventory.CreateProductInput) (*models.Product, error) {
	return &models.Product{ID: input.ID}, nil
}
func (routerCatalog) IncrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}
func (routerCatalog) DecrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}
func (routerCatalog) ClearInventory(ctx context.Context, actor uuid.UUID, id int64) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}
func (routerCatalog) SetPrice(ctx context.Context, actor uuid.UUID, id, price int64) (*models.Product, error) {
	return &models.Product{ID: id, Price: price}, nil
}
func (routerCatalog) SetRenewable(ctx context.Context, actor uuid.UUID, id int64, renewable bool) (*models.Product, error) {
	return &models.Product{ID: id, Renewable: renewable}, nil
}
func (routerCatalog) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return &models.Product{ID: id}, nil
}
func (routerCatalog) ListProductIDs(ctx context.Context) ([]int64, error) { return []int64{1}, nil }
func (routerCatalog) ListProductPage(ctx context.Context, params pagination.Params) ([]int64, string, error) {
	return []int64{1}, "", nil
}
func (routerCatalog) QuoteCost(ctx context.Context, id, cycles int64) (int64, error) {
	return 100 * cycles, nil
}
func (routerCatalog) TotalSold(ctx context.Context) (int64, error) { return 0, nil }

type routerCustody struct{}

func (routerCustody) GetLicense(ctx context.Context, tokenID int64) (*models.License, error) {
	return &models.License{TokenID: tokenID}, nil
}
func (routerCustody) OwnerOf(ctx context.Context, tokenID int64) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (routerCustody) BalanceOf(ctx context.Context, owner uuid.UUID) (int64, error) { return 0, nil }
func (routerCustody) TotalSupply(ctx context.Context) (int64, error)                { return 0, nil }
func (routerCustody) TokenByIndex(ctx context.Context, index int64) (int64, error)  { return 1, nil }
func (routerCustody) TokenOfOwnerByIndex(ctx context.Context, owner uuid.UUID, index int64) (int64, error) {
	return 1, nil
}
func (routerCustody) TokensOfOwner(ctx context.Context, owner uuid.UUID) ([]int64, error) {
	return nil, nil
}
func (routerCustody) GetApproved(ctx context.Context, tokenID int64) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (routerCustody) IsApprovedForAll(ctx context.Context, owner, operator uuid.UUID) (bool, error) {
	return false, nil
}
func (routerCustody) Approve(ctx context.Context, actor, approved uuid.UUID, tokenID int64) error {
	return nil
}
func (routerCustody) SetApprovalForAll(ctx context.Context, actor, operator uuid.UUID, approved bool) error {
	return nil
}
func (routerCustody) Transfer(ctx context.Context, actor, to uuid.UUID, tokenID int64) error {
	return nil
}
func (routerCustody) TransferFrom(ctx context.Context, actor, from, to uuid.UUID, tokenID int64) error {
	return nil
}
func (routerCustody) SafeTransferFrom(ctx context.Context, actor, from, to uuid.UUID, tokenID int64) error {
	return nil
}
func (routerCustody) TakeOwnership(ctx context.Context, actor uuid.UUID, tokenID int64) error {
	return nil
}

type routerSales struct{}

func (routerSales) Purchase(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error) {
	return &models.License{TokenID: 1, Owner: input.Recipient, ProductID: input.ProductID}, nil
}
func (routerSales) Renew(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error) {
	return &models.License{TokenID: tokenID}, nil
}
func (routerSales) PromotionalPurchase(ctx context.Context, actor uuid.UUID, input sales.PurchaseInput) (*models.License, error) {
	return &models.License{TokenID: 1}, nil
}
func (routerSales) PromotionalRenewal(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error) {
	return &models.License{TokenID: tokenID}, nil
}

type routerRegistry struct{}

func (routerRegistry) State(ctx context.Context) (*models.RegistryState, error) {
	return &models.RegistryState{OwnerAccount: uuid.New()}, nil
}
func (routerRegistry) Pause(ctx context.Context, actor uuid.UUID) error                  { return nil }
func (routerRegistry) Unpause(ctx context.Context, actor uuid.UUID) error                { return nil }
func (routerRegistry) SetController(ctx context.Context, actor, account uuid.UUID) error { return nil }
func (routerRegistry) SetWithdrawal(ctx context.Context, actor, account uuid.UUID) error { return nil }
func (routerRegistry) Withdraw(ctx context.Context, actor uuid.UUID) (int64, error)      { return 0, nil }

func routerFixture() (http.Handler, config.JWTConfig) {
	jwtCfg := config.JWTConfig{
		Secret:            "0123456789abcdef0123456789abcdef",
		Issuer:            "licensecore-test",
		ExpirationMinutes: 15,
	}
	cfg := &config.Config{JWT: jwtCfg}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := NewRouter(cfg, logg, stubPinger{}, stubPinger{}, nil, routerCatalog{}, routerCustody{}, routerSales{}, routerRegistry{})
	return handler, jwtCfg
}

func TestRouterPublicRoutes(t *testing.T) {
	handler, _ := routerFixture()

	for _, path := range []string{
		"/health/live",
		"/health/ready",
		"/metrics",
		"/api/v1/products",
		"/api/v1/products/1",
		"/api/v1/products/1/cost",
		"/api/v1/ledger/summary",
		"/api/v1/ledger/tokens/0",
		"/api/v1/licenses/1",
		"/api/v1/licenses/1/owner",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouterRequiresAuthForMutations(t *testing.T) {
	handler, _ := routerFixture()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", strings.NewReader(`{"productId":1,"cycles":1}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized && rec.Code != http.StatusForbidden {
		t.Fatalf("expected auth failure, got %d", rec.Code)
	}
}

func TestRouterAuthedPurchase(t *testing.T) {
	handler, jwtCfg := routerFixture()
	buyer := uuid.New()

	token, err := pkgAuth.MintAccessToken(jwtCfg, time.Now(), pkgAuth.AccessTokenPayload{
		AccountID: buyer,
		Kind:      enums.AccountKindUser,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purchases", strings.NewReader(`{"productId":1,"cycles":1}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", "router-test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
}
