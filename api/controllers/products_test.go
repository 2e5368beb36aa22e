package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/api/middleware"
	"github.com/tokenforge/licensecore/internal/inventory"
	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/pagination"
)

type stubCatalogService struct {
	product    *models.Product
	ids        []int64
	nextCursor string
	pagedWith  pagination.Params
	sold       int64
	err        error
	createdAs  inventory.CreateProductInput
	calls      int
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, actor uuid.UUID, input inventory.CreateProductInput) (*models.Product, error) {
	s.calls++
	s.createdAs = input
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) IncrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) DecrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) ClearInventory(ctx context.Context, actor uuid.UUID, id int64) (*models.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) SetPrice(ctx context.Context, actor uuid.UUID, id, price int64) (*models.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) SetRenewable(ctx context.Context, actor uuid.UUID, id int64, renewable bool) (*models.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.product, nil
}

func (s *stubCatalogService) ListProductIDs(ctx context.Context) ([]int64, error) {
	return s.ids, s.err
}

func (s *stubCatalogService) ListProductPage(ctx context.Context, params pagination.Params) ([]int64, string, error) {
	s.pagedWith = params
	return s.ids, s.nextCursor, s.err
}

func (s *stubCatalogService) QuoteCost(ctx context.Context, id, cycles int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.product.Price * cycles, nil
}

func (s *stubCatalogService) TotalSold(ctx context.Context) (int64, error) {
	return s.sold, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedContext(actor uuid.UUID) context.Context {
	return middleware.WithAccountID(context.Background(), actor.String())
}

func withURLParam(ctx context.Context, key, value string) context.Context {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
}

func sampleProduct() *models.Product {
	return &models.Product{
		ID:        7,
		Price:     500,
		Available: 3,
		Supply:    10,
		Sold:      2,
		Interval:  3600,
		Renewable: true,
	}
}

func TestGetProduct(t *testing.T) {
	logg := testLogger()

	t.Run("success", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		ctx := withURLParam(context.Background(), "productId", "7")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/7", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		GetProduct(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var envelope struct {
			Data productResponse `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data.ID != 7 || envelope.Data.Available != 3 || envelope.Data.IntervalSeconds != 3600 {
			t.Fatalf("unexpected payload: %+v", envelope.Data)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		ctx := withURLParam(context.Background(), "productId", "zero")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/zero", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		GetProduct(&stubCatalogService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		stub := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeUnknownProduct, "product not found")}
		ctx := withURLParam(context.Background(), "productId", "99")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/99", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		GetProduct(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestListProducts(t *testing.T) {
	stub := &stubCatalogService{ids: []int64{1, 2, 7}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()
	ListProducts(stub, testLogger()).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			ProductIDs []int64 `json:"productIds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.ProductIDs) != 3 || envelope.Data.ProductIDs[2] != 7 {
		t.Fatalf("unexpected ids: %v", envelope.Data.ProductIDs)
	}
}

func TestListProductsPaginated(t *testing.T) {
	logg := testLogger()

	t.Run("returns page and next cursor", func(t *testing.T) {
		stub := &stubCatalogService{ids: []int64{1, 2}, nextCursor: "next-page"}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=2&cursor=abc", nil)
		rec := httptest.NewRecorder()
		ListProducts(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if stub.pagedWith.Limit != 2 || stub.pagedWith.Cursor != "abc" {
			t.Fatalf("unexpected params: %+v", stub.pagedWith)
		}
		var envelope struct {
			Data struct {
				ProductIDs []int64 `json:"productIds"`
				NextCursor string  `json:"nextCursor"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(envelope.Data.ProductIDs) != 2 || envelope.Data.NextCursor != "next-page" {
			t.Fatalf("unexpected page: %+v", envelope.Data)
		}
	})

	t.Run("rejects out of range limit", func(t *testing.T) {
		stub := &stubCatalogService{}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=500", nil)
		rec := httptest.NewRecorder()
		ListProducts(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestGetProductCost(t *testing.T) {
	logg := testLogger()

	t.Run("quotes cycles", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/7/cost?cycles=3", nil).
			WithContext(withURLParam(context.Background(), "productId", "7"))
		rec := httptest.NewRecorder()
		GetProductCost(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var envelope struct {
			Data struct {
				Cost   int64 `json:"cost"`
				Cycles int64 `json:"cycles"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if envelope.Data.Cost != 1500 || envelope.Data.Cycles != 3 {
			t.Fatalf("unexpected quote: %+v", envelope.Data)
		}
	})

	t.Run("rejects zero cycles", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/7/cost?cycles=0", nil).
			WithContext(withURLParam(context.Background(), "productId", "7"))
		rec := httptest.NewRecorder()
		GetProductCost(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestCreateProduct(t *testing.T) {
	logg := testLogger()
	admin := uuid.New()

	t.Run("success", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		body := `{"id":7,"price":500,"available":3,"supply":10,"intervalSeconds":3600,"renewable":true}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body)).
			WithContext(authedContext(admin))
		rec := httptest.NewRecorder()
		CreateProduct(stub, logg).ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
		if stub.createdAs.ID != 7 || stub.createdAs.Interval != 3600 || !stub.createdAs.Renewable {
			t.Fatalf("unexpected input: %+v", stub.createdAs)
		}
	})

	t.Run("missing auth context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(`{"id":7}`))
		rec := httptest.NewRecorder()
		CreateProduct(&stubCatalogService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		stub := &stubCatalogService{}
		body := `{"id":7,"bogus":true}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body)).
			WithContext(authedContext(admin))
		rec := httptest.NewRecorder()
		CreateProduct(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if stub.calls != 0 {
			t.Fatalf("service must not be called on invalid input")
		}
	})

	t.Run("duplicate product", func(t *testing.T) {
		stub := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeDuplicateProduct, "product already exists")}
		body := `{"id":7,"price":500,"supply":10}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products", strings.NewReader(body)).
			WithContext(authedContext(admin))
		rec := httptest.NewRecorder()
		CreateProduct(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})
}

func TestInventoryAdjustmentHandlers(t *testing.T) {
	logg := testLogger()
	admin := uuid.New()

	run := func(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
		ctx := withURLParam(authedContext(admin), "productId", "7")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products/7/inventory/increment", strings.NewReader(body)).
			WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("increment", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		rec := run(IncrementInventory(stub, logg), `{"amount":2}`)
		if rec.Code != http.StatusOK || stub.calls != 1 {
			t.Fatalf("expected 200 with one call, got %d calls=%d", rec.Code, stub.calls)
		}
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		rec := run(DecrementInventory(stub, logg), `{"amount":0}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if stub.calls != 0 {
			t.Fatalf("service must not be called on invalid amount")
		}
	})

	t.Run("underflow surfaces 400", func(t *testing.T) {
		stub := &stubCatalogService{err: pkgerrors.New(pkgerrors.CodeUnderflow, "insufficient inventory")}
		rec := run(DecrementInventory(stub, logg), `{"amount":50}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("clear", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		ctx := withURLParam(authedContext(admin), "productId", "7")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products/7/inventory/clear", nil).
			WithContext(ctx)
		rec := httptest.NewRecorder()
		ClearInventory(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || stub.calls != 1 {
			t.Fatalf("expected 200 with one call, got %d calls=%d", rec.Code, stub.calls)
		}
	})
}

func TestSetPriceAndRenewable(t *testing.T) {
	logg := testLogger()
	admin := uuid.New()

	t.Run("set price", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		ctx := withURLParam(authedContext(admin), "productId", "7")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/7/price", strings.NewReader(`{"price":750}`)).
			WithContext(ctx)
		rec := httptest.NewRecorder()
		SetPrice(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || stub.calls != 1 {
			t.Fatalf("expected 200 with one call, got %d calls=%d", rec.Code, stub.calls)
		}
	})

	t.Run("set renewable requires flag", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		ctx := withURLParam(authedContext(admin), "productId", "7")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/7/renewable", strings.NewReader(`{}`)).
			WithContext(ctx)
		rec := httptest.NewRecorder()
		SetRenewable(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("set renewable false", func(t *testing.T) {
		stub := &stubCatalogService{product: sampleProduct()}
		ctx := withURLParam(authedContext(admin), "productId", "7")
		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/7/renewable", strings.NewReader(`{"renewable":false}`)).
			WithContext(ctx)
		rec := httptest.NewRecorder()
		SetRenewable(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || stub.calls != 1 {
			t.Fatalf("expected 200 with one call, got %d calls=%d", rec.Code, stub.calls)
		}
	})
}
