package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/internal/authz"
	"github.com/tokenforge/licensecore/pkg/db"
	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/enums"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/outbox"
	"github.com/tokenforge/licensecore/pkg/outbox/payloads"
	"github.com/tokenforge/licensecore/pkg/pagination"
)

// ProductRepository is the persistence surface the catalog service needs.
type ProductRepository interface {
	Create(tx *gorm.DB, product *models.Product) error
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	FindByIDTx(tx *gorm.DB, id int64) (*models.Product, error)
	SaveTx(tx *gorm.DB, product *models.Product) error
	ListIDs(ctx context.Context) ([]int64, error)
	ListIDsAfter(ctx context.Context, afterID int64, limit int) ([]int64, error)
	TotalSold(ctx context.Context) (int64, error)
}

// Emitter queues domain events inside the mutation's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Guard decides whether an actor may run an administrative operation.
type Guard interface {
	Require(ctx context.Context, actor uuid.UUID, capability authz.Capability) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateProductInput carries the immutable and mutable halves of a new
// catalog entry. Supply is fixed forever once created.
type CreateProductInput struct {
	ID        int64
	Price     int64
	Available int64
	Supply    int64
	Interval  int64
	Renewable bool
}

// Service owns the product catalog: creation, stock movement, pricing, and
// renewability. Every mutation holds the invariant sold + available <= supply
// and queues an event in the same transaction.
type Service struct {
	repo   ProductRepository
	client TxRunner
	events Emitter
	guard  Guard
	logg   *logger.Logger
}

func NewService(repo ProductRepository, client TxRunner, events Emitter, guard Guard, logg *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		client: client,
		events: events,
		guard:  guard,
		logg:   logg,
	}
}

// CreateProduct registers a new catalog entry under a caller-chosen id.
func (s *Service) CreateProduct(ctx context.Context, actor uuid.UUID, input CreateProductInput) (*models.Product, error) {
	if err := s.guard.Require(ctx, actor, authz.CapabilityManageCatalog); err != nil {
		return nil, err
	}
	if input.ID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	if input.Price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Supply < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supply cannot be negative")
	}
	if input.Interval < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "interval cannot be negative")
	}
	if input.Available < 0 || input.Available > input.Supply {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidInventory, "initial inventory must be between 0 and supply").
			WithDetails(map[string]any{"available": input.Available, "supply": input.Supply})
	}

	product := &models.Product{
		ID:        input.ID,
		Price:     input.Price,
		Available: input.Available,
		Supply:    input.Supply,
		Interval:  input.Interval,
		Renewable: input.Renewable,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.FindByIDTx(tx, input.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking product id")
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeDuplicateProduct, "product id already exists").
				WithDetails(map[string]any{"product_id": input.ID})
		}
		if err := s.repo.Create(tx, product); err != nil {
			if db.IsUniqueViolation(err, "products_pkey") {
				return pkgerrors.New(pkgerrors.CodeDuplicateProduct, "product id already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating product")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductCreated,
			AggregateType: enums.AggregateProduct,
			AggregateID:   strconv.FormatInt(product.ID, 10),
			Actor:         &outbox.ActorRef{AccountID: actor},
			Data: payloads.ProductCreatedEvent{
				ProductID:       product.ID,
				Price:           product.Price,
				Available:       product.Available,
				Supply:          product.Supply,
				IntervalSeconds: product.Interval,
				Renewable:       product.Renewable,
			},
			Version:    1,
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithProductID(ctx, product.ID), "product created")
	return product, nil
}

// IncrementInventory adds stock. The new availability can never push
// sold + available past the fixed supply.
func (s *Service) IncrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error) {
	return s.adjustInventory(ctx, actor, id, func(product *models.Product) error {
		if amount <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "increment amount must be positive")
		}
		next, ok := addChecked(product.Available, amount)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeSupplyExceeded, "increment overflows availability")
		}
		if next > product.Supply-product.Sold {
			return pkgerrors.New(pkgerrors.CodeSupplyExceeded, "increment would exceed remaining supply").
				WithDetails(map[string]any{
					"available": product.Available,
					"sold":      product.Sold,
					"supply":    product.Supply,
					"amount":    amount,
				})
		}
		product.Available = next
		return nil
	})
}

// DecrementInventory removes stock without recording a sale.
func (s *Service) DecrementInventory(ctx context.Context, actor uuid.UUID, id, amount int64) (*models.Product, error) {
	return s.adjustInventory(ctx, actor, id, func(product *models.Product) error {
		if amount <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "decrement amount must be positive")
		}
		if amount > product.Available {
			return pkgerrors.New(pkgerrors.CodeUnderflow, "decrement exceeds available inventory").
				WithDetails(map[string]any{"available": product.Available, "amount": amount})
		}
		product.Available -= amount
		return nil
	})
}

// ClearInventory takes the product off sale by zeroing availability. Sold
// counts and supply are untouched.
func (s *Service) ClearInventory(ctx context.Context, actor uuid.UUID, id int64) (*models.Product, error) {
	return s.adjustInventory(ctx, actor, id, func(product *models.Product) error {
		product.Available = 0
		return nil
	})
}

func (s *Service) adjustInventory(ctx context.Context, actor uuid.UUID, id int64, apply func(*models.Product) error) (*models.Product, error) {
	if err := s.guard.Require(ctx, actor, authz.CapabilityManageCatalog); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		product, err = s.loadTx(tx, id)
		if err != nil {
			return err
		}
		if err := apply(product); err != nil {
			return err
		}
		if err := s.repo.SaveTx(tx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving product inventory")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductInventoryAdjusted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   strconv.FormatInt(product.ID, 10),
			Actor:         &outbox.ActorRef{AccountID: actor},
			Data: payloads.ProductInventoryAdjustedEvent{
				ProductID: product.ID,
				Available: product.Available,
			},
			Version:    1,
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithProductID(ctx, product.ID), "inventory adjusted")
	return product, nil
}

// SetPrice reprices future sales. In-flight purchases settle at the price
// they were quoted inside their own transaction.
func (s *Service) SetPrice(ctx context.Context, actor uuid.UUID, id, price int64) (*models.Product, error) {
	if err := s.guard.Require(ctx, actor, authz.CapabilityManageCatalog); err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	var product *models.Product
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		product, err = s.loadTx(tx, id)
		if err != nil {
			return err
		}
		product.Price = price
		if err := s.repo.SaveTx(tx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving product price")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductPriceChanged,
			AggregateType: enums.AggregateProduct,
			AggregateID:   strconv.FormatInt(product.ID, 10),
			Actor:         &outbox.ActorRef{AccountID: actor},
			Data:          payloads.ProductPriceChangedEvent{ProductID: product.ID, Price: price},
			Version:       1,
			OccurredAt:    time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithProductID(ctx, product.ID), "product repriced")
	return product, nil
}

// SetRenewable toggles whether existing subscriptions may extend themselves.
func (s *Service) SetRenewable(ctx context.Context, actor uuid.UUID, id int64, renewable bool) (*models.Product, error) {
	if err := s.guard.Require(ctx, actor, authz.CapabilityManageCatalog); err != nil {
		return nil, err
	}

	var product *models.Product
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		product, err = s.loadTx(tx, id)
		if err != nil {
			return err
		}
		product.Renewable = renewable
		if err := s.repo.SaveTx(tx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving product renewability")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductRenewableChanged,
			AggregateType: enums.AggregateProduct,
			AggregateID:   strconv.FormatInt(product.ID, 10),
			Actor:         &outbox.ActorRef{AccountID: actor},
			Data:          payloads.ProductRenewableChangedEvent{ProductID: product.ID, Renewable: renewable},
			Version:       1,
			OccurredAt:    time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithProductID(ctx, product.ID), "product renewability changed")
	return product, nil
}

// GetProduct returns a catalog entry by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownProduct, "product does not exist").
			WithDetails(map[string]any{"product_id": id})
	}
	return product, nil
}

// ListProductIDs returns every catalog id in creation order.
func (s *Service) ListProductIDs(ctx context.Context) ([]int64, error) {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing product ids")
	}
	return ids, nil
}

// QuoteCost prices a purchase or renewal of the given cycle count against
// the product's current price.
func (s *Service) QuoteCost(ctx context.Context, id, cycles int64) (int64, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return 0, err
	}
	return CostForCycles(product, cycles)
}

// ListProductPage returns one cursor page of catalog ids. The returned
// cursor is empty when no further page exists.
func (s *Service) ListProductPage(ctx context.Context, params pagination.Params) ([]int64, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var afterID int64
	if cursor != nil {
		afterID = cursor.ID
	}

	limit := pagination.NormalizeLimit(params.Limit)
	ids, err := s.repo.ListIDsAfter(ctx, afterID, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing product page")
	}

	next := ""
	if len(ids) > limit {
		ids = ids[:limit]
		next = pagination.EncodeCursor(pagination.Cursor{ID: ids[limit-1]})
	}
	return ids, next, nil
}

// TotalSold returns units sold across the whole catalog.
func (s *Service) TotalSold(ctx context.Context) (int64, error) {
	total, err := s.repo.TotalSold(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summing sold units")
	}
	return total, nil
}

// CostForCycles prices a purchase or renewal of the given cycle count.
// Non-subscription products only ever sell a single cycle.
func CostForCycles(product *models.Product, cycles int64) (int64, error) {
	if cycles < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeZeroCycles, "cycles must be at least 1")
	}
	if !product.IsSubscription() && cycles != 1 {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidCycleCount, "non-subscription products allow exactly one cycle").
			WithDetails(map[string]any{"product_id": product.ID, "cycles": cycles})
	}
	cost, ok := mulChecked(product.Price, cycles)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cost overflows")
	}
	return cost, nil
}

// ReserveUnitTx moves one unit from available to sold inside an open sale
// transaction.
func (s *Service) ReserveUnitTx(tx *gorm.DB, id int64) (*models.Product, error) {
	product, err := s.loadTx(tx, id)
	if err != nil {
		return nil, err
	}
	if product.Available <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeSoldOut, "product is sold out").
			WithDetails(map[string]any{"product_id": id})
	}
	if product.Sold >= product.Supply {
		return nil, pkgerrors.New(pkgerrors.CodeSupplyExceeded, "sold count would exceed total supply").
			WithDetails(map[string]any{"product_id": id, "sold": product.Sold, "supply": product.Supply})
	}
	product.Available--
	product.Sold++
	if err := s.repo.SaveTx(tx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserving inventory unit")
	}
	return product, nil
}

// FindTx reads a product inside an open sale transaction.
func (s *Service) FindTx(tx *gorm.DB, id int64) (*models.Product, error) {
	return s.loadTx(tx, id)
}

func (s *Service) loadTx(tx *gorm.DB, id int64) (*models.Product, error) {
	product, err := s.repo.FindByIDTx(tx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownProduct, "product does not exist").
			WithDetails(map[string]any{"product_id": id})
	}
	return product, nil
}

func addChecked(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}
