package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/internal/authz"
	"github.com/tokenforge/licensecore/internal/inventory"
	"github.com/tokenforge/licensecore/internal/ownership"
	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/metrics"
	"github.com/tokenforge/licensecore/pkg/payment"
)

// Catalog is the slice of the inventory service the sale engine needs.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	FindTx(tx *gorm.DB, id int64) (*models.Product, error)
	ReserveUnitTx(tx *gorm.DB, id int64) (*models.Product, error)
}

// Custody is the slice of the ownership service the sale engine needs.
type Custody interface {
	MintTx(ctx context.Context, tx *gorm.DB, input ownership.MintInput, actor uuid.UUID) (*models.License, error)
	RenewTx(ctx context.Context, tx *gorm.DB, license *models.License, expiresAt int64, actor uuid.UUID) error
	FindByTokenTx(tx *gorm.DB, tokenID int64) (*models.License, error)
	GetLicense(ctx context.Context, tokenID int64) (*models.License, error)
}

// PauseSource reports whether sales are currently blocked.
type PauseSource interface {
	IsPaused(ctx context.Context) (bool, error)
}

// Guard decides whether an actor may issue promotional licenses.
type Guard interface {
	Require(ctx context.Context, actor uuid.UUID, capability authz.Capability) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// defaultAttributes seeds the attributes bitfield when a purchase does not
// supply one. Every issued license carries a non-zero bitfield.
const defaultAttributes = int64(1)

// PurchaseInput describes a purchase request. The purchaser pays; the
// recipient takes custody of the minted token.
type PurchaseInput struct {
	ProductID  int64
	Recipient  uuid.UUID
	Cycles     int64
	Attributes int64
	Affiliate  uuid.UUID
}

// Service is the sale engine. A purchase settles payment against the
// external ledger first, then commits the inventory reservation and mint in
// one database transaction. When the commit fails after a successful
// settlement, the engine refunds the purchaser and reports the original
// failure.
type Service struct {
	catalog       Catalog
	custody       Custody
	ledger        payment.Ledger
	pauses        PauseSource
	guard         Guard
	client        TxRunner
	engineAccount uuid.UUID
	stats         *metrics.SaleMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(
	catalog Catalog,
	custody Custody,
	ledger payment.Ledger,
	pauses PauseSource,
	guard Guard,
	client TxRunner,
	engineAccount uuid.UUID,
	stats *metrics.SaleMetrics,
	logg *logger.Logger,
) *Service {
	return &Service{
		catalog:       catalog,
		custody:       custody,
		ledger:        ledger,
		pauses:        pauses,
		guard:         guard,
		client:        client,
		engineAccount: engineAccount,
		stats:         stats,
		logg:          logg,
		now:           time.Now,
	}
}

// Purchase sells one license to the recipient, charging the actor the exact
// product price times cycles. The actor must have pre-approved the engine
// account for exactly that amount on the payment ledger.
func (s *Service) Purchase(ctx context.Context, actor uuid.UUID, input PurchaseInput) (*models.License, error) {
	license, err := s.purchase(ctx, actor, input, false)
	if err != nil {
		s.stats.IncPurchase("failure")
		return nil, err
	}
	s.stats.IncPurchase("success")
	return license, nil
}

// PromotionalPurchase issues a license without payment. Only the registry
// owner may do this; inventory and pause rules still apply.
func (s *Service) PromotionalPurchase(ctx context.Context, actor uuid.UUID, input PurchaseInput) (*models.License, error) {
	if err := s.guard.Require(ctx, actor, authz.CapabilityPromotionalIssue); err != nil {
		return nil, err
	}
	license, err := s.purchase(ctx, actor, input, true)
	if err != nil {
		s.stats.IncPurchase("promo_failure")
		return nil, err
	}
	s.stats.IncPurchase("promo_success")
	return license, nil
}

func (s *Service) purchase(ctx context.Context, actor uuid.UUID, input PurchaseInput, promotional bool) (*models.License, error) {
	if err := s.requireUnpaused(ctx); err != nil {
		return nil, err
	}
	if actor == uuid.Nil || input.Recipient == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeZeroAddress, "purchaser and recipient accounts are required")
	}
	attributes := input.Attributes
	if attributes == 0 {
		attributes = defaultAttributes
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product.Available <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeSoldOut, "product is sold out").
			WithDetails(map[string]any{"product_id": input.ProductID})
	}

	cost, err := inventory.CostForCycles(product, input.Cycles)
	if err != nil {
		return nil, err
	}

	settled := int64(0)
	if !promotional && cost > 0 {
		if err := s.settle(ctx, actor, cost, "purchase"); err != nil {
			return nil, err
		}
		settled = cost
	}

	var license *models.License
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.catalog.ReserveUnitTx(tx, input.ProductID)
		if err != nil {
			return err
		}

		issuedAt := s.now().Unix()
		expiresAt := int64(0)
		if current.IsSubscription() {
			span, ok := mulChecked(current.Interval, input.Cycles)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "expiration overflows")
			}
			expiresAt, ok = addChecked(issuedAt, span)
			if !ok {
				return pkgerrors.New(pkgerrors.CodeValidation, "expiration overflows")
			}
		}

		license, err = s.custody.MintTx(ctx, tx, ownership.MintInput{
			Owner:      input.Recipient,
			Purchaser:  actor,
			ProductID:  current.ID,
			Attributes: attributes,
			IssuedAt:   issuedAt,
			ExpiresAt:  expiresAt,
			Affiliate:  input.Affiliate,
		}, actor)
		return err
	})
	if err != nil {
		s.refund(ctx, actor, settled, "purchase")
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"token_id":   license.TokenID,
		"product_id": license.ProductID,
		"cost":       cost,
	})
	s.logg.Info(logCtx, "license sold")
	return license, nil
}

// Renew extends a subscription license. Anyone may pay for a renewal; the
// new expiration starts from the later of now and the current expiration.
func (s *Service) Renew(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error) {
	license, err := s.renew(ctx, actor, tokenID, cycles, false)
	if err != nil {
		s.stats.IncRenewal("failure")
		return nil, err
	}
	s.stats.IncRenewal("success")
	return license, nil
}

// PromotionalRenewal extends a subscription without payment. Only the
// registry owner may do this; renewability rules still apply.
func (s *Service) PromotionalRenewal(ctx context.Context, actor uuid.UUID, tokenID, cycles int64) (*models.License, error) {
	if err := s.guard.Require(ctx, actor, authz.CapabilityPromotionalIssue); err != nil {
		return nil, err
	}
	license, err := s.renew(ctx, actor, tokenID, cycles, true)
	if err != nil {
		s.stats.IncRenewal("promo_failure")
		return nil, err
	}
	s.stats.IncRenewal("promo_success")
	return license, nil
}

func (s *Service) renew(ctx context.Context, actor uuid.UUID, tokenID, cycles int64, promotional bool) (*models.License, error) {
	if err := s.requireUnpaused(ctx); err != nil {
		return nil, err
	}
	if actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeZeroAddress, "actor account is required")
	}
	if cycles < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeZeroCycles, "cycles must be at least 1")
	}

	license, err := s.custody.GetLicense(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, license.ProductID)
	if err != nil {
		return nil, err
	}
	if err := s.requireRenewable(product); err != nil {
		return nil, err
	}

	cost, ok := mulChecked(product.Price, cycles)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost overflows")
	}

	settled := int64(0)
	if !promotional && cost > 0 {
		if err := s.settle(ctx, actor, cost, "renewal"); err != nil {
			return nil, err
		}
		settled = cost
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.custody.FindByTokenTx(tx, tokenID)
		if err != nil {
			return err
		}
		currentProduct, err := s.catalog.FindTx(tx, current.ProductID)
		if err != nil {
			return err
		}
		if err := s.requireRenewable(currentProduct); err != nil {
			return err
		}

		// The extension starts from whichever is later, now or the current
		// expiration, so lapsed licenses do not get back-dated cycles.
		start := s.now().Unix()
		if current.ExpiresAt > start {
			start = current.ExpiresAt
		}
		span, ok := mulChecked(currentProduct.Interval, cycles)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "expiration overflows")
		}
		expiresAt, ok := addChecked(start, span)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "expiration overflows")
		}

		if err := s.custody.RenewTx(ctx, tx, current, expiresAt, actor); err != nil {
			return err
		}
		license = current
		return nil
	})
	if err != nil {
		s.refund(ctx, actor, settled, "renewal")
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"token_id":   license.TokenID,
		"expires_at": license.ExpiresAt,
		"cost":       cost,
	})
	s.logg.Info(logCtx, "license renewed")
	return license, nil
}

// settle verifies the exact allowance and draws it into the engine account.
// An allowance above the cost is rejected the same as one below it.
func (s *Service) settle(ctx context.Context, payer uuid.UUID, cost int64, operation string) error {
	allowance, err := s.ledger.Allowance(ctx, payer, s.engineAccount)
	if err != nil {
		return err
	}
	if allowance != cost {
		return pkgerrors.New(pkgerrors.CodePaymentMismatch, "authorized amount does not match the exact cost").
			WithDetails(map[string]any{"allowance": allowance, "cost": cost})
	}

	start := time.Now()
	err = s.ledger.TransferFrom(ctx, payer, s.engineAccount, cost)
	s.stats.ObserveSettlement(operation, time.Since(start))
	return err
}

// refund returns a settled amount after a failed commit. A refund failure is
// logged but never masks the original error; the outstanding balance stays
// on the engine account for manual reconciliation.
func (s *Service) refund(ctx context.Context, payer uuid.UUID, amount int64, operation string) {
	if amount <= 0 {
		return
	}
	if err := s.ledger.Transfer(ctx, payer, amount); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": payer.String(),
			"amount":     amount,
		})
		s.logg.Error(logCtx, "compensating refund failed", err)
		s.stats.IncRefund(operation + "_failed")
		return
	}
	s.stats.IncRefund(operation)
	s.logg.Warn(s.logg.WithAccountID(ctx, payer.String()), "compensating refund issued")
}

func (s *Service) requireRenewable(product *models.Product) error {
	if !product.IsSubscription() {
		return pkgerrors.New(pkgerrors.CodeNotRenewable, "product is not a subscription").
			WithDetails(map[string]any{"product_id": product.ID})
	}
	if !product.Renewable {
		return pkgerrors.New(pkgerrors.CodeRenewalDisabled, "renewals are disabled for this product").
			WithDetails(map[string]any{"product_id": product.ID})
	}
	return nil
}

func (s *Service) requireUnpaused(ctx context.Context) error {
	paused, err := s.pauses.IsPaused(ctx)
	if err != nil {
		return err
	}
	if paused {
		return pkgerrors.New(pkgerrors.CodePaused, "ledger is paused")
	}
	return nil
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
