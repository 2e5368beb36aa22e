package ownership

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/enums"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/outbox"
	"github.com/tokenforge/licensecore/pkg/outbox/payloads"
)

// LicenseRepository is the persistence surface the custody service needs.
type LicenseRepository interface {
	CreateTx(tx *gorm.DB, license *models.License) error
	FindByToken(ctx context.Context, tokenID int64) (*models.License, error)
	FindByTokenTx(tx *gorm.DB, tokenID int64) (*models.License, error)
	SaveTx(tx *gorm.DB, license *models.License) error
	CountByOwner(ctx context.Context, owner uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
	TokenAt(ctx context.Context, index int64) (*int64, error)
	TokenOfOwnerAt(ctx context.Context, owner uuid.UUID, index int64) (*int64, error)
	TokensByOwner(ctx context.Context, owner uuid.UUID) ([]int64, error)
	FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// OperatorStore persists blanket operator grants.
type OperatorStore interface {
	GrantTx(tx *gorm.DB, owner, operator uuid.UUID) error
	RevokeTx(tx *gorm.DB, owner, operator uuid.UUID) error
	IsOperator(ctx context.Context, owner, operator uuid.UUID) (bool, error)
	IsOperatorTx(tx *gorm.DB, owner, operator uuid.UUID) (bool, error)
}

// PauseSource reports whether mutating operations are currently blocked.
type PauseSource interface {
	IsPaused(ctx context.Context) (bool, error)
}

// Emitter queues domain events inside the mutation's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// MintInput describes a license about to be issued. Purchaser and owner
// differ when someone buys a license for another account.
type MintInput struct {
	Owner      uuid.UUID
	Purchaser  uuid.UUID
	ProductID  int64
	Attributes int64
	IssuedAt   int64
	ExpiresAt  int64
	Affiliate  uuid.UUID
}

// Service is the custody engine: it tracks who owns each license token,
// single-token approvals, blanket operator grants, and enumeration. Every
// custody mutation queues its events in the same transaction; a transfer
// always clears the token's approval first, so the approval-cleared event
// precedes the transfer event.
type Service struct {
	licenses  LicenseRepository
	operators OperatorStore
	pauses    PauseSource
	client    TxRunner
	events    Emitter
	prober    ReceiverProber
	logg      *logger.Logger
}

func NewService(
	licenses LicenseRepository,
	operators OperatorStore,
	pauses PauseSource,
	client TxRunner,
	events Emitter,
	prober ReceiverProber,
	logg *logger.Logger,
) *Service {
	return &Service{
		licenses:  licenses,
		operators: operators,
		pauses:    pauses,
		client:    client,
		events:    events,
		prober:    prober,
		logg:      logg,
	}
}

// OwnerOf returns the current holder of the token.
func (s *Service) OwnerOf(ctx context.Context, tokenID int64) (uuid.UUID, error) {
	license, err := s.load(ctx, tokenID)
	if err != nil {
		return uuid.Nil, err
	}
	return license.Owner, nil
}

// GetLicense returns the full license record.
func (s *Service) GetLicense(ctx context.Context, tokenID int64) (*models.License, error) {
	license, err := s.licenses.FindByToken(ctx, tokenID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading license")
	}
	if license == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownLicense, "license does not exist").
			WithDetails(map[string]any{"token_id": tokenID})
	}
	return license, nil
}

// BalanceOf counts the tokens the account holds.
func (s *Service) BalanceOf(ctx context.Context, owner uuid.UUID) (int64, error) {
	if owner == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeZeroAddress, "zero address has no balance")
	}
	count, err := s.licenses.CountByOwner(ctx, owner)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting owner tokens")
	}
	return count, nil
}

// TotalSupply returns the number of tokens ever minted. Tokens are never
// burned, so the count only grows.
func (s *Service) TotalSupply(ctx context.Context) (int64, error) {
	count, err := s.licenses.Count(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting tokens")
	}
	return count, nil
}

// TokenByIndex returns the token id at the given zero-based mint position.
func (s *Service) TokenByIndex(ctx context.Context, index int64) (int64, error) {
	if index < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeIndexOutOfRange, "index cannot be negative")
	}
	id, err := s.licenses.TokenAt(ctx, index)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading token index")
	}
	if id == nil {
		return 0, pkgerrors.New(pkgerrors.CodeIndexOutOfRange, "index past the end of minted tokens").
			WithDetails(map[string]any{"index": index})
	}
	return *id, nil
}

// TokenOfOwnerByIndex returns the owner's token id at the given zero-based
// position.
func (s *Service) TokenOfOwnerByIndex(ctx context.Context, owner uuid.UUID, index int64) (int64, error) {
	if owner == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeZeroAddress, "zero address holds no tokens")
	}
	if index < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeIndexOutOfRange, "index cannot be negative")
	}
	id, err := s.licenses.TokenOfOwnerAt(ctx, owner, index)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading owner token index")
	}
	if id == nil {
		return 0, pkgerrors.New(pkgerrors.CodeIndexOutOfRange, "index past the end of the owner's tokens").
			WithDetails(map[string]any{"index": index})
	}
	return *id, nil
}

// TokensOfOwner lists all token ids the account holds, in mint order.
func (s *Service) TokensOfOwner(ctx context.Context, owner uuid.UUID) ([]int64, error) {
	if owner == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeZeroAddress, "zero address holds no tokens")
	}
	ids, err := s.licenses.TokensByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing owner tokens")
	}
	return ids, nil
}

// GetApproved returns the single approved spender for the token, uuid.Nil
// when none.
func (s *Service) GetApproved(ctx context.Context, tokenID int64) (uuid.UUID, error) {
	license, err := s.load(ctx, tokenID)
	if err != nil {
		return uuid.Nil, err
	}
	return license.Approved, nil
}

// IsApprovedForAll reports whether the operator holds a blanket grant.
func (s *Service) IsApprovedForAll(ctx context.Context, owner, operator uuid.UUID) (bool, error) {
	granted, err := s.operators.IsOperator(ctx, owner, operator)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking operator grant")
	}
	return granted, nil
}

// Approve sets or clears the single approved spender for a token. Clearing
// an approval that was never set is a silent no-op and emits nothing.
func (s *Service) Approve(ctx context.Context, actor, approved uuid.UUID, tokenID int64) error {
	if err := s.requireUnpaused(ctx); err != nil {
		return err
	}

	var emitted bool
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		license, err := s.loadTx(tx, tokenID)
		if err != nil {
			return err
		}
		if err := s.requireOwnerOrOperatorTx(tx, license.Owner, actor); err != nil {
			return err
		}
		if approved == license.Owner {
			return pkgerrors.New(pkgerrors.CodeSelfApproval, "cannot approve the token to its own owner")
		}
		if approved == uuid.Nil && license.Approved == uuid.Nil {
			return nil
		}

		license.Approved = approved
		if err := s.licenses.SaveTx(tx, license); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving approval")
		}
		emitted = true
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventApproval,
			AggregateType: enums.AggregateLicense,
			AggregateID:   strconv.FormatInt(tokenID, 10),
			Actor:         &outbox.ActorRef{AccountID: actor},
			Data: payloads.ApprovalEvent{
				TokenID:  tokenID,
				Owner:    license.Owner,
				Approved: approved,
			},
			Version:    1,
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return err
	}
	if emitted {
		s.logg.Info(s.logg.WithTokenID(ctx, tokenID), "token approval changed")
	}
	return nil
}

// SetApprovalForAll grants or revokes blanket transfer rights over every
// token the actor holds now or later. The change always emits an event,
// even when it repeats the current state.
func (s *Service) SetApprovalForAll(ctx context.Context, actor, operator uuid.UUID, approved bool) error {
	if err := s.requireUnpaused(ctx); err != nil {
		return err
	}
	if actor == uuid.Nil || operator == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeZeroAddress, "owner and operator accounts are required")
	}
	if operator == actor {
		return pkgerrors.New(pkgerrors.CodeSelfApproval, "cannot grant operator rights to yourself")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if approved {
			err = s.operators.GrantTx(tx, actor, operator)
		} else {
			err = s.operators.RevokeTx(tx, actor, operator)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating operator grant")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventApprovalForAll,
			AggregateType: enums.AggregateAccount,
			AggregateID:   actor.String(),
			Actor:         &outbox.ActorRef{AccountID: actor},
			Data: payloads.ApprovalForAllEvent{
				Owner:    actor,
				Operator: operator,
				Approved: approved,
			},
			Version:    1,
			OccurredAt: time.Now(),
		})
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithAccountID(ctx, actor.String()), "operator grant changed")
	return nil
}

// Transfer moves the actor's own token to another account.
func (s *Service) Transfer(ctx context.Context, actor, to uuid.UUID, tokenID int64) error {
	return s.TransferFrom(ctx, actor, actor, to, tokenID)
}

// TransferFrom moves a token from its owner to another account. The actor
// must be the owner, the token's approved spender, or one of the owner's
// operators.
func (s *Service) TransferFrom(ctx context.Context, actor, from, to uuid.UUID, tokenID int64) error {
	return s.transferChecked(ctx, actor, from, to, tokenID, false)
}

// SafeTransferFrom behaves like TransferFrom and additionally probes the
// recipient's receiver endpoint. The whole transfer rolls back unless the
// recipient acknowledges receipt.
func (s *Service) SafeTransferFrom(ctx context.Context, actor, from, to uuid.UUID, tokenID int64) error {
	return s.transferChecked(ctx, actor, from, to, tokenID, true)
}

// TakeOwnership lets a pre-approved spender or operator pull the token to
// themselves.
func (s *Service) TakeOwnership(ctx context.Context, actor uuid.UUID, tokenID int64) error {
	if err := s.requireUnpaused(ctx); err != nil {
		return err
	}
	if actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeZeroAddress, "actor account is required")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		license, err := s.loadTx(tx, tokenID)
		if err != nil {
			return err
		}
		if license.Owner == actor {
			return pkgerrors.New(pkgerrors.CodeValidation, "token already belongs to the caller")
		}
		allowed := license.Approved == actor
		if !allowed {
			allowed, err = s.operators.IsOperatorTx(tx, license.Owner, actor)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking operator grant")
			}
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeNotOwner, "caller is neither approved nor an operator")
		}
		return s.moveTx(ctx, tx, license, actor, actor)
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithTokenID(ctx, tokenID), "token ownership taken")
	return nil
}

func (s *Service) transferChecked(ctx context.Context, actor, from, to uuid.UUID, tokenID int64, safe bool) error {
	if err := s.requireUnpaused(ctx); err != nil {
		return err
	}
	if actor == uuid.Nil || to == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeZeroAddress, "transfer requires non-zero accounts")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		license, err := s.loadTx(tx, tokenID)
		if err != nil {
			return err
		}
		if license.Owner != from {
			return pkgerrors.New(pkgerrors.CodeNotOwner, "token does not belong to the source account").
				WithDetails(map[string]any{"token_id": tokenID})
		}
		if to == license.Owner {
			return pkgerrors.New(pkgerrors.CodeValidation, "token already belongs to the recipient")
		}

		allowed := actor == license.Owner || actor == license.Approved
		if !allowed {
			allowed, err = s.operators.IsOperatorTx(tx, license.Owner, actor)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking operator grant")
			}
		}
		if !allowed {
			return pkgerrors.New(pkgerrors.CodeNotOwner, "caller may not move this token")
		}

		if err := s.moveTx(ctx, tx, license, to, actor); err != nil {
			return err
		}

		if safe {
			recipient, err := s.licenses.FindAccount(ctx, to)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading recipient account")
			}
			if err := s.prober.Probe(ctx, recipient, tokenID, from); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithTokenID(ctx, tokenID), "token transferred")
	return nil
}

// moveTx rewrites custody and queues the event pair. The approval-cleared
// event carries an earlier timestamp than the transfer event so downstream
// consumers replay them in order.
func (s *Service) moveTx(ctx context.Context, tx *gorm.DB, license *models.License, to, actor uuid.UUID) error {
	from := license.Owner
	license.Approved = uuid.Nil
	license.Owner = to
	if err := s.licenses.SaveTx(tx, license); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving custody change")
	}

	base := time.Now()
	err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventApproval,
		AggregateType: enums.AggregateLicense,
		AggregateID:   strconv.FormatInt(license.TokenID, 10),
		Actor:         &outbox.ActorRef{AccountID: actor},
		Data: payloads.ApprovalEvent{
			TokenID:  license.TokenID,
			Owner:    from,
			Approved: uuid.Nil,
		},
		Version:    1,
		OccurredAt: base,
	})
	if err != nil {
		return err
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTransfer,
		AggregateType: enums.AggregateLicense,
		AggregateID:   strconv.FormatInt(license.TokenID, 10),
		Actor:         &outbox.ActorRef{AccountID: actor},
		Data: payloads.TransferEvent{
			TokenID: license.TokenID,
			From:    from,
			To:      to,
		},
		Version:    1,
		OccurredAt: base.Add(time.Microsecond),
	})
}

// MintTx issues a new license inside an open sale transaction. The issuance
// event precedes the transfer-from-zero event.
func (s *Service) MintTx(ctx context.Context, tx *gorm.DB, input MintInput, actor uuid.UUID) (*models.License, error) {
	if input.Owner == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeZeroAddress, "licenses cannot be issued to the zero address")
	}

	license := &models.License{
		Owner:      input.Owner,
		ProductID:  input.ProductID,
		Attributes: input.Attributes,
		IssuedAt:   input.IssuedAt,
		ExpiresAt:  input.ExpiresAt,
		Affiliate:  input.Affiliate,
	}
	if err := s.licenses.CreateTx(tx, license); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating license")
	}

	base := time.Now()
	err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLicenseIssued,
		AggregateType: enums.AggregateLicense,
		AggregateID:   strconv.FormatInt(license.TokenID, 10),
		Actor:         &outbox.ActorRef{AccountID: actor},
		Data: payloads.LicenseIssuedEvent{
			TokenID:    license.TokenID,
			Owner:      license.Owner,
			Purchaser:  input.Purchaser,
			ProductID:  license.ProductID,
			Attributes: license.Attributes,
			IssuedAt:   license.IssuedAt,
			ExpiresAt:  license.ExpiresAt,
			Affiliate:  license.Affiliate,
		},
		Version:    1,
		OccurredAt: base,
	})
	if err != nil {
		return nil, err
	}
	err = s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTransfer,
		AggregateType: enums.AggregateLicense,
		AggregateID:   strconv.FormatInt(license.TokenID, 10),
		Actor:         &outbox.ActorRef{AccountID: actor},
		Data: payloads.TransferEvent{
			TokenID: license.TokenID,
			From:    uuid.Nil,
			To:      license.Owner,
		},
		Version:    1,
		OccurredAt: base.Add(time.Microsecond),
	})
	if err != nil {
		return nil, err
	}
	return license, nil
}

// RenewTx extends a license's expiration inside an open sale transaction.
func (s *Service) RenewTx(ctx context.Context, tx *gorm.DB, license *models.License, expiresAt int64, actor uuid.UUID) error {
	license.ExpiresAt = expiresAt
	if err := s.licenses.SaveTx(tx, license); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving renewal")
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLicenseRenewal,
		AggregateType: enums.AggregateLicense,
		AggregateID:   strconv.FormatInt(license.TokenID, 10),
		Actor:         &outbox.ActorRef{AccountID: actor},
		Data: payloads.LicenseRenewalEvent{
			TokenID:   license.TokenID,
			ProductID: license.ProductID,
			ExpiresAt: expiresAt,
		},
		Version:    1,
		OccurredAt: time.Now(),
	})
}

// FindByTokenTx reads a license inside an open sale transaction.
func (s *Service) FindByTokenTx(tx *gorm.DB, tokenID int64) (*models.License, error) {
	return s.loadTx(tx, tokenID)
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

func (s *Service) requireOwnerOrOperatorTx(tx *gorm.DB, owner, actor uuid.UUID) error {
	if actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeZeroAddress, "actor account is required")
	}
	if actor == owner {
		return nil
	}
	granted, err := s.operators.IsOperatorTx(tx, owner, actor)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking operator grant")
	}
	if !granted {
		return pkgerrors.New(pkgerrors.CodeNotOwner, "caller does not control this token")
	}
	return nil
}

func (s *Service) load(ctx context.Context, tokenID int64) (*models.License, error) {
	license, err := s.licenses.FindByToken(ctx, tokenID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading license")
	}
	if license == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownToken, "token does not exist").
			WithDetails(map[string]any{"token_id": tokenID})
	}
	return license, nil
}

func (s *Service) loadTx(tx *gorm.DB, tokenID int64) (*models.License, error) {
	license, err := s.licenses.FindByTokenTx(tx, tokenID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading license")
	}
	if license == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownToken, "token does not exist").
			WithDetails(map[string]any{"token_id": tokenID})
	}
	return license, nil
}
