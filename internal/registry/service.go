package registry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
	"github.com/tokenforge/licensecore/pkg/payment"
)

// StateRepository is the persistence surface the registry service needs.
type StateRepository interface {
	Get(ctx context.Context) (*models.RegistryState, error)
	GetTx(tx *gorm.DB) (*models.RegistryState, error)
	Insert(ctx context.Context, state *models.RegistryState) error
	UpdateTx(tx *gorm.DB, state *models.RegistryState) error
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns the single-row administrative state: the owner and controller
// accounts, the withdrawal destination, and the pause gate. It also drains
// accumulated sale balance from the engine account on the payment ledger.
type Service struct {
	repo          StateRepository
	client        TxRunner
	ledger        payment.Ledger
	engineAccount uuid.UUID
	logg          *logger.Logger
}

func NewService(repo StateRepository, client TxRunner, ledger payment.Ledger, engineAccount uuid.UUID, logg *logger.Logger) *Service {
	return &Service{
		repo:          repo,
		client:        client,
		ledger:        ledger,
		engineAccount: engineAccount,
		logg:          logg,
	}
}

// EnsureInitialized seeds the state row with the configured owner account on
// first boot. Subsequent boots keep whatever wiring operators have applied.
func (s *Service) EnsureInitialized(ctx context.Context, owner uuid.UUID) (*models.RegistryState, error) {
	state, err := s.repo.Get(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading registry state")
	}
	if state != nil {
		return state, nil
	}
	if owner == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeZeroAddress, "owner account is required to seed registry state")
	}

	state = &models.RegistryState{OwnerAccount: owner}
	if err := s.repo.Insert(ctx, state); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "seeding registry state")
	}
	s.logg.Info(s.logg.WithAccountID(ctx, owner.String()), "registry state seeded")
	return state, nil
}

// State returns the current administrative wiring.
func (s *Service) State(ctx context.Context) (*models.RegistryState, error) {
	state, err := s.repo.Get(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading registry state")
	}
	if state == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "registry state not initialized")
	}
	return state, nil
}

// AdminAccounts exposes the owner, controller, and withdrawal accounts.
func (s *Service) AdminAccounts(ctx context.Context) (uuid.UUID, uuid.UUID, uuid.UUID, error) {
	state, err := s.State(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, uuid.Nil, err
	}
	return state.OwnerAccount, state.ControllerAccount, state.WithdrawalAccount, nil
}

// IsPaused reports whether mutating custody and sale operations are blocked.
func (s *Service) IsPaused(ctx context.Context) (bool, error) {
	state, err := s.State(ctx)
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

// Pause blocks custody and sale mutations. Pausing an already paused ledger
// is rejected.
func (s *Service) Pause(ctx context.Context, actor uuid.UUID) error {
	return s.setPaused(ctx, actor, true)
}

// Unpause lifts the pause gate. Unpausing a running ledger is rejected.
func (s *Service) Unpause(ctx context.Context, actor uuid.UUID) error {
	return s.setPaused(ctx, actor, false)
}

func (s *Service) setPaused(ctx context.Context, actor uuid.UUID, paused bool) error {
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		state, err := s.loadTx(tx)
		if err != nil {
			return err
		}
		if actor == uuid.Nil || actor != state.OwnerAccount {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "only the owner may change the pause gate")
		}
		if state.Paused == paused {
			if paused {
				return pkgerrors.New(pkgerrors.CodeValidation, "ledger is already paused")
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "ledger is not paused")
		}
		state.Paused = paused
		return s.repo.UpdateTx(tx, state)
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithAccountID(ctx, actor.String())
	if paused {
		s.logg.Warn(logCtx, "ledger paused")
	} else {
		s.logg.Info(logCtx, "ledger unpaused")
	}
	return nil
}

// SetController rewires the controller account. Only the owner may do this.
// A zero account clears the controller.
func (s *Service) SetController(ctx context.Context, actor, account uuid.UUID) error {
	return s.updateWiring(ctx, actor, func(state *models.RegistryState) {
		state.ControllerAccount = account
	})
}

// SetWithdrawal rewires the withdrawal destination. Only the owner may do
// this. A zero account disables withdrawals.
func (s *Service) SetWithdrawal(ctx context.Context, actor, account uuid.UUID) error {
	return s.updateWiring(ctx, actor, func(state *models.RegistryState) {
		state.WithdrawalAccount = account
	})
}

func (s *Service) updateWiring(ctx context.Context, actor uuid.UUID, apply func(state *models.RegistryState)) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		state, err := s.loadTx(tx)
		if err != nil {
			return err
		}
		if actor != state.OwnerAccount {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "only the owner may rewire the registry")
		}
		apply(state)
		return s.repo.UpdateTx(tx, state)
	})
}

// Withdraw drains the engine account's full payment balance to the configured
// withdrawal account. It returns the amount moved, zero when there is nothing
// to move.
func (s *Service) Withdraw(ctx context.Context, actor uuid.UUID) (int64, error) {
	state, err := s.State(ctx)
	if err != nil {
		return 0, err
	}
	if actor != state.OwnerAccount && (actor == uuid.Nil || actor != state.WithdrawalAccount) {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "only the owner or withdrawal account may withdraw")
	}
	if state.WithdrawalAccount == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal account is not configured")
	}

	balance, err := s.ledger.BalanceOf(ctx, s.engineAccount)
	if err != nil {
		return 0, err
	}
	if balance <= 0 {
		return 0, nil
	}

	if err := s.ledger.Transfer(ctx, state.WithdrawalAccount, balance); err != nil {
		return 0, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"account_id": state.WithdrawalAccount.String(),
		"amount":     balance,
	})
	s.logg.Info(logCtx, "engine balance withdrawn")
	return balance, nil
}

func (s *Service) loadTx(tx *gorm.DB) (*models.RegistryState, error) {
	state, err := s.repo.GetTx(tx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading registry state")
	}
	if state == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "registry state not initialized")
	}
	return state, nil
}
