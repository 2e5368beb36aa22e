package registry

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
)

type stubStateRepo struct {
	state   *models.RegistryState
	getErr  error
	inserts int
}

func (s *stubStateRepo) Get(ctx context.Context) (*models.RegistryState, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.state == nil {
		return nil, nil
	}
	copied := *s.state
	return &copied, nil
}

func (s *stubStateRepo) GetTx(tx *gorm.DB) (*models.RegistryState, error) {
	return s.Get(context.Background())
}

func (s *stubStateRepo) Insert(ctx context.Context, state *models.RegistryState) error {
	s.inserts++
	copied := *state
	s.state = &copied
	return nil
}

func (s *stubStateRepo) UpdateTx(tx *gorm.DB, state *models.RegistryState) error {
	copied := *state
	s.state = &copied
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubLedger struct {
	balance       int64
	balanceErr    error
	transferErr   error
	transferredTo []uuid.UUID
	transferred   []int64
}

func (s *stubLedger) BalanceOf(ctx context.Context, account uuid.UUID) (int64, error) {
	return s.balance, s.balanceErr
}

func (s *stubLedger) Allowance(ctx context.Context, owner, spender uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubLedger) TransferFrom(ctx context.Context, from, to uuid.UUID, amount int64) error {
	return nil
}

func (s *stubLedger) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	if s.transferErr != nil {
		return s.transferErr
	}
	s.transferredTo = append(s.transferredTo, to)
	s.transferred = append(s.transferred, amount)
	return nil
}

func newTestService(repo *stubStateRepo, ledger *stubLedger, engine uuid.UUID) *Service {
	logg := logger.New(logger.Options{ServiceName: "registry-test", Output: io.Discard})
	if ledger == nil {
		ledger = &stubLedger{}
	}
	return NewService(repo, stubTxRunner{}, ledger, engine, logg)
}

func TestEnsureInitializedSeedsOwnerOnce(t *testing.T) {
	owner := uuid.New()
	repo := &stubStateRepo{}
	svc := newTestService(repo, nil, uuid.New())

	state, err := svc.EnsureInitialized(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, owner, state.OwnerAccount)
	assert.False(t, state.Paused)
	assert.Equal(t, 1, repo.inserts)

	// Second boot keeps the existing wiring and does not insert again.
	repo.state.ControllerAccount = uuid.New()
	state, err = svc.EnsureInitialized(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, owner, state.OwnerAccount)
	assert.Equal(t, 1, repo.inserts)
}

func TestEnsureInitializedRejectsZeroOwner(t *testing.T) {
	svc := newTestService(&stubStateRepo{}, nil, uuid.New())

	_, err := svc.EnsureInitialized(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeZeroAddress))
}

func TestPauseAndUnpause(t *testing.T) {
	owner := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{OwnerAccount: owner}}
	svc := newTestService(repo, nil, uuid.New())

	require.NoError(t, svc.Pause(context.Background(), owner))
	assert.True(t, repo.state.Paused)

	err := svc.Pause(context.Background(), owner)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	require.NoError(t, svc.Unpause(context.Background(), owner))
	assert.False(t, repo.state.Paused)

	err = svc.Unpause(context.Background(), owner)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestControllerMayNotPause(t *testing.T) {
	controller := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{
		OwnerAccount:      uuid.New(),
		ControllerAccount: controller,
	}}
	svc := newTestService(repo, nil, uuid.New())

	err := svc.Pause(context.Background(), controller)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
	assert.False(t, repo.state.Paused)
}

func TestStrangerMayNotPause(t *testing.T) {
	repo := &stubStateRepo{state: &models.RegistryState{OwnerAccount: uuid.New()}}
	svc := newTestService(repo, nil, uuid.New())

	err := svc.Pause(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
	assert.False(t, repo.state.Paused)
}

func TestSetControllerOwnerOnly(t *testing.T) {
	owner := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{OwnerAccount: owner}}
	svc := newTestService(repo, nil, uuid.New())

	next := uuid.New()
	require.NoError(t, svc.SetController(context.Background(), owner, next))
	assert.Equal(t, next, repo.state.ControllerAccount)

	err := svc.SetController(context.Background(), next, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}

func TestWithdrawDrainsEngineBalance(t *testing.T) {
	owner := uuid.New()
	withdrawal := uuid.New()
	engine := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{
		OwnerAccount:      owner,
		WithdrawalAccount: withdrawal,
	}}
	ledger := &stubLedger{balance: 4200}
	svc := newTestService(repo, ledger, engine)

	amount, err := svc.Withdraw(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), amount)
	require.Len(t, ledger.transferred, 1)
	assert.Equal(t, withdrawal, ledger.transferredTo[0])
	assert.Equal(t, int64(4200), ledger.transferred[0])
}

func TestWithdrawNoBalanceIsNoop(t *testing.T) {
	owner := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{
		OwnerAccount:      owner,
		WithdrawalAccount: uuid.New(),
	}}
	ledger := &stubLedger{balance: 0}
	svc := newTestService(repo, ledger, uuid.New())

	amount, err := svc.Withdraw(context.Background(), owner)
	require.NoError(t, err)
	assert.Zero(t, amount)
	assert.Empty(t, ledger.transferred)
}

func TestWithdrawRequiresConfiguredDestination(t *testing.T) {
	owner := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{OwnerAccount: owner}}
	svc := newTestService(repo, &stubLedger{balance: 100}, uuid.New())

	_, err := svc.Withdraw(context.Background(), owner)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestWithdrawalAccountMayWithdraw(t *testing.T) {
	withdrawal := uuid.New()
	repo := &stubStateRepo{state: &models.RegistryState{
		OwnerAccount:      uuid.New(),
		WithdrawalAccount: withdrawal,
	}}
	ledger := &stubLedger{balance: 10}
	svc := newTestService(repo, ledger, uuid.New())

	amount, err := svc.Withdraw(context.Background(), withdrawal)
	require.NoError(t, err)
	assert.Equal(t, int64(10), amount)

	_, err = svc.Withdraw(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeUnauthorized))
}
