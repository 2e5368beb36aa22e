package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/api/responses"
	"github.com/tokenforge/licensecore/api/validators"
	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/logger"
)

// RegistryService is the slice of the registry service the admin
// controllers need.
type RegistryService interface {
	State(ctx context.Context) (*models.RegistryState, error)
	Pause(ctx context.Context, actor uuid.UUID) error
	Unpause(ctx context.Context, actor uuid.UUID) error
	SetController(ctx context.Context, actor, account uuid.UUID) error
	SetWithdrawal(ctx context.Context, actor, account uuid.UUID) error
	Withdraw(ctx context.Context, actor uuid.UUID) (int64, error)
}

type registryStateResponse struct {
	Paused            bool      `json:"paused"`
	OwnerAccount      uuid.UUID `json:"ownerAccount"`
	ControllerAccount uuid.UUID `json:"controllerAccount"`
	WithdrawalAccount uuid.UUID `json:"withdrawalAccount"`
}

// GetRegistryState returns the admin wiring and pause flag.
func GetRegistryState(svc RegistryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.State(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, registryStateResponse{
			Paused:            state.Paused,
			OwnerAccount:      state.OwnerAccount,
			ControllerAccount: state.ControllerAccount,
			WithdrawalAccount: state.WithdrawalAccount,
		})
	}
}

// PauseRegistry halts custody and sale operations.
func PauseRegistry(svc RegistryService, logg *logger.Logger) http.HandlerFunc {
	return pauseHandler(svc.Pause, true, logg)
}

// UnpauseRegistry resumes custody and sale operations.
func UnpauseRegistry(svc RegistryService, logg *logger.Logger) http.HandlerFunc {
	return pauseHandler(svc.Unpause, false, logg)
}

func pauseHandler(toggle func(ctx context.Context, actor uuid.UUID) error, paused bool, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := toggle(r.Context(), actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"paused": paused})
	}
}

type wiringRequest struct {
	Account uuid.UUID `json:"account"`
}

// SetRegistryController rewires the controller account. A zero account
// clears it.
func SetRegistryController(svc RegistryService, logg *logger.Logger) http.HandlerFunc {
	return wiringHandler(svc.SetController, "controllerAccount", logg)
}

// SetRegistryWithdrawal rewires the withdrawal destination. A zero
// account clears it.
func SetRegistryWithdrawal(svc RegistryService, logg *logger.Logger) http.HandlerFunc {
	return wiringHandler(svc.SetWithdrawal, "withdrawalAccount", logg)
}

func wiringHandler(apply func(ctx context.Context, actor, account uuid.UUID) error, field string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload wiringRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := apply(r.Context(), actor, payload.Account); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{field: payload.Account})
	}
}

// WithdrawProceeds drains the engine balance to the withdrawal account.
func WithdrawProceeds(svc RegistryService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := svc.Withdraw(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"amount": amount})
	}
}
