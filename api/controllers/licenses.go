package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/api/responses"
	"github.com/tokenforge/licensecore/api/validators"
	"github.com/tokenforge/licensecore/pkg/db/models"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
)

// CustodyService is the slice of the ownership service the license
// controllers need.
type CustodyService interface {
	GetLicense(ctx context.Context, tokenID int64) (*models.License, error)
	OwnerOf(ctx context.Context, tokenID int64) (uuid.UUID, error)
	BalanceOf(ctx context.Context, owner uuid.UUID) (int64, error)
	TotalSupply(ctx context.Context) (int64, error)
	TokenByIndex(ctx context.Context, index int64) (int64, error)
	TokenOfOwnerByIndex(ctx context.Context, owner uuid.UUID, index int64) (int64, error)
	TokensOfOwner(ctx context.Context, owner uuid.UUID) ([]int64, error)
	GetApproved(ctx context.Context, tokenID int64) (uuid.UUID, error)
	IsApprovedForAll(ctx context.Context, owner, operator uuid.UUID) (bool, error)
	Approve(ctx context.Context, actor, approved uuid.UUID, tokenID int64) error
	SetApprovalForAll(ctx context.Context, actor, operator uuid.UUID, approved bool) error
	Transfer(ctx context.Context, actor, to uuid.UUID, tokenID int64) error
	TransferFrom(ctx context.Context, actor, from, to uuid.UUID, tokenID int64) error
	SafeTransferFrom(ctx context.Context, actor, from, to uuid.UUID, tokenID int64) error
	TakeOwnership(ctx context.Context, actor uuid.UUID, tokenID int64) error
}

// GetLicense returns one license token with its current custody state.
func GetLicense(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenID, err := validators.ParsePathInt64(chi.URLParam(r, "tokenId"), "tokenId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		license, err := svc.GetLicense(r.Context(), tokenID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toLicenseResponse(license))
	}
}

// GetLicenseOwner resolves just the owning account for a token.
func GetLicenseOwner(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenID, err := validators.ParsePathInt64(chi.URLParam(r, "tokenId"), "tokenId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		owner, err := svc.OwnerOf(r.Context(), tokenID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tokenId": tokenID, "owner": owner})
	}
}

// ListAccountLicenses returns every token held by an account together
// with the holding count.
func ListAccountLicenses(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := parsePathUUID(chi.URLParam(r, "accountId"), "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tokens, err := svc.TokensOfOwner(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"accountId": accountID,
			"balance":   int64(len(tokens)),
			"tokenIds":  tokens,
		})
	}
}

// GetAccountLicenseAt returns the token at a position in an account's
// holdings.
func GetAccountLicenseAt(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := parsePathUUID(chi.URLParam(r, "accountId"), "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		index, err := validators.ParsePathIndex(chi.URLParam(r, "index"), "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tokenID, err := svc.TokenOfOwnerByIndex(r.Context(), accountID, index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"accountId": accountID, "index": index, "tokenId": tokenID})
	}
}

// GetTokenAt returns the token at a position in global issuance order.
func GetTokenAt(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := validators.ParsePathIndex(chi.URLParam(r, "index"), "index")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tokenID, err := svc.TokenByIndex(r.Context(), index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"index": index, "tokenId": tokenID})
	}
}

// GetLedgerSummary reports total tokens minted and units sold.
func GetLedgerSummary(custody CustodyService, catalog CatalogService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totalSupply, err := custody.TotalSupply(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		totalSold, err := catalog.TotalSold(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"totalSupply": totalSupply,
			"totalSold":   totalSold,
		})
	}
}

type transferRequest struct {
	To   uuid.UUID  `json:"to" validate:"required"`
	From *uuid.UUID `json:"from,omitempty"`
	Safe bool       `json:"safe"`
}

// TransferLicense moves a token. A request carrying "from" runs as a
// delegated transfer; "safe" additionally probes service recipients.
func TransferLicense(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
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
		var payload transferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		from := actor
		if payload.From != nil {
			from = *payload.From
		}
		switch {
		case payload.Safe:
			err = svc.SafeTransferFrom(r.Context(), actor, from, payload.To, tokenID)
		case payload.From != nil:
			err = svc.TransferFrom(r.Context(), actor, from, payload.To, tokenID)
		default:
			err = svc.Transfer(r.Context(), actor, payload.To, tokenID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tokenId": tokenID, "owner": payload.To})
	}
}

type approveRequest struct {
	Approved uuid.UUID `json:"approved"`
}

// ApproveLicense grants or clears the single approved spender for a
// token. A zero account clears.
func ApproveLicense(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
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
		var payload approveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Approve(r.Context(), actor, payload.Approved, tokenID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tokenId": tokenID, "approved": payload.Approved})
	}
}

// GetLicenseApproval returns the approved spender for a token.
func GetLicenseApproval(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenID, err := validators.ParsePathInt64(chi.URLParam(r, "tokenId"), "tokenId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		approved, err := svc.GetApproved(r.Context(), tokenID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tokenId": tokenID, "approved": approved})
	}
}

// TakeLicense lets an approved spender or operator pull a token to
// their own account.
func TakeLicense(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
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
		if err := svc.TakeOwnership(r.Context(), actor, tokenID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tokenId": tokenID, "owner": actor})
	}
}

type setOperatorRequest struct {
	Operator uuid.UUID `json:"operator" validate:"required"`
	Approved *bool     `json:"approved" validate:"required"`
}

// SetOperator grants or revokes blanket transfer rights over every
// token the actor holds.
func SetOperator(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setOperatorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Approved == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "approved is required"))
			return
		}
		if err := svc.SetApprovalForAll(r.Context(), actor, payload.Operator, *payload.Approved); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"owner":    actor,
			"operator": payload.Operator,
			"approved": *payload.Approved,
		})
	}
}

// GetOperatorApproval reports whether an operator may act for an owner.
func GetOperatorApproval(svc CustodyService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := parsePathUUID(chi.URLParam(r, "accountId"), "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		operator, err := parsePathUUID(chi.URLParam(r, "operatorId"), "operatorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		approved, err := svc.IsApprovedForAll(r.Context(), owner, operator)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"owner":    owner,
			"operator": operator,
			"approved": approved,
		})
	}
}

func parsePathUUID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" must be a valid uuid")
	}
	return id, nil
}
