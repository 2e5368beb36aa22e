package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AccountID uuid.UUID
	Kind      enums.AccountKind
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients. The account
// id doubles as the ledger address for every custody operation.
type AccessTokenClaims struct {
	AccountID uuid.UUID         `json:"account_id"`
	Kind      enums.AccountKind `json:"kind"`
	jwt.RegisteredClaims
}
