package payloads

import (
	"github.com/google/uuid"
)

// ProductCreatedEvent announces a new catalog entry.
type ProductCreatedEvent struct {
	ProductID       int64 `json:"productId"`
	Price           int64 `json:"price"`
	Available       int64 `json:"available"`
	Supply          int64 `json:"supply"`
	IntervalSeconds int64 `json:"intervalSeconds"`
	Renewable       bool  `json:"renewable"`
}

// ProductInventoryAdjustedEvent reports the post-adjustment availability.
type ProductInventoryAdjustedEvent struct {
	ProductID int64 `json:"productId"`
	Available int64 `json:"available"`
}

// ProductPriceChangedEvent reports a repricing.
type ProductPriceChangedEvent struct {
	ProductID int64 `json:"productId"`
	Price     int64 `json:"price"`
}

// ProductRenewableChangedEvent reports a renewability toggle.
type ProductRenewableChangedEvent struct {
	ProductID int64 `json:"productId"`
	Renewable bool  `json:"renewable"`
}

// LicenseIssuedEvent is emitted once per mint, before the paired transfer
// event that moves the token from the zero account to the owner.
type LicenseIssuedEvent struct {
	TokenID    int64     `json:"tokenId"`
	Owner      uuid.UUID `json:"owner"`
	Purchaser  uuid.UUID `json:"purchaser"`
	ProductID  int64     `json:"productId"`
	Attributes int64     `json:"attributes"`
	IssuedAt   int64     `json:"issuedAt"`
	ExpiresAt  int64     `json:"expiresAt"`
	Affiliate  uuid.UUID `json:"affiliate"`
}

// LicenseRenewalEvent carries the extended expiration timestamp.
type LicenseRenewalEvent struct {
	TokenID   int64 `json:"tokenId"`
	ProductID int64 `json:"productId"`
	ExpiresAt int64 `json:"expiresAt"`
}

// ApprovalEvent reports the single-token approvee after a change. A nil
// Approved account means the approval was cleared.
type ApprovalEvent struct {
	TokenID  int64     `json:"tokenId"`
	Owner    uuid.UUID `json:"owner"`
	Approved uuid.UUID `json:"approved"`
}

// ApprovalForAllEvent reports an operator grant or revocation.
type ApprovalForAllEvent struct {
	Owner    uuid.UUID `json:"owner"`
	Operator uuid.UUID `json:"operator"`
	Approved bool      `json:"approved"`
}

// TransferEvent reports a custody change. Mints use the zero account as From.
type TransferEvent struct {
	TokenID int64     `json:"tokenId"`
	From    uuid.UUID `json:"from"`
	To      uuid.UUID `json:"to"`
}
