package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Catalog codes.
	CodeUnknownProduct   Code = "UNKNOWN_PRODUCT"
	CodeDuplicateProduct Code = "DUPLICATE_PRODUCT"
	CodeInvalidInventory Code = "INVALID_INVENTORY"
	CodeSupplyExceeded   Code = "SUPPLY_EXCEEDED"
	CodeUnderflow        Code = "UNDERFLOW"
	CodeSoldOut          Code = "SOLD_OUT"

	// Sale codes.
	CodeZeroCycles        Code = "ZERO_CYCLES"
	CodeInvalidCycleCount Code = "INVALID_CYCLE_COUNT"
	CodeNotRenewable      Code = "NOT_RENEWABLE"
	CodeRenewalDisabled   Code = "RENEWAL_DISABLED"
	CodePaymentMismatch   Code = "PAYMENT_MISMATCH"
	CodePaymentFailed     Code = "PAYMENT_FAILED"
	CodeUnknownLicense    Code = "UNKNOWN_LICENSE"

	// Custody codes.
	CodeUnknownToken    Code = "UNKNOWN_TOKEN"
	CodeZeroAddress     Code = "ZERO_ADDRESS"
	CodeSelfApproval    Code = "SELF_APPROVAL"
	CodeNotOwner        Code = "NOT_OWNER"
	CodeUnsafeRecipient Code = "UNSAFE_RECIPIENT"
	CodePaused          Code = "PAUSED"
	CodeIndexOutOfRange Code = "INDEX_OUT_OF_RANGE"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:     http.StatusForbidden,
		Retryable:      false,
		PublicMessage:  "caller lacks the required capability",
		DetailsAllowed: false,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeUnknownProduct: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "product does not exist",
		DetailsAllowed: true,
	},
	CodeDuplicateProduct: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "product id already exists",
		DetailsAllowed: true,
	},
	CodeInvalidInventory: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "initial inventory exceeds total supply",
		DetailsAllowed: true,
	},
	CodeSupplyExceeded: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "operation would exceed total supply",
		DetailsAllowed: true,
	},
	CodeUnderflow: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "inventory cannot go below zero",
		DetailsAllowed: true,
	},
	CodeSoldOut: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "product is sold out",
		DetailsAllowed: true,
	},
	CodeZeroCycles: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "cycles must be at least 1",
		DetailsAllowed: true,
	},
	CodeInvalidCycleCount: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "non-subscription products allow exactly one cycle",
		DetailsAllowed: true,
	},
	CodeNotRenewable: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "product is not a subscription",
		DetailsAllowed: true,
	},
	CodeRenewalDisabled: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "renewals are disabled for this product",
		DetailsAllowed: true,
	},
	CodePaymentMismatch: {
		HTTPStatus:     http.StatusPaymentRequired,
		Retryable:      false,
		PublicMessage:  "authorized amount does not match the exact cost",
		DetailsAllowed: true,
	},
	CodePaymentFailed: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      true,
		PublicMessage:  "payment settlement failed",
		DetailsAllowed: true,
	},
	CodeUnknownLicense: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "license does not exist",
		DetailsAllowed: true,
	},
	CodeUnknownToken: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "token does not exist",
		DetailsAllowed: true,
	},
	CodeZeroAddress: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "zero address is not a valid account",
		DetailsAllowed: true,
	},
	CodeSelfApproval: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "cannot approve the token to its own owner",
		DetailsAllowed: true,
	},
	CodeNotOwner: {
		HTTPStatus:     http.StatusForbidden,
		Retryable:      false,
		PublicMessage:  "caller does not own the token",
		DetailsAllowed: true,
	},
	CodeUnsafeRecipient: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "recipient did not acknowledge receipt",
		DetailsAllowed: true,
	},
	CodePaused: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "ledger is paused",
		DetailsAllowed: false,
	},
	CodeIndexOutOfRange: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "index out of range",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
