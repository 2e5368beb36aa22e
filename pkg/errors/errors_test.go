package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(CodeSoldOut, "product 7 is sold out")
	assert.Equal(t, CodeSoldOut, err.Code())
	assert.Equal(t, "product 7 is sold out", err.Message())
	assert.Equal(t, "SOLD_OUT: product 7 is sold out", err.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodePaymentFailed, cause, "settle payment")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodePaymentFailed, err.Code())
}

func TestAsUnwrapsNestedError(t *testing.T) {
	inner := New(CodeUnknownToken, "token 12 not found")
	wrapped := fmt.Errorf("custody check: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeUnknownToken, typed.Code())

	assert.Nil(t, As(errors.New("plain")))
	assert.Nil(t, As(nil))
}

func TestIsMatchesCode(t *testing.T) {
	err := New(CodePaused, "ledger is paused")
	assert.True(t, Is(err, CodePaused))
	assert.False(t, Is(err, CodeSoldOut))
	assert.False(t, Is(nil, CodePaused))
}

func TestMetadataForDomainCodes(t *testing.T) {
	cases := map[Code]int{
		CodeUnknownProduct:    http.StatusNotFound,
		CodeDuplicateProduct:  http.StatusConflict,
		CodeSoldOut:           http.StatusConflict,
		CodePaymentMismatch:   http.StatusPaymentRequired,
		CodePaymentFailed:     http.StatusBadGateway,
		CodePaused:            http.StatusServiceUnavailable,
		CodeZeroAddress:       http.StatusBadRequest,
		CodeUnauthorized:      http.StatusForbidden,
		CodeIndexOutOfRange:   http.StatusBadRequest,
		CodeSupplyExceeded:    http.StatusUnprocessableEntity,
		CodeInvalidCycleCount: http.StatusBadRequest,
	}
	for code, status := range cases {
		assert.Equal(t, status, MetadataFor(code).HTTPStatus, string(code))
	}

	// Unknown codes fall back to internal.
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Code("BOGUS")).HTTPStatus)
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"field": "cycles"})
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "cycles", details["field"])
}
