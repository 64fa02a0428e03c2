package ledger

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInvalidType       = errors.New("unknown transaction type")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("user already has a wallet")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrIntentNotFound    = errors.New("payment intent not found")
	// ErrConflict means a concurrent update won the version check; the
	// caller retries the whole apply.
	ErrConflict         = errors.New("concurrent wallet update conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// HTTPStatus maps a ledger error to its HTTP-equivalent status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidType), errors.Is(err, ErrInsufficientFunds):
		return http.StatusBadRequest
	case errors.Is(err, ErrWalletNotFound), errors.Is(err, ErrIntentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrWalletExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
