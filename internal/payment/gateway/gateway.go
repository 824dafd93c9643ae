// Package gateway defines the contract the reconciliation engine consumes
// from the external payment provider.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable covers network failures, timeouts and provider 5xx.
	// It means "indeterminate, retry later", never "payment failed".
	ErrUnavailable = errors.New("gateway_unavailable")
	// ErrRejected covers definitive provider refusals such as bad
	// credentials or an invalid request.
	ErrRejected      = errors.New("gateway_rejected")
	ErrNotConfigured = errors.New("gateway_not_configured")
)

type InitializeRequest struct {
	Reference   string
	Email       string
	AmountKobo  int64
	CallbackURL string
}

type InitializeResponse struct {
	AuthorizationURL string
	AccessCode       string
}

// ConfirmStatus is the gateway's authoritative view of a transaction.
type ConfirmStatus string

const (
	ConfirmSuccess ConfirmStatus = "success"
	ConfirmFailed  ConfirmStatus = "failed"
	// ConfirmPending covers transactions the provider has not settled yet.
	ConfirmPending ConfirmStatus = "pending"
)

type Confirmation struct {
	Status     ConfirmStatus
	AmountKobo int64
	RawStatus  string
}

type Client interface {
	// Initialize registers the transaction and returns the URL the member
	// is redirected to.
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResponse, error)
	// Confirm queries the provider for the authoritative transaction state.
	Confirm(ctx context.Context, reference string) (Confirmation, error)
}
