package domain

import (
	"context"
	"errors"

	"gorm.io/datatypes"
)

type InitiateRequest struct {
	MemberID string `json:"member_id"`
	Purpose  string `json:"purpose"`
	Session  string `json:"session,omitempty"`
}

type InitiateResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AmountKobo       int64  `json:"amount_kobo"`
	// Existing is set when initiation returned an already-open attempt
	// instead of creating a new one.
	Existing bool `json:"existing,omitempty"`
}

// Report carries what a notification channel claims about a payment.
// Claims are advisory; the gateway confirmation governs the transition.
type Report struct {
	Status Status
	// Payload is the authenticated webhook body, kept for audit only.
	Payload datatypes.JSONMap
}

// Outcome is the result of one reconciliation pass.
type Outcome struct {
	Record *PaymentRecord
	// Indeterminate means the gateway could not be reached; the record is
	// still pending and the caller should retry later.
	Indeterminate bool
	// AlreadyFinal means the record was terminal before this call.
	AlreadyFinal bool
	// Won marks the call that performed the transition and owns issuance.
	Won bool
}

type Service interface {
	// Initiate mints a reference, persists a pending record and asks the
	// gateway for a redirect URL. Re-initiating while an open record exists
	// returns that record with ErrDuplicatePayment.
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error)

	// Reconcile decides the authoritative final state for a reference by
	// confirming with the gateway and applying a single compare-and-set.
	Reconcile(ctx context.Context, reference string, report Report, source Source) (Outcome, error)

	// Receipt returns the record only when verified; ErrNotYetVerified
	// otherwise.
	Receipt(ctx context.Context, reference string) (*PaymentRecord, error)

	// Override force-resolves a pending record through the same
	// compare-and-set, audited, on behalf of an operator.
	Override(ctx context.Context, reference string, to Status, reason string) (Outcome, error)
}

var (
	ErrNotFound         = errors.New("not_found")
	ErrInvalidMember    = errors.New("invalid_member")
	ErrInvalidPurpose   = errors.New("invalid_purpose")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrDuplicatePayment = errors.New("duplicate_payment")
	ErrReferenceExists  = errors.New("reference_exists")
	ErrStaleTransition  = errors.New("stale_transition")
	ErrAmountMismatch   = errors.New("amount_mismatch")
	ErrNotYetVerified   = errors.New("not_yet_verified")
)
