package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransitionMeta carries verification metadata applied by a winning
// compare-and-set.
type TransitionMeta struct {
	Source         Source
	VerifiedAt     *time.Time
	FailureReason  string
	GatewayPayload datatypes.JSONMap
}

type Repository interface {
	// Create persists a new pending record. It fails with
	// ErrDuplicatePayment when a pending or verified record already exists
	// for (member, purpose, session), and with ErrReferenceExists when the
	// reference is taken.
	Create(ctx context.Context, db *gorm.DB, record *PaymentRecord) error

	FindByReference(ctx context.Context, db *gorm.DB, reference string) (*PaymentRecord, error)

	// FindOpen returns the pending or verified record for the triple, if any.
	FindOpen(ctx context.Context, db *gorm.DB, memberID snowflake.ID, purpose Purpose, session string) (*PaymentRecord, error)

	ReferenceExists(ctx context.Context, db *gorm.DB, reference string) (bool, error)

	// SaveGatewayPayload records gateway artifacts (authorization URL,
	// authenticated webhook body) for audit. It never touches status.
	SaveGatewayPayload(ctx context.Context, db *gorm.DB, reference string, payload datatypes.JSONMap) error

	// Transition is a single conditional UPDATE guarded on the current
	// status. Concurrent callers for the same reference see exactly one
	// success; the rest get ErrStaleTransition.
	Transition(ctx context.Context, db *gorm.DB, reference string, from, to Status, meta TransitionMeta) (*PaymentRecord, error)
}
