package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a payment attempt. Pending is the only
// non-terminal state; verified and failed are final.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusVerified, StatusFailed:
		return true
	default:
		return false
	}
}

// Purpose tags what a payment attempt is for.
type Purpose string

const (
	// PurposeMembershipFee is the one-time joining fee.
	PurposeMembershipFee Purpose = "membership_fee"
	// PurposeSessionDues recurs once per academic session.
	PurposeSessionDues Purpose = "session_dues"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeMembershipFee, PurposeSessionDues:
		return true
	default:
		return false
	}
}

// Recurring reports whether the purpose is keyed by academic session.
func (p Purpose) Recurring() bool {
	return p == PurposeSessionDues
}

// Source identifies which channel drove a state transition.
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceRedirect Source = "redirect"
	SourceAdmin    Source = "admin"
)

// PaymentRecord is the authoritative unit of work for one payment attempt.
// The reference is immutable and never reused; a failed attempt requires a
// fresh record.
type PaymentRecord struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	Reference      string            `gorm:"not null;uniqueIndex" json:"reference"`
	MemberID       snowflake.ID      `gorm:"not null;index" json:"member_id"`
	Purpose        Purpose           `gorm:"not null" json:"purpose"`
	Session        string            `gorm:"not null;default:''" json:"session"`
	AmountKobo     int64             `gorm:"not null" json:"amount_kobo"`
	Status         Status            `gorm:"not null;default:pending" json:"status"`
	VerifiedAt     *time.Time        `json:"verified_at,omitempty"`
	VerifiedVia    Source            `gorm:"not null;default:''" json:"verified_via,omitempty"`
	FailureReason  string            `gorm:"not null;default:''" json:"failure_reason,omitempty"`
	GatewayPayload datatypes.JSONMap `gorm:"type:jsonb" json:"-"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
