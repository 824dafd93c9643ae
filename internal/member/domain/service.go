package domain

import (
	"context"
	"errors"
)

type CreateMemberRequest struct {
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	MembershipNo  string `json:"membership_no"`
	JoinedSession string `json:"joined_session"`
}

type GetMemberRequest struct {
	ID string
}

// Eligibility is the derived standing of a member for one session.
type Eligibility struct {
	MemberID       string `json:"member_id"`
	Session        string `json:"session"`
	DuesPaid       bool   `json:"dues_paid"`
	MembershipPaid bool   `json:"membership_paid"`
}

type Service interface {
	Create(context.Context, CreateMemberRequest) (Member, error)
	GetByID(context.Context, GetMemberRequest) (Member, error)
	// Eligibility reports whether the member holds verified payments for the
	// given session, derived by query at call time.
	Eligibility(ctx context.Context, id, session string) (Eligibility, error)
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidMembershipNo = errors.New("invalid_membership_no")
	ErrInvalidID           = errors.New("invalid_id")
	ErrDuplicateMember     = errors.New("duplicate_member")
	ErrNotFound            = errors.New("not_found")
)
