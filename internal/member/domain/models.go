package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Member struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	FullName      string       `gorm:"not null" json:"full_name"`
	Email         string       `gorm:"not null;uniqueIndex" json:"email"`
	MembershipNo  string       `gorm:"not null;uniqueIndex" json:"membership_no"`
	JoinedSession string       `gorm:"not null;default:''" json:"joined_session"`
	Status        string       `gorm:"not null;default:active" json:"status"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
