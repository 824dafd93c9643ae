package domain

import (
	"context"
	"errors"
	"time"
)

// Setting is a keyed application setting row.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key" json:"key"`
	Value     string    `gorm:"not null;default:''" json:"value"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Setting) TableName() string { return "app_settings" }

// CurrentSessionKey names the academic session setting, e.g. "2025/2026".
const CurrentSessionKey = "current_session"

type Service interface {
	// Current returns the active academic session label. The value may be
	// served from a short-lived cache; it is never used for payment-state
	// decisions.
	Current(ctx context.Context) (string, error)
	// Update stores a new session label and invalidates the cache.
	Update(ctx context.Context, value string) error
}

var (
	ErrInvalidSession = errors.New("invalid_session")
	ErrNotConfigured  = errors.New("session_not_configured")
)
