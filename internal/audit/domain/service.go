package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Actor     string            `gorm:"not null;default:''" json:"actor"`
	Action    string            `gorm:"not null" json:"action"`
	Target    string            `gorm:"not null;default:'';index" json:"target"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	IPAddress string            `gorm:"not null;default:''" json:"ip_address,omitempty"`
	UserAgent string            `gorm:"not null;default:''" json:"user_agent,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByTarget(ctx context.Context, db *gorm.DB, target string, limit int) ([]AuditLog, error)
}

type Service interface {
	// Record writes one audit entry. Actor and request metadata are taken
	// from the context when present.
	Record(ctx context.Context, action, target string, metadata map[string]any) error
	ListByTarget(ctx context.Context, target string, limit int) ([]AuditLog, error)
}

var ErrInvalidAction = errors.New("invalid_action")
