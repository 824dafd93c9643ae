package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, member *Member) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Member, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Member, error)
	// HasVerifiedPayment reports whether a verified record exists for the
	// member, purpose and session. Always a live query, never cached.
	HasVerifiedPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, purpose, session string) (bool, error)
}
