package repository

import (
	"context"
	"strings"

	"github.com/brightmoja/memberpay/internal/member/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO members (id, full_name, email, membership_no, joined_session, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.FullName,
		member.Email,
		member.MembershipNo,
		member.JoinedSession,
		member.Status,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, full_name, email, membership_no, joined_session, status, created_at, updated_at
		 FROM members WHERE id = ?`,
		id,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT id, full_name, email, membership_no, joined_session, status, created_at, updated_at
		 FROM members WHERE lower(email) = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) HasVerifiedPayment(ctx context.Context, db *gorm.DB, id snowflake.ID, purpose, session string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payment_records
		 WHERE member_id = ? AND purpose = ? AND session = ? AND status = 'verified'`,
		id,
		purpose,
		session,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
