package repository

import (
	"context"

	"github.com/brightmoja/memberpay/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (id, actor, action, target, metadata, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.Target,
		entry.Metadata,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListByTarget(ctx context.Context, db *gorm.DB, target string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []domain.AuditLog
	err := db.WithContext(ctx).Raw(
		`SELECT id, actor, action, target, metadata, ip_address, user_agent, created_at
		 FROM audit_logs WHERE target = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		target,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
