package repository

import (
	"context"
	"time"

	"github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/pkg/db"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, conn *gorm.DB, record *domain.PaymentRecord) error {
	// Insert only when no open record exists for the triple. The partial
	// unique index backs this up under concurrent initiation.
	res := conn.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, reference, member_id, purpose, session, amount_kobo, status,
			verified_via, failure_reason, gateway_payload, created_at, updated_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM payment_records
			WHERE member_id = ? AND purpose = ? AND session = ?
			  AND status IN ('pending', 'verified')
		)`,
		record.ID,
		record.Reference,
		record.MemberID,
		record.Purpose,
		record.Session,
		record.AmountKobo,
		record.Status,
		record.VerifiedVia,
		record.FailureReason,
		record.GatewayPayload,
		record.CreatedAt,
		record.UpdatedAt,
		record.MemberID,
		record.Purpose,
		record.Session,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return r.classifyConflict(ctx, conn, record)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrDuplicatePayment
	}
	return nil
}

func (r *repo) classifyConflict(ctx context.Context, conn *gorm.DB, record *domain.PaymentRecord) error {
	exists, err := r.ReferenceExists(ctx, conn, record.Reference)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrReferenceExists
	}
	return domain.ErrDuplicatePayment
}

func (r *repo) FindByReference(ctx context.Context, conn *gorm.DB, reference string) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT id, reference, member_id, purpose, session, amount_kobo, status,
			verified_at, verified_via, failure_reason, gateway_payload, created_at, updated_at
		 FROM payment_records
		 WHERE reference = ?
		 LIMIT 1`,
		reference,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindOpen(ctx context.Context, conn *gorm.DB, memberID snowflake.ID, purpose domain.Purpose, session string) (*domain.PaymentRecord, error) {
	var record domain.PaymentRecord
	err := conn.WithContext(ctx).Raw(
		`SELECT id, reference, member_id, purpose, session, amount_kobo, status,
			verified_at, verified_via, failure_reason, gateway_payload, created_at, updated_at
		 FROM payment_records
		 WHERE member_id = ? AND purpose = ? AND session = ?
		   AND status IN ('pending', 'verified')
		 LIMIT 1`,
		memberID,
		purpose,
		session,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ReferenceExists(ctx context.Context, conn *gorm.DB, reference string) (bool, error) {
	var count int64
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payment_records WHERE reference = ?`,
		reference,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) SaveGatewayPayload(ctx context.Context, conn *gorm.DB, reference string, payload datatypes.JSONMap) error {
	if len(payload) == 0 {
		return nil
	}
	res := conn.WithContext(ctx).Exec(
		`UPDATE payment_records SET gateway_payload = ?, updated_at = ? WHERE reference = ?`,
		payload,
		time.Now().UTC(),
		reference,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) Transition(ctx context.Context, conn *gorm.DB, reference string, from, to domain.Status, meta domain.TransitionMeta) (*domain.PaymentRecord, error) {
	now := time.Now().UTC()

	// The WHERE status guard makes this the single atomic point: of any
	// number of concurrent callers, exactly one row update wins.
	res := conn.WithContext(ctx).Exec(
		`UPDATE payment_records
		 SET status = ?,
		     verified_at = COALESCE(?, verified_at),
		     verified_via = ?,
		     failure_reason = ?,
		     gateway_payload = COALESCE(?, gateway_payload),
		     updated_at = ?
		 WHERE reference = ? AND status = ?`,
		to,
		meta.VerifiedAt,
		meta.Source,
		meta.FailureReason,
		meta.GatewayPayload,
		now,
		reference,
		from,
	)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.FindByReference(ctx, conn, reference)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrNotFound
		}
		return current, domain.ErrStaleTransition
	}

	return r.FindByReference(ctx, conn, reference)
}
