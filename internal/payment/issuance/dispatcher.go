// Package issuance fires the downstream effects of a payment first becoming
// verified: artifact rendering and delivery, exactly once per reference.
package issuance

import (
	"context"
	"fmt"
	"strings"
	"time"

	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	"github.com/brightmoja/memberpay/internal/observability/metrics"
	"github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/providers/email"
	"github.com/brightmoja/memberpay/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Trigger is invoked by the unique winner of the verify transition. It must
// never be called on a stale-transition result.
type Trigger interface {
	FirstVerified(ctx context.Context, record *domain.PaymentRecord)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	MemberRepo memberdomain.Repository
	PDF        pdf.Provider
	Email      email.Provider
	Metrics    *metrics.Metrics `optional:"true"`
}

type Dispatcher struct {
	db         *gorm.DB
	log        *zap.Logger
	memberRepo memberdomain.Repository
	pdf        pdf.Provider
	email      email.Provider
	metrics    *metrics.Metrics
}

func NewDispatcher(p Params) Trigger {
	return &Dispatcher{
		db:         p.DB,
		log:        p.Log.Named("payment.issuance"),
		memberRepo: p.MemberRepo,
		pdf:        p.PDF,
		email:      p.Email,
		metrics:    p.Metrics,
	}
}

// FirstVerified renders and delivers the artifact for the record's purpose.
// Failures are logged for operator follow-up; the verified state already
// committed and is never rolled back from here.
func (d *Dispatcher) FirstVerified(ctx context.Context, record *domain.PaymentRecord) {
	if record == nil || record.Status != domain.StatusVerified {
		return
	}

	log := d.log.With(
		zap.String("reference", record.Reference),
		zap.String("purpose", string(record.Purpose)),
	)

	member, err := d.memberRepo.FindByID(ctx, d.db, record.MemberID)
	if err != nil || member == nil {
		log.Error("issuance could not load member", zap.Error(err))
		return
	}

	d.metrics.RecordIssuanceFired(ctx, string(record.Purpose))

	switch record.Purpose {
	case domain.PurposeMembershipFee:
		d.issueCredential(ctx, log, record, member)
	case domain.PurposeSessionDues:
		d.issueReceipt(ctx, log, record, member)
	default:
		log.Warn("no issuance behavior for purpose")
	}
}

func (d *Dispatcher) issueCredential(ctx context.Context, log *zap.Logger, record *domain.PaymentRecord, member *memberdomain.Member) {
	artifact, err := d.pdf.GenerateMembershipCredential(ctx, pdf.CredentialData{
		MemberName:   member.FullName,
		MembershipNo: member.MembershipNo,
		Reference:    record.Reference,
		IssuedAt:     issuedAt(record),
	})
	if err != nil {
		log.Error("render membership credential", zap.Error(err))
		return
	}

	var attachments []email.Attachment
	if artifact != nil {
		attachments = append(attachments, email.Attachment{
			Filename: "membership-" + member.MembershipNo + ".pdf",
			Content:  artifact,
		})
	}
	if err := d.email.Send(ctx, []string{member.Email},
		"Your membership is confirmed",
		fmt.Sprintf("<p>Dear %s,</p><p>Your membership fee payment (reference %s) has been confirmed. Your membership credential is attached.</p>",
			member.FullName, record.Reference),
		attachments...,
	); err != nil {
		log.Error("deliver membership credential", zap.Error(err))
		return
	}

	log.Info("membership credential issued")
}

func (d *Dispatcher) issueReceipt(ctx context.Context, log *zap.Logger, record *domain.PaymentRecord, member *memberdomain.Member) {
	artifact, err := d.pdf.GenerateDuesReceipt(ctx, pdf.ReceiptData{
		Reference:    record.Reference,
		MemberName:   member.FullName,
		MembershipNo: member.MembershipNo,
		Session:      record.Session,
		Amount:       FormatKobo(record.AmountKobo),
		PaidAt:       issuedAt(record),
		PaidVia:      string(record.VerifiedVia),
	})
	if err != nil {
		log.Error("render dues receipt", zap.Error(err))
		return
	}

	var attachments []email.Attachment
	if artifact != nil {
		attachments = append(attachments, email.Attachment{
			Filename: "receipt-" + record.Reference + ".pdf",
			Content:  artifact,
		})
	}
	if err := d.email.Send(ctx, []string{member.Email},
		"Dues receipt for "+record.Session,
		fmt.Sprintf("<p>Dear %s,</p><p>Your dues payment of %s for session %s (reference %s) has been confirmed. Your receipt is attached.</p>",
			member.FullName, FormatKobo(record.AmountKobo), record.Session, record.Reference),
		attachments...,
	); err != nil {
		log.Error("deliver dues receipt", zap.Error(err))
		return
	}

	log.Info("dues receipt issued")
}

func issuedAt(record *domain.PaymentRecord) string {
	at := time.Now().UTC()
	if record.VerifiedAt != nil {
		at = record.VerifiedAt.UTC()
	}
	return at.Format("2006-01-02")
}

// FormatKobo renders a minor-unit amount as naira for display.
func FormatKobo(amount int64) string {
	naira := amount / 100
	kobo := amount % 100
	return fmt.Sprintf("NGN %s.%02d", groupThousands(naira), kobo)
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, ",")
}
