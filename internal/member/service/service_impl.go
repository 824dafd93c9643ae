package service

import (
	"context"
	"strings"
	"time"

	"github.com/brightmoja/memberpay/internal/member/domain"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	sessiondomain "github.com/brightmoja/memberpay/internal/session/domain"
	"github.com/brightmoja/memberpay/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Sessions sessiondomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	sessions sessiondomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("member.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		sessions: p.Sessions,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMemberRequest) (domain.Member, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return domain.Member{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Member{}, domain.ErrInvalidEmail
	}

	membershipNo := strings.TrimSpace(req.MembershipNo)
	if membershipNo == "" {
		return domain.Member{}, domain.ErrInvalidMembershipNo
	}

	joined := strings.TrimSpace(req.JoinedSession)
	if joined == "" {
		current, err := s.sessions.Current(ctx)
		if err != nil {
			return domain.Member{}, err
		}
		joined = current
	}

	now := time.Now().UTC()
	member := domain.Member{
		ID:            s.genID.Generate(),
		FullName:      name,
		Email:         email,
		MembershipNo:  membershipNo,
		JoinedSession: joined,
		Status:        domain.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Member{}, domain.ErrDuplicateMember
		}
		return domain.Member{}, err
	}

	return member, nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetMemberRequest) (domain.Member, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return domain.Member{}, domain.ErrInvalidID
	}

	member, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Member{}, err
	}
	if member == nil {
		return domain.Member{}, domain.ErrNotFound
	}
	return *member, nil
}

func (s *Service) Eligibility(ctx context.Context, rawID, session string) (domain.Eligibility, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return domain.Eligibility{}, domain.ErrInvalidID
	}

	member, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Eligibility{}, err
	}
	if member == nil {
		return domain.Eligibility{}, domain.ErrNotFound
	}

	session = strings.TrimSpace(session)
	if session == "" {
		current, err := s.sessions.Current(ctx)
		if err != nil {
			return domain.Eligibility{}, err
		}
		session = current
	}

	duesPaid, err := s.repo.HasVerifiedPayment(ctx, s.db, id, string(paymentdomain.PurposeSessionDues), session)
	if err != nil {
		return domain.Eligibility{}, err
	}

	// The membership fee is a one-time payment recorded without a session key.
	membershipPaid, err := s.repo.HasVerifiedPayment(ctx, s.db, id, string(paymentdomain.PurposeMembershipFee), "")
	if err != nil {
		return domain.Eligibility{}, err
	}

	return domain.Eligibility{
		MemberID:       id.String(),
		Session:        session,
		DuesPaid:       duesPaid,
		MembershipPaid: membershipPaid,
	}, nil
}
