package service

import (
	"context"
	"errors"
	"strings"
	"time"

	auditdomain "github.com/brightmoja/memberpay/internal/audit/domain"
	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/feeschedule"
	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	obsmetrics "github.com/brightmoja/memberpay/internal/observability/metrics"
	"github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/payment/gateway"
	"github.com/brightmoja/memberpay/internal/payment/issuance"
	"github.com/brightmoja/memberpay/internal/payment/reference"
	sessiondomain "github.com/brightmoja/memberpay/internal/session/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// confirmTimeout bounds the gateway verify call made during reconciliation.
// It is applied on a detached context so a client abandoning the request
// cannot strand a record mid-commit.
const confirmTimeout = 15 * time.Second

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Repo       domain.Repository
	MemberRepo memberdomain.Repository
	Gateway    gateway.Client
	Refs       *reference.Generator
	Fees       *feeschedule.Holder
	Sessions   sessiondomain.Service
	Issuance   issuance.Trigger
	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	repo       domain.Repository
	memberRepo memberdomain.Repository
	gateway    gateway.Client
	refs       *reference.Generator
	fees       *feeschedule.Holder
	sessions   sessiondomain.Service
	issuance   issuance.Trigger
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		gateway:    p.Gateway,
		refs:       p.Refs,
		fees:       p.Fees,
		sessions:   p.Sessions,
		issuance:   p.Issuance,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req domain.InitiateRequest) (domain.InitiateResponse, error) {
	memberID, err := snowflake.ParseString(strings.TrimSpace(req.MemberID))
	if err != nil {
		return domain.InitiateResponse{}, domain.ErrInvalidMember
	}
	member, err := s.memberRepo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return domain.InitiateResponse{}, err
	}
	if member == nil {
		return domain.InitiateResponse{}, domain.ErrInvalidMember
	}

	purpose := domain.Purpose(strings.ToLower(strings.TrimSpace(req.Purpose)))
	if !purpose.Valid() {
		return domain.InitiateResponse{}, domain.ErrInvalidPurpose
	}

	session := strings.TrimSpace(req.Session)
	if purpose.Recurring() {
		if session == "" {
			session, err = s.sessions.Current(ctx)
			if err != nil {
				return domain.InitiateResponse{}, err
			}
		}
	} else {
		// One-time purposes are keyed without a session.
		session = ""
	}

	amount, ok := s.fees.Get().AmountFor(string(purpose))
	if !ok {
		return domain.InitiateResponse{}, domain.ErrInvalidPurpose
	}

	if open, err := s.repo.FindOpen(ctx, s.db, memberID, purpose, session); err != nil {
		return domain.InitiateResponse{}, err
	} else if open != nil {
		s.recordInitiation(ctx, purpose, "conflict")
		return s.existingResponse(open), domain.ErrDuplicatePayment
	}

	ref, err := s.refs.Generate(ctx, purpose, session)
	if err != nil {
		return domain.InitiateResponse{}, err
	}

	now := time.Now().UTC()
	record := &domain.PaymentRecord{
		ID:         s.genID.Generate(),
		Reference:  ref,
		MemberID:   memberID,
		Purpose:    purpose,
		Session:    session,
		AmountKobo: amount,
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// The record lands before the gateway hears the reference, so every
	// webhook that can ever arrive has a row to reconcile against. The
	// unique reference index is the final arbiter; losing that race just
	// means minting a fresh reference and inserting again.
	for attempt := 0; ; attempt++ {
		err := s.repo.Create(ctx, s.db, record)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicatePayment) {
			if open, ferr := s.repo.FindOpen(ctx, s.db, memberID, purpose, session); ferr == nil && open != nil {
				s.recordInitiation(ctx, purpose, "conflict")
				return s.existingResponse(open), domain.ErrDuplicatePayment
			}
			return domain.InitiateResponse{}, err
		}
		if errors.Is(err, domain.ErrReferenceExists) && attempt < 2 {
			s.log.Warn("payment reference collision, regenerating",
				zap.String("reference", ref))
			if ref, err = s.refs.Generate(ctx, purpose, session); err != nil {
				return domain.InitiateResponse{}, err
			}
			record.Reference = ref
			continue
		}
		return domain.InitiateResponse{}, err
	}

	init, err := s.gateway.Initialize(ctx, gateway.InitializeRequest{
		Reference:   ref,
		Email:       member.Email,
		AmountKobo:  amount,
		CallbackURL: s.callbackURL(ref),
	})
	if err != nil {
		// A record the gateway never accepted can only dangle, so it is
		// failed immediately rather than left pending.
		s.failInitiation(ctx, ref, err)
		s.recordInitiation(ctx, purpose, "gateway_error")
		return domain.InitiateResponse{}, err
	}

	payload := datatypes.JSONMap{
		"authorization_url": init.AuthorizationURL,
		"access_code":       init.AccessCode,
	}
	if err := s.repo.SaveGatewayPayload(ctx, s.db, ref, payload); err != nil {
		s.log.Warn("store authorization url failed",
			zap.String("reference", ref), zap.Error(err))
	}

	s.recordInitiation(ctx, purpose, "created")
	s.log.Info("payment initiated",
		zap.String("reference", ref),
		zap.String("member_id", memberID.String()),
		zap.String("purpose", string(purpose)),
		zap.Int64("amount_kobo", amount),
	)

	return domain.InitiateResponse{
		Reference:        ref,
		AuthorizationURL: init.AuthorizationURL,
		AmountKobo:       amount,
	}, nil
}

func (s *Service) existingResponse(open *domain.PaymentRecord) domain.InitiateResponse {
	resp := domain.InitiateResponse{
		Reference:  open.Reference,
		AmountKobo: open.AmountKobo,
		Existing:   true,
	}
	if url, ok := open.GatewayPayload["authorization_url"].(string); ok {
		resp.AuthorizationURL = url
	}
	return resp
}

func (s *Service) failInitiation(ctx context.Context, ref string, cause error) {
	reason := "gateway_rejected"
	if errors.Is(cause, gateway.ErrUnavailable) {
		reason = "gateway_unavailable"
	}
	commitCtx := context.WithoutCancel(ctx)
	if _, err := s.repo.Transition(commitCtx, s.db, ref, domain.StatusPending, domain.StatusFailed, domain.TransitionMeta{
		FailureReason: reason,
	}); err != nil && !errors.Is(err, domain.ErrStaleTransition) {
		s.log.Error("mark initiation failed",
			zap.String("reference", ref), zap.Error(err))
	}
}

func (s *Service) Reconcile(ctx context.Context, ref string, report domain.Report, source domain.Source) (domain.Outcome, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Outcome{}, domain.ErrInvalidReference
	}

	record, err := s.repo.FindByReference(ctx, s.db, ref)
	if err != nil {
		return domain.Outcome{}, err
	}
	if record == nil {
		return domain.Outcome{}, domain.ErrNotFound
	}
	if record.Status.Terminal() {
		s.recordOutcome(ctx, source, "already_final")
		return domain.Outcome{Record: record, AlreadyFinal: true}, nil
	}

	// Confirmation and the commit both run on a detached context: once a
	// notification arrives, losing the client must not lose the transition.
	commitCtx := context.WithoutCancel(ctx)
	confirmCtx, cancel := context.WithTimeout(commitCtx, confirmTimeout)
	defer cancel()

	conf, err := s.gateway.Confirm(confirmCtx, ref)
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) || errors.Is(err, gateway.ErrNotConfigured) {
			s.recordOutcome(ctx, source, "indeterminate")
			return domain.Outcome{Record: record, Indeterminate: true}, nil
		}
		// The provider answered but would not confirm the reference. The
		// record stays pending; retrying is the only safe move.
		s.log.Warn("gateway refused confirmation",
			zap.String("reference", ref), zap.Error(err))
		s.recordOutcome(ctx, source, "indeterminate")
		return domain.Outcome{Record: record, Indeterminate: true}, nil
	}

	if report.Status != "" && report.Status.Valid() {
		if (report.Status == domain.StatusVerified) != (conf.Status == gateway.ConfirmSuccess) {
			s.log.Warn("reported status disagrees with gateway",
				zap.String("reference", ref),
				zap.String("reported", string(report.Status)),
				zap.String("confirmed", string(conf.Status)),
			)
		}
	}

	switch conf.Status {
	case gateway.ConfirmSuccess:
		if conf.AmountKobo != record.AmountKobo {
			return s.failAmountMismatch(ctx, commitCtx, record, conf, source, report)
		}
		return s.commitVerified(ctx, commitCtx, record, conf, source, report)
	case gateway.ConfirmFailed:
		return s.commitFailed(ctx, commitCtx, record, conf, source, report)
	default:
		s.recordOutcome(ctx, source, "still_pending")
		return domain.Outcome{Record: record}, nil
	}
}

func (s *Service) commitVerified(ctx, commitCtx context.Context, record *domain.PaymentRecord, conf gateway.Confirmation, source domain.Source, report domain.Report) (domain.Outcome, error) {
	now := time.Now().UTC()
	meta := domain.TransitionMeta{
		Source:         source,
		VerifiedAt:     &now,
		GatewayPayload: mergePayload(report.Payload, conf),
	}
	updated, err := s.repo.Transition(commitCtx, s.db, record.Reference, domain.StatusPending, domain.StatusVerified, meta)
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			s.recordOutcome(ctx, source, "already_final")
			return domain.Outcome{Record: updated, AlreadyFinal: true}, nil
		}
		return domain.Outcome{}, err
	}

	s.recordOutcome(ctx, source, "verified")
	s.log.Info("payment verified",
		zap.String("reference", record.Reference),
		zap.String("source", string(source)),
		zap.Int64("amount_kobo", record.AmountKobo),
	)

	// Only the winning transition reaches this line, so issuance fires
	// exactly once per record.
	s.issuance.FirstVerified(commitCtx, updated)

	return domain.Outcome{Record: updated, Won: true}, nil
}

func (s *Service) commitFailed(ctx, commitCtx context.Context, record *domain.PaymentRecord, conf gateway.Confirmation, source domain.Source, report domain.Report) (domain.Outcome, error) {
	meta := domain.TransitionMeta{
		Source:         source,
		FailureReason:  failureReason(conf.RawStatus),
		GatewayPayload: mergePayload(report.Payload, conf),
	}
	updated, err := s.repo.Transition(commitCtx, s.db, record.Reference, domain.StatusPending, domain.StatusFailed, meta)
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			s.recordOutcome(ctx, source, "already_final")
			return domain.Outcome{Record: updated, AlreadyFinal: true}, nil
		}
		return domain.Outcome{}, err
	}

	s.recordOutcome(ctx, source, "failed")
	s.log.Info("payment failed",
		zap.String("reference", record.Reference),
		zap.String("source", string(source)),
		zap.String("reason", meta.FailureReason),
	)
	return domain.Outcome{Record: updated, Won: true}, nil
}

func (s *Service) failAmountMismatch(ctx, commitCtx context.Context, record *domain.PaymentRecord, conf gateway.Confirmation, source domain.Source, report domain.Report) (domain.Outcome, error) {
	meta := domain.TransitionMeta{
		Source:         source,
		FailureReason:  "amount_mismatch",
		GatewayPayload: mergePayload(report.Payload, conf),
	}
	updated, err := s.repo.Transition(commitCtx, s.db, record.Reference, domain.StatusPending, domain.StatusFailed, meta)
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			s.recordOutcome(ctx, source, "already_final")
			return domain.Outcome{Record: updated, AlreadyFinal: true}, nil
		}
		return domain.Outcome{}, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordAmountMismatch(ctx, string(record.Purpose))
	}
	s.recordOutcome(ctx, source, "amount_mismatch")
	s.log.Error("amount mismatch",
		zap.String("reference", record.Reference),
		zap.Int64("expected_kobo", record.AmountKobo),
		zap.Int64("settled_kobo", conf.AmountKobo),
	)
	if err := s.auditSvc.Record(commitCtx, "payment.amount_mismatch", record.Reference, map[string]any{
		"expected_kobo": record.AmountKobo,
		"settled_kobo":  conf.AmountKobo,
		"source":        string(source),
	}); err != nil {
		s.log.Warn("audit amount mismatch", zap.Error(err))
	}

	return domain.Outcome{Record: updated, Won: true}, domain.ErrAmountMismatch
}

func (s *Service) Receipt(ctx context.Context, ref string) (*domain.PaymentRecord, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, domain.ErrInvalidReference
	}
	record, err := s.repo.FindByReference(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	if record.Status != domain.StatusVerified {
		return nil, domain.ErrNotYetVerified
	}
	return record, nil
}

func (s *Service) Override(ctx context.Context, ref string, to domain.Status, reason string) (domain.Outcome, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Outcome{}, domain.ErrInvalidReference
	}
	if !to.Valid() || !to.Terminal() {
		return domain.Outcome{}, domain.ErrInvalidStatus
	}

	record, err := s.repo.FindByReference(ctx, s.db, ref)
	if err != nil {
		return domain.Outcome{}, err
	}
	if record == nil {
		return domain.Outcome{}, domain.ErrNotFound
	}
	if record.Status.Terminal() {
		return domain.Outcome{Record: record, AlreadyFinal: true}, nil
	}

	commitCtx := context.WithoutCancel(ctx)
	meta := domain.TransitionMeta{Source: domain.SourceAdmin}
	if to == domain.StatusVerified {
		now := time.Now().UTC()
		meta.VerifiedAt = &now
	} else {
		meta.FailureReason = failureReason(reason)
	}

	updated, err := s.repo.Transition(commitCtx, s.db, ref, domain.StatusPending, to, meta)
	if err != nil {
		if errors.Is(err, domain.ErrStaleTransition) {
			return domain.Outcome{Record: updated, AlreadyFinal: true}, nil
		}
		return domain.Outcome{}, err
	}

	if err := s.auditSvc.Record(commitCtx, "payment.override", ref, map[string]any{
		"from":   string(domain.StatusPending),
		"to":     string(to),
		"reason": reason,
	}); err != nil {
		s.log.Warn("audit override", zap.Error(err))
	}

	s.log.Info("payment overridden",
		zap.String("reference", ref),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	)

	if to == domain.StatusVerified {
		s.issuance.FirstVerified(commitCtx, updated)
	}
	return domain.Outcome{Record: updated, Won: true}, nil
}

func (s *Service) callbackURL(ref string) string {
	base := strings.TrimRight(s.cfg.Gateway.CallbackBaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/payments/callback?reference=" + ref
}

func (s *Service) recordInitiation(ctx context.Context, purpose domain.Purpose, result string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordInitiation(ctx, string(purpose), result)
	}
}

func (s *Service) recordOutcome(ctx context.Context, source domain.Source, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordReconcileOutcome(ctx, string(source), outcome)
	}
}

func mergePayload(reported datatypes.JSONMap, conf gateway.Confirmation) datatypes.JSONMap {
	out := datatypes.JSONMap{
		"gateway_status": conf.RawStatus,
		"settled_kobo":   conf.AmountKobo,
	}
	for k, v := range reported {
		out[k] = v
	}
	return out
}

func failureReason(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "failed"
	}
	return raw
}
