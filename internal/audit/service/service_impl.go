package service

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/brightmoja/memberpay/internal/audit/domain"
	"github.com/brightmoja/memberpay/internal/requestctx"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Record(ctx context.Context, action, target string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actor := requestctx.ActorFromContext(ctx)
	if actor == "" {
		actor = "system"
	}

	payload := map[string]any{}
	for key, value := range metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := requestctx.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := auditdomain.AuditLog{
		ID:        s.genID.Generate(),
		Actor:     actor,
		Action:    action,
		Target:    strings.TrimSpace(target),
		Metadata:  datatypes.JSONMap(payload),
		IPAddress: requestctx.IPAddressFromContext(ctx),
		UserAgent: requestctx.UserAgentFromContext(ctx),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListByTarget(ctx context.Context, target string, limit int) ([]auditdomain.AuditLog, error) {
	return s.repo.ListByTarget(ctx, s.db, strings.TrimSpace(target), limit)
}
