package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/brightmoja/memberpay/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cacheTTL bounds staleness of the cached session label. The cache is a
// convenience for read-mostly traffic; every payment decision that matters
// goes to the store.
const cacheTTL = 60 * time.Second

var sessionPattern = regexp.MustCompile(`^\d{4}/\d{4}$`)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	mu       sync.Mutex
	cached   string
	cachedAt time.Time
}

func New(p Params) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("session.service"),
	}
}

func (s *Service) Current(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.cached != "" && time.Since(s.cachedAt) < cacheTTL {
		value := s.cached
		s.mu.Unlock()
		return value, nil
	}
	s.mu.Unlock()

	var setting domain.Setting
	err := s.db.WithContext(ctx).Raw(
		`SELECT key, value, updated_at FROM app_settings WHERE key = ?`,
		domain.CurrentSessionKey,
	).Scan(&setting).Error
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(setting.Value) == "" {
		return "", domain.ErrNotConfigured
	}

	s.mu.Lock()
	s.cached = setting.Value
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return setting.Value, nil
}

func (s *Service) Update(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if !sessionPattern.MatchString(value) {
		return domain.ErrInvalidSession
	}

	err := s.db.WithContext(ctx).Exec(
		`INSERT INTO app_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		domain.CurrentSessionKey,
		value,
		time.Now().UTC(),
	).Error
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = ""
	s.cachedAt = time.Time{}
	s.mu.Unlock()

	s.log.Info("current session updated", zap.String("session", value))
	return nil
}
