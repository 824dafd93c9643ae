package feeschedule

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Schedule maps a payment purpose to the amount charged for it, in the
// smallest currency unit. Amounts are fixed per purpose; session dues apply
// per academic session.
type Schedule struct {
	Currency string    `mapstructure:"currency"`
	Fees     []FeeLine `mapstructure:"fees"`
}

type FeeLine struct {
	Purpose    string `mapstructure:"purpose"`
	AmountKobo int64  `mapstructure:"amountKobo"`
}

func DefaultSchedule() Schedule {
	return Schedule{
		Currency: "NGN",
		Fees: []FeeLine{
			{Purpose: "membership_fee", AmountKobo: 1_000_000},
			{Purpose: "session_dues", AmountKobo: 500_000},
		},
	}
}

// AmountFor returns the configured amount for a purpose.
func (s Schedule) AmountFor(purpose string) (int64, bool) {
	for _, line := range s.Fees {
		if strings.EqualFold(line.Purpose, purpose) {
			return line.AmountKobo, true
		}
	}
	return 0, false
}

// Holder exposes the active schedule and swaps it atomically on reload.
type Holder struct {
	current atomic.Value // holds Schedule
}

func NewHolder(log *zap.Logger) (*Holder, error) {
	log = log.Named("feeschedule")

	v := viper.New()

	v.SetConfigName("fees")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/memberpay/config") // Volume-mounted config
	v.AddConfigPath("/etc/memberpay")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("MEMBERPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSchedule()
		v.SetDefault("schedule.currency", defaults.Currency)
		v.SetDefault("schedule.fees", defaults.Fees)
	}

	var sched Schedule
	if err := v.UnmarshalKey("schedule", &sched); err != nil {
		return nil, err
	}
	if err := validateSchedule(sched); err != nil {
		return nil, err
	}

	holder := &Holder{}
	holder.current.Store(sched)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated Schedule
		if err := v.UnmarshalKey("schedule", &updated); err != nil {
			log.Error("fee schedule reload failed", zap.Error(err))
			return
		}
		if err := validateSchedule(updated); err != nil {
			log.Warn("fee schedule change ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("fee schedule reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

// NewStaticHolder wraps a fixed schedule with no file watching.
func NewStaticHolder(sched Schedule) *Holder {
	holder := &Holder{}
	holder.current.Store(sched)
	return holder
}

func (h *Holder) Get() Schedule {
	return h.current.Load().(Schedule)
}

func validateSchedule(sched Schedule) error {
	if strings.TrimSpace(sched.Currency) == "" {
		return errors.New("schedule.currency cannot be empty")
	}
	if len(sched.Fees) == 0 {
		return errors.New("schedule.fees cannot be empty")
	}
	for _, line := range sched.Fees {
		if strings.TrimSpace(line.Purpose) == "" {
			return errors.New("schedule.fees entries require a purpose")
		}
		if line.AmountKobo <= 0 {
			return fmt.Errorf("schedule fee for %s must be positive", line.Purpose)
		}
	}
	return nil
}
