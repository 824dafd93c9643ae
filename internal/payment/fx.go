package payment

import (
	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/payment/gateway"
	"github.com/brightmoja/memberpay/internal/payment/gateway/paystack"
	"github.com/brightmoja/memberpay/internal/payment/issuance"
	"github.com/brightmoja/memberpay/internal/payment/reference"
	"github.com/brightmoja/memberpay/internal/payment/repository"
	paymentservice "github.com/brightmoja/memberpay/internal/payment/service"
	"github.com/brightmoja/memberpay/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(reference.NewGenerator),
	fx.Provide(func(cfg config.Config, log *zap.Logger) gateway.Client {
		return paystack.New(cfg.Gateway, log)
	}),
	fx.Provide(func(cfg config.Config) *webhook.Authenticator {
		return webhook.NewAuthenticator(cfg.Gateway.WebhookSecret)
	}),
	fx.Provide(issuance.NewDispatcher),
	fx.Provide(paymentservice.New),
)
