package server

import (
	"context"
	"net/http"
	"time"

	auditdomain "github.com/brightmoja/memberpay/internal/audit/domain"
	"github.com/brightmoja/memberpay/internal/config"
	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	"github.com/brightmoja/memberpay/internal/observability"
	obsmiddleware "github.com/brightmoja/memberpay/internal/observability/logger"
	obsmetrics "github.com/brightmoja/memberpay/internal/observability/metrics"
	obstracing "github.com/brightmoja/memberpay/internal/observability/tracing"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/payment/webhook"
	"github.com/brightmoja/memberpay/internal/providers/pdf"
	"github.com/brightmoja/memberpay/internal/ratelimit"
	sessiondomain "github.com/brightmoja/memberpay/internal/session/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	paymentSvc    paymentdomain.Service
	memberSvc     memberdomain.Service
	sessionSvc    sessiondomain.Service
	auditSvc      auditdomain.Service
	authenticator *webhook.Authenticator
	limiter       *ratelimit.Limiter
	pdfProvider   pdf.Provider
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	PaymentSvc    paymentdomain.Service
	MemberSvc     memberdomain.Service
	SessionSvc    sessiondomain.Service
	AuditSvc      auditdomain.Service
	Authenticator *webhook.Authenticator
	Limiter       *ratelimit.Limiter
	PDFProvider   pdf.Provider
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		paymentSvc:    p.PaymentSvc,
		memberSvc:     p.MemberSvc,
		sessionSvc:    p.SessionSvc,
		auditSvc:      p.AuditSvc,
		authenticator: p.Authenticator,
		limiter:       p.Limiter,
		pdfProvider:   p.PDFProvider,
		obsMetrics:    p.ObsMetrics,
	}

	s.registerAPIRoutes()
	s.registerAdminRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Members --------
	api.POST("/members", s.CreateMember)
	api.GET("/members/:id", s.GetMemberByID)
	api.GET("/members/:id/eligibility", s.GetMemberEligibility)

	// -------- Payments --------
	api.POST("/payments/initiate", s.InitiateRateLimit(), s.InitiatePayment)
	api.GET("/payments/verify", s.VerifyPayment)
	api.POST("/payments/webhook", s.WebhookRateLimit(), s.HandlePaymentWebhook)
	api.GET("/payments/:reference", s.GetPaymentByReference)
	api.GET("/payments/:reference/receipt", s.GetPaymentReceipt)

	api.GET("/session", s.GetCurrentSession)
}

func (s *Server) registerAdminRoutes() {
	// Without an operator token hash the whole surface stays unrouted.
	if s.cfg.AdminTokenHash == "" {
		return
	}

	admin := s.engine.Group("/admin", s.AdminTokenRequired())

	admin.POST("/payments/:reference/override", s.OverridePayment)
	admin.PUT("/session", s.UpdateCurrentSession)
	admin.GET("/audit-logs", s.ListAuditLogs)
}
