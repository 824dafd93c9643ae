package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	auditdomain "github.com/brightmoja/memberpay/internal/audit/domain"
	"github.com/brightmoja/memberpay/internal/config"
	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	"github.com/brightmoja/memberpay/internal/observability"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/payment/webhook"
	"github.com/brightmoja/memberpay/internal/providers/pdf"
	"github.com/brightmoja/memberpay/internal/ratelimit"
	"github.com/brightmoja/memberpay/internal/server"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakePaymentSvc struct {
	initResp     paymentdomain.InitiateResponse
	initErr      error
	reconcileOut paymentdomain.Outcome
	reconcileErr error
	receiptRec   *paymentdomain.PaymentRecord
	receiptErr   error
	overrideOut  paymentdomain.Outcome
	overrideErr  error

	lastSource    paymentdomain.Source
	lastReference string
	reconciles    int
}

func (f *fakePaymentSvc) Initiate(context.Context, paymentdomain.InitiateRequest) (paymentdomain.InitiateResponse, error) {
	return f.initResp, f.initErr
}

func (f *fakePaymentSvc) Reconcile(_ context.Context, reference string, _ paymentdomain.Report, source paymentdomain.Source) (paymentdomain.Outcome, error) {
	f.reconciles++
	f.lastSource = source
	f.lastReference = reference
	return f.reconcileOut, f.reconcileErr
}

func (f *fakePaymentSvc) Receipt(context.Context, string) (*paymentdomain.PaymentRecord, error) {
	return f.receiptRec, f.receiptErr
}

func (f *fakePaymentSvc) Override(context.Context, string, paymentdomain.Status, string) (paymentdomain.Outcome, error) {
	return f.overrideOut, f.overrideErr
}

type fakeMemberSvc struct{}

func (fakeMemberSvc) Create(context.Context, memberdomain.CreateMemberRequest) (memberdomain.Member, error) {
	return memberdomain.Member{}, nil
}

func (fakeMemberSvc) GetByID(context.Context, memberdomain.GetMemberRequest) (memberdomain.Member, error) {
	return memberdomain.Member{FullName: "Ada Obi", MembershipNo: "BM-0042"}, nil
}

func (fakeMemberSvc) Eligibility(context.Context, string, string) (memberdomain.Eligibility, error) {
	return memberdomain.Eligibility{}, nil
}

type fakeSessionSvc struct{}

func (fakeSessionSvc) Current(context.Context) (string, error) { return "2025/2026", nil }
func (fakeSessionSvc) Update(context.Context, string) error    { return nil }

type fakeAuditSvc struct{}

func (fakeAuditSvc) Record(context.Context, string, string, map[string]any) error { return nil }
func (fakeAuditSvc) ListByTarget(context.Context, string, int) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

const webhookSecret = "whsec_test_secret"

type harness struct {
	engine *gin.Engine
	svc    *fakePaymentSvc
	auth   *webhook.Authenticator
}

func setupServer(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		HTTPAddr: ":0",
		Gateway:  config.GatewayConfig{WebhookSecret: webhookSecret},
		RateLimit: config.RateLimitConfig{
			InitiateRate: 1000, InitiateBurst: 1000,
			WebhookRate: 1000, WebhookBurst: 1000,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	svc := &fakePaymentSvc{}
	auth := webhook.NewAuthenticator(cfg.Gateway.WebhookSecret)
	engine := server.NewEngine(observability.Config{LogLevel: "info"})

	server.NewServer(server.ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		Log:           zap.NewNop(),
		PaymentSvc:    svc,
		MemberSvc:     fakeMemberSvc{},
		SessionSvc:    fakeSessionSvc{},
		AuditSvc:      fakeAuditSvc{},
		Authenticator: auth,
		Limiter:       ratelimit.NewLimiter(cfg, zap.NewNop()),
		PDFProvider:   &pdf.NoOpProvider{},
	})

	return &harness{engine: engine, svc: svc, auth: auth}
}

func (h *harness) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func pendingRecord(reference string) *paymentdomain.PaymentRecord {
	return &paymentdomain.PaymentRecord{
		Reference:  reference,
		Purpose:    paymentdomain.PurposeSessionDues,
		Session:    "2025/2026",
		AmountKobo: 500_000,
		Status:     paymentdomain.StatusPending,
	}
}

func verifiedRecord(reference string) *paymentdomain.PaymentRecord {
	now := time.Now().UTC()
	rec := pendingRecord(reference)
	rec.Status = paymentdomain.StatusVerified
	rec.VerifiedAt = &now
	rec.VerifiedVia = paymentdomain.SourceWebhook
	return rec
}

func webhookBody(reference, status string) []byte {
	body, _ := json.Marshal(map[string]any{
		"event": "charge.success",
		"data": map[string]any{
			"reference": reference,
			"status":    status,
			"amount":    500000,
		},
	})
	return body
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := setupServer(t, nil)
	body := webhookBody("MP-DUES-20252026-AAAA111111", "success")

	w := h.do(http.MethodPost, "/api/payments/webhook", body, map[string]string{
		webhook.SignatureHeader: strings.Repeat("ab", 64),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	if h.svc.reconciles != 0 {
		t.Fatal("unauthenticated payload must never reach reconciliation")
	}
}

func TestWebhookFailsClosedWithoutSecret(t *testing.T) {
	h := setupServer(t, func(cfg *config.Config) {
		cfg.Gateway.WebhookSecret = ""
	})
	body := webhookBody("MP-DUES-20252026-AAAA111111", "success")

	w := h.do(http.MethodPost, "/api/payments/webhook", body, map[string]string{
		webhook.SignatureHeader: strings.Repeat("ab", 64),
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with no secret configured, got %d", w.Code)
	}
	if h.svc.reconciles != 0 {
		t.Fatal("disabled webhook must never reach reconciliation")
	}
}

func TestWebhookAcknowledgesAuthenticatedDelivery(t *testing.T) {
	h := setupServer(t, nil)
	reference := "MP-DUES-20252026-AAAA111111"
	h.svc.reconcileOut = paymentdomain.Outcome{Record: verifiedRecord(reference), Won: true}

	body := webhookBody(reference, "success")
	w := h.do(http.MethodPost, "/api/payments/webhook", body, map[string]string{
		webhook.SignatureHeader: h.auth.Sign(body),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if h.svc.lastSource != paymentdomain.SourceWebhook {
		t.Fatalf("expected webhook source, got %s", h.svc.lastSource)
	}
	if h.svc.lastReference != reference {
		t.Fatalf("expected reference %q, got %q", reference, h.svc.lastReference)
	}
}

func TestWebhookAcknowledgesDuplicateDelivery(t *testing.T) {
	h := setupServer(t, nil)
	reference := "MP-DUES-20252026-AAAA111111"
	h.svc.reconcileOut = paymentdomain.Outcome{Record: verifiedRecord(reference), AlreadyFinal: true}

	body := webhookBody(reference, "success")
	w := h.do(http.MethodPost, "/api/payments/webhook", body, map[string]string{
		webhook.SignatureHeader: h.auth.Sign(body),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected duplicate delivery to be acknowledged, got %d", w.Code)
	}
}

func TestWebhookAcknowledgesUnknownReference(t *testing.T) {
	h := setupServer(t, nil)
	h.svc.reconcileErr = paymentdomain.ErrNotFound

	body := webhookBody("MP-DUES-20252026-NOPE000000", "success")
	w := h.do(http.MethodPost, "/api/payments/webhook", body, map[string]string{
		webhook.SignatureHeader: h.auth.Sign(body),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected unknown reference to be acknowledged, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "ignored" {
		t.Fatalf("expected ignored status, got %v", resp)
	}
}

func TestWebhookAcknowledgesAmountMismatch(t *testing.T) {
	h := setupServer(t, nil)
	reference := "MP-DUES-20252026-AAAA111111"
	failed := pendingRecord(reference)
	failed.Status = paymentdomain.StatusFailed
	failed.FailureReason = "amount_mismatch"
	h.svc.reconcileOut = paymentdomain.Outcome{Record: failed, Won: true}
	h.svc.reconcileErr = paymentdomain.ErrAmountMismatch

	body := webhookBody(reference, "success")
	w := h.do(http.MethodPost, "/api/payments/webhook", body, map[string]string{
		webhook.SignatureHeader: h.auth.Sign(body),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected mismatch delivery to be acknowledged, got %d", w.Code)
	}
}

func TestInitiateConflictExposesExistingAttempt(t *testing.T) {
	h := setupServer(t, nil)
	h.svc.initResp = paymentdomain.InitiateResponse{
		Reference:        "MP-DUES-20252026-AAAA111111",
		AuthorizationURL: "https://checkout.example/abc",
		AmountKobo:       500_000,
		Existing:         true,
	}
	h.svc.initErr = paymentdomain.ErrDuplicatePayment

	body, _ := json.Marshal(map[string]string{"member_id": "1", "purpose": "session_dues"})
	w := h.do(http.MethodPost, "/api/payments/initiate", body, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "MP-DUES-20252026-AAAA111111") {
		t.Fatalf("expected existing reference in body: %s", w.Body.String())
	}
}

func TestVerifyPendingSignalsRetry(t *testing.T) {
	h := setupServer(t, nil)
	reference := "MP-DUES-20252026-AAAA111111"
	h.svc.reconcileOut = paymentdomain.Outcome{Record: pendingRecord(reference), Indeterminate: true}

	w := h.do(http.MethodGet, "/api/payments/verify?reference="+reference, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["retry"] != true {
		t.Fatalf("expected retry hint, got %v", resp)
	}
	if h.svc.lastSource != paymentdomain.SourceRedirect {
		t.Fatalf("expected redirect source, got %s", h.svc.lastSource)
	}
}

func TestReceiptDistinguishesPendingFromMissing(t *testing.T) {
	h := setupServer(t, nil)

	h.svc.receiptErr = paymentdomain.ErrNotYetVerified
	w := h.do(http.MethodGet, "/api/payments/MP-DUES-20252026-AAAA111111/receipt", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending receipt, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not_yet_verified") {
		t.Fatalf("expected not_yet_verified payload: %s", w.Body.String())
	}

	h.svc.receiptErr = paymentdomain.ErrNotFound
	w = h.do(http.MethodGet, "/api/payments/MP-DUES-20252026-NOPE000000/receipt", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown receipt, got %d", w.Code)
	}

	h.svc.receiptErr = nil
	h.svc.receiptRec = verifiedRecord("MP-DUES-20252026-AAAA111111")
	w = h.do(http.MethodGet, "/api/payments/MP-DUES-20252026-AAAA111111/receipt", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for verified receipt, got %d", w.Code)
	}
}

func TestAdminSurfaceAbsentWithoutTokenHash(t *testing.T) {
	h := setupServer(t, nil)

	body, _ := json.Marshal(map[string]string{"status": "verified", "reason": "manual"})
	w := h.do(http.MethodPost, "/admin/payments/MP-DUES-20252026-AAAA111111/override", body, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes to be unrouted, got %d", w.Code)
	}
}

func TestAdminOverrideRequiresToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := setupServer(t, func(cfg *config.Config) {
		cfg.AdminTokenHash = string(hash)
	})
	h.svc.overrideOut = paymentdomain.Outcome{Record: verifiedRecord("MP-DUES-20252026-AAAA111111"), Won: true}

	body, _ := json.Marshal(map[string]string{"status": "verified", "reason": "bank transfer seen"})

	w := h.do(http.MethodPost, "/admin/payments/MP-DUES-20252026-AAAA111111/override", body, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = h.do(http.MethodPost, "/admin/payments/MP-DUES-20252026-AAAA111111/override", body, map[string]string{
		"Authorization": "Bearer wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	w = h.do(http.MethodPost, "/admin/payments/MP-DUES-20252026-AAAA111111/override", body, map[string]string{
		"Authorization": "Bearer letmein",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	h := setupServer(t, nil)

	if w := h.do(http.MethodGet, "/health", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d", w.Code)
	}
	if w := h.do(http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("expected metrics exposition, got %d", w.Code)
	}
}
