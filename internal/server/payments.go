package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/payment/issuance"
	"github.com/brightmoja/memberpay/internal/payment/webhook"
	"github.com/brightmoja/memberpay/internal/providers/pdf"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// maxWebhookBody caps how much of an inbound notification is read before
// signature verification.
const maxWebhookBody = 1 << 20

type paymentView struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	Purpose       string `json:"purpose"`
	Session       string `json:"session,omitempty"`
	AmountKobo    int64  `json:"amount_kobo"`
	VerifiedAt    string `json:"verified_at,omitempty"`
	VerifiedVia   string `json:"verified_via,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func viewOf(record *paymentdomain.PaymentRecord) paymentView {
	v := paymentView{
		Reference:     record.Reference,
		Status:        string(record.Status),
		Purpose:       string(record.Purpose),
		Session:       record.Session,
		AmountKobo:    record.AmountKobo,
		FailureReason: record.FailureReason,
	}
	if record.VerifiedAt != nil {
		v.VerifiedAt = record.VerifiedAt.UTC().Format(time.RFC3339)
		v.VerifiedVia = string(record.VerifiedVia)
	}
	return v
}

func (s *Server) InitiatePayment(c *gin.Context) {
	var req paymentdomain.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	resp, err := s.paymentSvc.Initiate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrDuplicatePayment) {
			c.Set("payment_reference", resp.Reference)
			c.JSON(http.StatusConflict, gin.H{
				"error": errorPayload{
					Type:    "conflict",
					Message: "an open payment attempt already exists",
				},
				"payment": resp,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.Set("payment_reference", resp.Reference)
	c.JSON(http.StatusCreated, resp)
}

// VerifyPayment backs the browser redirect channel: the member lands here
// after checkout and the reference is reconciled on the spot.
func (s *Server) VerifyPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Query("reference"))
	if reference == "" {
		AbortWithError(c, newValidationError("reference", "invalid_reference", "reference is required"))
		return
	}
	c.Set("payment_reference", reference)

	out, err := s.paymentSvc.Reconcile(c.Request.Context(), reference, paymentdomain.Report{}, paymentdomain.SourceRedirect)
	if err != nil && !errors.Is(err, paymentdomain.ErrAmountMismatch) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, reconcileResponse(out))
}

func reconcileResponse(out paymentdomain.Outcome) gin.H {
	resp := gin.H{"payment": viewOf(out.Record)}
	if out.Indeterminate || out.Record.Status == paymentdomain.StatusPending {
		resp["retry"] = true
	}
	return resp
}

// HandlePaymentWebhook authenticates the raw body before anything else.
// Authenticated deliveries are always acknowledged with 200, duplicates and
// failures included, so the gateway stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.authenticator.Authenticate(rawBody, c.GetHeader(webhook.SignatureHeader)); err != nil {
		s.recordWebhookUnauthorized(c, err)
		AbortWithError(c, err)
		return
	}

	event, err := webhook.ParseEvent(rawBody)
	if err != nil {
		// Authenticated but unparseable: acknowledge so the gateway does
		// not retry a payload that will never parse.
		s.log.Warn("malformed webhook event", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	c.Set("payment_reference", event.Reference)

	report := paymentdomain.Report{
		Status:  reportedStatus(event.Status),
		Payload: datatypes.JSONMap(event.Raw),
	}
	out, err := s.paymentSvc.Reconcile(c.Request.Context(), event.Reference, report, paymentdomain.SourceWebhook)
	switch {
	case err == nil, errors.Is(err, paymentdomain.ErrAmountMismatch):
		c.JSON(http.StatusOK, reconcileResponse(out))
	case errors.Is(err, paymentdomain.ErrNotFound):
		// References we never issued are acknowledged and dropped.
		s.log.Warn("webhook for unknown reference", zap.String("reference", event.Reference))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		AbortWithError(c, err)
	}
}

func reportedStatus(raw string) paymentdomain.Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return paymentdomain.StatusVerified
	case "failed", "abandoned", "reversed":
		return paymentdomain.StatusFailed
	default:
		return ""
	}
}

func (s *Server) recordWebhookUnauthorized(c *gin.Context, cause error) {
	reason := "bad_signature"
	if errors.Is(cause, webhook.ErrDisabled) {
		reason = "disabled"
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookUnauthorized(c.Request.Context(), reason)
	}
	s.log.Warn("webhook rejected",
		zap.String("reason", reason),
		zap.String("ip", c.ClientIP()),
	)
}

func (s *Server) GetPaymentByReference(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	c.Set("payment_reference", reference)

	record, err := s.paymentSvc.Receipt(c.Request.Context(), reference)
	if err != nil && !errors.Is(err, paymentdomain.ErrNotYetVerified) {
		AbortWithError(c, err)
		return
	}
	if record == nil {
		// Not yet verified still exposes current state on the read surface.
		out, rerr := s.paymentSvc.Reconcile(c.Request.Context(), reference, paymentdomain.Report{}, paymentdomain.SourceRedirect)
		if rerr != nil && !errors.Is(rerr, paymentdomain.ErrAmountMismatch) {
			AbortWithError(c, rerr)
			return
		}
		c.JSON(http.StatusOK, reconcileResponse(out))
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": viewOf(record)})
}

// GetPaymentReceipt serves the receipt only for verified records. A pending
// reference answers with a distinct payload so clients can poll, never with
// the not-found shape.
func (s *Server) GetPaymentReceipt(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	c.Set("payment_reference", reference)

	record, err := s.paymentSvc.Receipt(c.Request.Context(), reference)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrNotYetVerified) {
			c.JSON(http.StatusConflict, gin.H{
				"error": errorPayload{
					Type:    "not_yet_verified",
					Message: "payment has not been verified yet",
				},
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "pdf") {
		s.servePDFReceipt(c, record)
		return
	}

	c.JSON(http.StatusOK, gin.H{"receipt": viewOf(record)})
}

func (s *Server) servePDFReceipt(c *gin.Context, record *paymentdomain.PaymentRecord) {
	member, err := s.memberSvc.GetByID(c.Request.Context(), memberdomain.GetMemberRequest{ID: record.MemberID.String()})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	paidAt := ""
	if record.VerifiedAt != nil {
		paidAt = record.VerifiedAt.UTC().Format("2 January 2006")
	}
	reader, err := s.pdfProvider.GenerateDuesReceipt(c.Request.Context(), pdf.ReceiptData{
		Reference:    record.Reference,
		MemberName:   member.FullName,
		MembershipNo: member.MembershipNo,
		Session:      record.Session,
		Amount:       issuance.FormatKobo(record.AmountKobo),
		PaidAt:       paidAt,
		PaidVia:      string(record.VerifiedVia),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if reader == nil {
		AbortWithError(c, ErrInternal)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="receipt-`+record.Reference+`.pdf"`)
	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}
