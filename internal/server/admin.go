package server

import (
	"net/http"
	"strconv"
	"strings"

	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/requestctx"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminTokenRequired compares the bearer token against the configured bcrypt
// hash. Routes behind this gate only exist when a hash is configured.
func (s *Server) AdminTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminTokenHash), []byte(token)); err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := requestctx.WithActor(c.Request.Context(), "admin")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type overrideRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// OverridePayment force-resolves a stuck pending record. It goes through the
// same conditional transition as the automated channels, so it can never
// clobber a record another channel already finalized.
func (s *Server) OverridePayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	c.Set("payment_reference", reference)

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		AbortWithError(c, newValidationError("reason", "invalid_reason", "reason is required"))
		return
	}

	out, err := s.paymentSvc.Override(c.Request.Context(), reference, paymentdomain.Status(strings.ToLower(req.Status)), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, reconcileResponse(out))
}

type sessionUpdateRequest struct {
	Session string `json:"session"`
}

func (s *Server) UpdateCurrentSession(c *gin.Context) {
	var req sessionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}

	if err := s.sessionSvc.Update(c.Request.Context(), req.Session); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.auditSvc.Record(c.Request.Context(), "session.update", req.Session, nil); err != nil {
		s.log.Warn("audit session update failed")
	}

	c.JSON(http.StatusOK, gin.H{"session": req.Session})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	target := strings.TrimSpace(c.Query("target"))
	if target == "" {
		AbortWithError(c, newValidationError("target", "invalid_target", "target is required"))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := s.auditSvc.ListByTarget(c.Request.Context(), target, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}
