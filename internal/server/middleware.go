package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) InitiateRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.limiter.AllowInitiate(c.Request.Context(), c.ClientIP())
		if err != nil {
			AbortWithError(c, ErrInternal)
			return
		}
		if !res.Allowed {
			s.recordRateLimitDenied(c, "initiate")
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		s.recordRateLimitAllowed(c, "initiate")
		c.Next()
	}
}

func (s *Server) WebhookRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.limiter.AllowWebhook(c.Request.Context(), c.ClientIP())
		if err != nil {
			AbortWithError(c, ErrInternal)
			return
		}
		if !res.Allowed {
			s.recordRateLimitDenied(c, "webhook")
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		s.recordRateLimitAllowed(c, "webhook")
		c.Next()
	}
}

func (s *Server) recordRateLimitAllowed(c *gin.Context, endpoint string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRateLimitAllowed(c.Request.Context(), endpoint)
	}
}

func (s *Server) recordRateLimitDenied(c *gin.Context, endpoint string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), endpoint, "bucket_empty")
	}
}
