package server

import (
	"errors"
	"net/http"
	"strings"

	memberdomain "github.com/brightmoja/memberpay/internal/member/domain"
	paymentdomain "github.com/brightmoja/memberpay/internal/payment/domain"
	"github.com/brightmoja/memberpay/internal/payment/gateway"
	"github.com/brightmoja/memberpay/internal/payment/webhook"
	sessiondomain "github.com/brightmoja/memberpay/internal/session/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrInternal        = errors.New("internal_error")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, webhook.ErrUnauthorized),
		errors.Is(err, webhook.ErrDisabled):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, memberdomain.ErrDuplicateMember):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, gateway.ErrRejected),
		errors.Is(err, gateway.ErrNotConfigured):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_rejected",
			Message: "payment gateway rejected the request",
		}
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidMember),
		errors.Is(err, paymentdomain.ErrInvalidPurpose),
		errors.Is(err, paymentdomain.ErrInvalidReference),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, memberdomain.ErrInvalidName),
		errors.Is(err, memberdomain.ErrInvalidEmail),
		errors.Is(err, memberdomain.ErrInvalidMembershipNo),
		errors.Is(err, memberdomain.ErrInvalidID),
		errors.Is(err, sessiondomain.ErrInvalidSession):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, sessiondomain.ErrNotConfigured),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

// classifyErrorForLog tags the request log line with an error family so
// dashboards can split client mistakes from real failures.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "server_error", payload.Type
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth_error", payload.Type
	default:
		return "client_error", payload.Type
	}
}
