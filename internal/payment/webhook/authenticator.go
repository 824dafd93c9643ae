// Package webhook gates inbound gateway notifications before they may touch
// payment state.
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// SignatureHeader is the header Paystack signs webhook deliveries with.
const SignatureHeader = "X-Paystack-Signature"

var (
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDisabled means no signing secret is configured. The webhook path
	// fails closed rather than accept unsigned deliveries.
	ErrDisabled = errors.New("webhook_disabled")

	ErrMalformedEvent = errors.New("malformed_event")
)

// Authenticator verifies that a payload genuinely originated from the
// gateway by recomputing the keyed MAC over the exact raw body bytes.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &Authenticator{}
	}
	return &Authenticator{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured.
func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0
}

// Authenticate rejects the payload unless the signature header matches the
// HMAC-SHA512 of the raw body. Comparison is constant time.
func (a *Authenticator) Authenticate(rawBody []byte, signatureHeader string) error {
	if !a.Enabled() {
		return ErrDisabled
	}

	signatureHeader = strings.TrimSpace(signatureHeader)
	if signatureHeader == "" {
		return ErrUnauthorized
	}

	provided, err := hex.DecodeString(signatureHeader)
	if err != nil {
		return ErrUnauthorized
	}

	mac := hmac.New(sha512.New, a.secret)
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	if !hmac.Equal(provided, expected) {
		return ErrUnauthorized
	}
	return nil
}

// Sign computes the signature for a body. Used by tests and local tooling.
func (a *Authenticator) Sign(rawBody []byte) string {
	if !a.Enabled() {
		return ""
	}
	mac := hmac.New(sha512.New, a.secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// Event is a parsed gateway notification. Only the reference matters to
// reconciliation; the reported status is advisory.
type Event struct {
	Type      string `json:"event"`
	Reference string
	Status    string
	Amount    int64
	Raw       map[string]any
}

type eventPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// ParseEvent decodes an authenticated payload.
func ParseEvent(rawBody []byte) (Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return Event{}, ErrMalformedEvent
	}
	if strings.TrimSpace(payload.Data.Reference) == "" {
		return Event{}, ErrMalformedEvent
	}

	var raw map[string]any
	_ = json.Unmarshal(rawBody, &raw)

	return Event{
		Type:      payload.Event,
		Reference: payload.Data.Reference,
		Status:    payload.Data.Status,
		Amount:    payload.Data.Amount,
		Raw:       raw,
	}, nil
}
