package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestAuthenticateAcceptsValidSignature(t *testing.T) {
	auth := NewAuthenticator("whsec_test")
	body := []byte(`{"event":"charge.success","data":{"reference":"MP-DUES-20252026-AAAA111111","status":"success","amount":500000}}`)

	require.NoError(t, auth.Authenticate(body, signBody("whsec_test", body)))
}

func TestAuthenticateRejectsTamperedBody(t *testing.T) {
	auth := NewAuthenticator("whsec_test")
	body := []byte(`{"event":"charge.success","data":{"reference":"MP-X","amount":500000}}`)
	sig := signBody("whsec_test", body)

	tampered := []byte(`{"event":"charge.success","data":{"reference":"MP-X","amount":999999}}`)
	require.ErrorIs(t, auth.Authenticate(tampered, sig), ErrUnauthorized)
}

func TestAuthenticateRejectsWrongKey(t *testing.T) {
	auth := NewAuthenticator("whsec_test")
	body := []byte(`{}`)

	require.ErrorIs(t, auth.Authenticate(body, signBody("other_key", body)), ErrUnauthorized)
}

func TestAuthenticateRejectsMissingOrBadHeader(t *testing.T) {
	auth := NewAuthenticator("whsec_test")
	body := []byte(`{}`)

	require.ErrorIs(t, auth.Authenticate(body, ""), ErrUnauthorized)
	require.ErrorIs(t, auth.Authenticate(body, "not-hex!!"), ErrUnauthorized)
}

func TestMissingSecretFailsClosed(t *testing.T) {
	auth := NewAuthenticator("   ")
	body := []byte(`{}`)

	require.False(t, auth.Enabled())
	// Even a correctly signed payload is rejected when no secret is set.
	require.ErrorIs(t, auth.Authenticate(body, signBody("whsec_test", body)), ErrDisabled)
}

func TestSignRoundTrips(t *testing.T) {
	auth := NewAuthenticator("whsec_test")
	body := []byte(`{"event":"charge.success"}`)

	require.NoError(t, auth.Authenticate(body, auth.Sign(body)))
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"MP-DUES-20252026-AAAA111111","status":"success","amount":500000}}`)

	evt, err := ParseEvent(body)
	require.NoError(t, err)
	require.Equal(t, "charge.success", evt.Type)
	require.Equal(t, "MP-DUES-20252026-AAAA111111", evt.Reference)
	require.Equal(t, "success", evt.Status)
	require.Equal(t, int64(500_000), evt.Amount)
	require.NotNil(t, evt.Raw)
}

func TestParseEventRejectsMissingReference(t *testing.T) {
	_, err := ParseEvent([]byte(`{"event":"charge.success","data":{}}`))
	require.ErrorIs(t, err, ErrMalformedEvent)

	_, err = ParseEvent([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedEvent)
}
