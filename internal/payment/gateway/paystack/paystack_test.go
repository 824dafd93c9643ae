package paystack

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/payment/gateway"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.GatewayConfig{
		BaseURL:   srv.URL,
		SecretKey: "sk_test_secret",
	}, zap.NewNop())
}

func TestInitializeReturnsAuthorizationURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.example/abc","access_code":"abc","reference":"MP-DUES-20252026-AAAA111111"}}`))
	})

	resp, err := client.Initialize(context.Background(), gateway.InitializeRequest{
		Reference:  "MP-DUES-20252026-AAAA111111",
		Email:      "m@example.org",
		AmountKobo: 500_000,
	})
	require.NoError(t, err)
	require.Equal(t, "https://checkout.example/abc", resp.AuthorizationURL)
}

func TestInitializeRejectedOnFalseStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	})

	_, err := client.Initialize(context.Background(), gateway.InitializeRequest{Reference: "MP-X", Email: "m@example.org", AmountKobo: 100})
	require.ErrorIs(t, err, gateway.ErrRejected)
}

func TestConfirmMapsProviderStatuses(t *testing.T) {
	cases := []struct {
		raw  string
		want gateway.ConfirmStatus
	}{
		{raw: "success", want: gateway.ConfirmSuccess},
		{raw: "failed", want: gateway.ConfirmFailed},
		{raw: "abandoned", want: gateway.ConfirmFailed},
		{raw: "reversed", want: gateway.ConfirmFailed},
		{raw: "ongoing", want: gateway.ConfirmPending},
		{raw: "queued", want: gateway.ConfirmPending},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/transaction/verify/MP-DUES-20252026-AAAA111111", r.URL.Path)
				w.Write([]byte(`{"status":true,"data":{"status":"` + tc.raw + `","amount":500000}}`))
			})

			conf, err := client.Confirm(context.Background(), "MP-DUES-20252026-AAAA111111")
			require.NoError(t, err)
			require.Equal(t, tc.want, conf.Status)
			require.Equal(t, int64(500_000), conf.AmountKobo)
			require.Equal(t, tc.raw, conf.RawStatus)
		})
	}
}

func TestConfirmUnavailableOnServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Confirm(context.Background(), "MP-X")
	require.ErrorIs(t, err, gateway.ErrUnavailable)
}

func TestMissingSecretKeyFailsClosed(t *testing.T) {
	client := New(config.GatewayConfig{BaseURL: "https://api.paystack.co"}, zap.NewNop())

	_, err := client.Confirm(context.Background(), "MP-X")
	require.True(t, errors.Is(err, gateway.ErrNotConfigured))
}
