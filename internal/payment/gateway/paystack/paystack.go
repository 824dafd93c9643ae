// Package paystack adapts the Paystack REST API to the gateway contract.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brightmoja/memberpay/internal/config"
	"github.com/brightmoja/memberpay/internal/payment/gateway"
	"go.uber.org/zap"
)

type Client struct {
	baseURL   string
	secretKey string
	log       *zap.Logger
	client    *http.Client
}

func New(cfg config.GatewayConfig, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: strings.TrimSpace(cfg.SecretKey),
		log:       log.Named("gateway.paystack"),
		client:    &http.Client{Timeout: 12 * time.Second},
	}
}

type initializePayload struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

func (c *Client) Initialize(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResponse, error) {
	payload := initializePayload{
		Email:       req.Email,
		Amount:      req.AmountKobo,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return gateway.InitializeResponse{}, err
	}

	raw, err := c.doRequest(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return gateway.InitializeResponse{}, err
	}

	var data initializeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return gateway.InitializeResponse{}, fmt.Errorf("%w: decode initialize response: %v", gateway.ErrUnavailable, err)
	}
	if strings.TrimSpace(data.AuthorizationURL) == "" {
		return gateway.InitializeResponse{}, fmt.Errorf("%w: empty authorization url", gateway.ErrRejected)
	}

	return gateway.InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

func (c *Client) Confirm(ctx context.Context, reference string) (gateway.Confirmation, error) {
	raw, err := c.doRequest(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return gateway.Confirmation{}, err
	}

	var data verifyData
	if err := json.Unmarshal(raw, &data); err != nil {
		return gateway.Confirmation{}, fmt.Errorf("%w: decode verify response: %v", gateway.ErrUnavailable, err)
	}

	return gateway.Confirmation{
		Status:     mapTxStatus(data.Status),
		AmountKobo: data.Amount,
		RawStatus:  data.Status,
	}, nil
}

// mapTxStatus folds provider transaction states into the three the engine
// understands. Unknown states stay pending so nothing terminal is decided
// on guesswork.
func mapTxStatus(raw string) gateway.ConfirmStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return gateway.ConfirmSuccess
	case "failed", "abandoned", "reversed":
		return gateway.ConfirmFailed
	default:
		return gateway.ConfirmPending
	}
}

func (c *Client) doRequest(ctx context.Context, method, path string, body *bytes.Reader) ([]byte, error) {
	if c.secretKey == "" {
		return nil, gateway.ErrNotConfigured
	}

	var reader *bytes.Reader
	if body != nil {
		reader = body
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: provider returned %d", gateway.ErrUnavailable, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %v", gateway.ErrUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Status {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = fmt.Sprintf("provider returned %d", resp.StatusCode)
		}
		c.log.Warn("gateway rejected request",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", message),
		)
		return nil, fmt.Errorf("%w: %s", gateway.ErrRejected, message)
	}

	return env.Data, nil
}
