package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-checkout/internal/config"
	"storefront-checkout/internal/model"
)

var ErrGatewayMismatch = errors.New("gateway response does not match request")

type GatewayClient interface {
	CreateOrder(ctx context.Context, req *model.GatewayCreateOrderRequest) (*model.GatewayOrder, error)
}

type gatewayClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	keyID      string
	keySecret  string
}

func NewGatewayClient(gatewayCfg *config.Gateway) GatewayClient {
	timeout := gatewayCfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &gatewayClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseApiURL: strings.TrimRight(gatewayCfg.BaseApiURL, "/"),
		keyID:      gatewayCfg.KeyID,
		keySecret:  gatewayCfg.KeySecret,
	}
}

// CreateOrder opens a payment intent for exactly req.Amount in req.Currency.
func (c *gatewayClientImpl) CreateOrder(ctx context.Context, req *model.GatewayCreateOrderRequest) (*model.GatewayOrder, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway create order request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr model.GatewayError
		if json.Unmarshal(respBody, &gwErr) == nil && gwErr.Error.Description != "" {
			return nil, fmt.Errorf("gateway error %d: %s: %s", resp.StatusCode, gwErr.Error.Code, gwErr.Error.Description)
		}
		return nil, fmt.Errorf("gateway error %d: %s", resp.StatusCode, string(respBody))
	}

	var result model.GatewayOrder
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}

	if result.ID == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrGatewayMismatch)
	}
	if result.Amount != req.Amount || !strings.EqualFold(result.Currency, req.Currency) {
		return nil, fmt.Errorf("%w: requested %d %s, got %d %s",
			ErrGatewayMismatch, req.Amount, req.Currency, result.Amount, result.Currency)
	}

	return &result, nil
}
