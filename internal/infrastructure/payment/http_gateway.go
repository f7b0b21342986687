package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/port"
)

// HTTPGateway is a JSON client of an external payment provider
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway creates a client for the provider at baseURL
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type transferRequest struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}

func (g *HTTPGateway) Collect(ctx context.Context, payer string, amount decimal.Decimal) (port.PaymentReceipt, error) {
	var receipt port.PaymentReceipt
	err := g.post(ctx, "/payments/collect", transferRequest{Account: payer, Amount: amount}, &receipt)
	if err != nil {
		return port.PaymentReceipt{}, fmt.Errorf("collect from %s: %w", payer, err)
	}
	return receipt, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, receipt port.PaymentReceipt) error {
	if err := g.post(ctx, "/payments/refund", receipt, nil); err != nil {
		return fmt.Errorf("refund %s: %w", receipt.ID, err)
	}
	return nil
}

func (g *HTTPGateway) Payout(ctx context.Context, payee string, amount decimal.Decimal) error {
	if err := g.post(ctx, "/payments/payout", transferRequest{Account: payee, Amount: amount}, nil); err != nil {
		return fmt.Errorf("payout to %s: %w", payee, err)
	}
	return nil
}

func (g *HTTPGateway) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("payment provider returned %d", resp.StatusCode)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
