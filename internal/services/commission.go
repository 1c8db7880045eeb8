package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// CommissionEngine distributes referral earnings for a completed order.
// It is invoked best-effort after the completion transaction commits;
// failures are logged by the caller and never roll back the completion.
type CommissionEngine interface {
	Distribute(ctx context.Context, orderID uint) error
}

// HTTPCommissionEngine calls the external payout service.
type HTTPCommissionEngine struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCommissionEngineFromEnv wires the engine from COMMISSION_API_URL
// and COMMISSION_API_KEY. With no URL configured Distribute is a no-op.
func NewCommissionEngineFromEnv() CommissionEngine {
	baseURL := os.Getenv("COMMISSION_API_URL")
	if baseURL == "" {
		return noopCommissionEngine{}
	}

	return &HTTPCommissionEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  os.Getenv("COMMISSION_API_KEY"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (e *HTTPCommissionEngine) Distribute(ctx context.Context, orderID uint) error {
	body, err := json.Marshal(map[string]uint{"orderId": orderID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/distribute", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("commission service returned status %d", resp.StatusCode)
	}

	return nil
}

type noopCommissionEngine struct{}

func (noopCommissionEngine) Distribute(ctx context.Context, orderID uint) error {
	return nil
}
