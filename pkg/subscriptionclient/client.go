/**
 * @description
 * HTTP client for the subscription service's reminder entitlement check.
 * Denial is a quota decision, not a failure: the caller cancels the specific
 * reminder attempt and surfaces the reason to the account owner.
 */
package subscriptionclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ReminderAllowance is the subscription service's verdict for one attempt.
type ReminderAllowance struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Client provides methods to interact with the subscription service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new subscription service client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CanSendReminder asks whether the user's plan still covers a reminder for
// this invoice.
func (c *Client) CanSendReminder(ctx context.Context, userID, invoiceID string) (bool, string, error) {
	url := fmt.Sprintf("%s/internal/subscriptions/%s/reminder-allowance?invoice_id=%s", c.baseURL, userID, invoiceID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Internal-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("failed to call subscription service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return false, "", fmt.Errorf("subscription service returned status %d", resp.StatusCode)
	}

	var allowance ReminderAllowance
	if err := json.Unmarshal(body, &allowance); err != nil {
		return false, "", fmt.Errorf("failed to parse response: %w", err)
	}

	return allowance.Allowed, allowance.Reason, nil
}
