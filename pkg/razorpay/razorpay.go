// Package razorpay is a minimal client for the Razorpay orders API: it
// creates gateway orders ahead of checkout and verifies the HMAC signature
// Razorpay attaches to payment confirmations. Amounts are always integer
// minor currency units (paise); the gateway never accepts floats.
package razorpay

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// Config holds the gateway credentials. KeyID is public and is handed to
// the client-side payment widget; KeySecret never leaves the server.
type Config struct {
	KeyID     string
	KeySecret string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

// Client talks to the Razorpay API.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Razorpay client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// KeyID returns the public key id for the client-side payment widget.
func (c *Client) KeyID() string {
	return c.keyID
}

type orderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
}

type orderResponse struct {
	ID string `json:"id"`
}

// CreateOrder creates a gateway order for the given amount in minor units
// with automatic capture and returns the gateway order id.
func (c *Client) CreateOrder(amountMinor int64, currency string) (string, error) {
	body, err := json.Marshal(orderRequest{
		Amount:         amountMinor,
		Currency:       currency,
		PaymentCapture: 1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build order request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway order request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var result orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("gateway response missing order id")
	}
	return result.ID, nil
}

// VerifySignature checks the confirmation signature against the gateway
// secret. Razorpay signs "orderID|paymentID" with HMAC-SHA256; a mismatch
// means the confirmation was tampered with or fabricated.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch for order %s", orderID)
	}
	return nil
}

// Sign produces the signature the gateway would attach for the given order
// and payment ids. Exposed for tests and webhook simulation.
func (c *Client) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	fmt.Fprintf(mac, "%s|%s", orderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}
