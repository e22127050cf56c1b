/**
 * @description
 * Client for the Flow payment gateway. It opens checkout orders for pending
 * common-expense payments.
 */
package gatewayclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("payment gateway credentials are not configured")

// Config holds the gateway credentials and callback URLs.
type Config struct {
	BaseURL         string
	APIKey          string
	SecretKey       string
	ConfirmationURL string
	ReturnURL       string
}

// Client is a client for the Flow API.
type Client struct {
	baseURL         string
	apiKey          string
	secretKey       string
	confirmationURL string
	returnURL       string
	httpClient      *http.Client
}

// NewClient creates a new gateway client.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:         strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:          strings.TrimSpace(cfg.APIKey),
		secretKey:       strings.TrimSpace(cfg.SecretKey),
		confirmationURL: cfg.ConfirmationURL,
		returnURL:       cfg.ReturnURL,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
	}
}

// PaymentOrder is a checkout order for one payment.
type PaymentOrder struct {
	CommerceOrder string
	Subject       string
	Amount        int64
	Email         string
}

// PaymentOrderResponse is the gateway's answer to payment/create.
type PaymentOrderResponse struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	FlowOrder int64  `json:"flowOrder"`
}

// CheckoutURL is the page the payer is redirected to.
func (r PaymentOrderResponse) CheckoutURL() string {
	if r.Token == "" {
		return r.URL
	}
	return r.URL + "?token=" + url.QueryEscape(r.Token)
}

// CreatePaymentOrder calls payment/create and returns the checkout data.
func (c *Client) CreatePaymentOrder(ctx context.Context, order PaymentOrder) (*PaymentOrderResponse, error) {
	if c.apiKey == "" || c.secretKey == "" {
		return nil, ErrNotConfigured
	}
	if order.CommerceOrder == "" {
		return nil, fmt.Errorf("commerce order is required")
	}
	if order.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	params := map[string]string{
		"apiKey":        c.apiKey,
		"commerceOrder": order.CommerceOrder,
		"subject":       order.Subject,
		"currency":      "CLP",
		"amount":        strconv.FormatInt(order.Amount, 10),
		"email":         order.Email,
	}
	if c.confirmationURL != "" {
		params["urlConfirmation"] = c.confirmationURL
	}
	if c.returnURL != "" {
		params["urlReturn"] = c.returnURL
	}

	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("s", Sign(params, c.secretKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payment/create", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Message != "" {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var response PaymentOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %w", err)
	}
	if response.URL == "" || response.Token == "" {
		return nil, fmt.Errorf("gateway response is missing the checkout url or token")
	}
	return &response, nil
}

// Sign computes the gateway signature: HMAC-SHA256 over the parameters
// concatenated as name+value in name order, hex encoded.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "s" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(key)
		b.WriteString(params[key])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignBody returns the hex HMAC-SHA256 of body under secret.
func SignBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBodySignature reports whether signature is the hex HMAC-SHA256 of body under secret.
func VerifyBodySignature(body []byte, signature, secret string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	expected, _ := hex.DecodeString(SignBody(body, secret))
	return hmac.Equal(expected, provided)
}
