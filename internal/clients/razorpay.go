package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// RazorpayClient creates payment links. Amounts are always in paise;
// the reference id ties a link back to the WhatsApp order that caused it.
type RazorpayClient struct {
	http *resty.Client
}

func NewRazorpayClient(keyID, keySecret string) *RazorpayClient {
	return &RazorpayClient{
		http: resty.New().
			SetBaseURL(razorpayBaseURL).
			SetBasicAuth(keyID, keySecret).
			SetTimeout(20 * time.Second),
	}
}

// PaymentLink is the subset of the payment-link resource we track.
type PaymentLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreatePaymentLink creates one payment link for an order reference.
// Razorpay enforces reference_id uniqueness, which backs up our own
// replay guard.
func (c *RazorpayClient) CreatePaymentLink(ctx context.Context, orderRef string, amountPaise int64, currency, description, customerPhone string) (*PaymentLink, error) {
	body := map[string]any{
		"amount":       amountPaise,
		"currency":     currency,
		"reference_id": orderRef,
		"description":  description,
		"notify":       map[string]bool{"sms": false, "email": false},
	}
	if customerPhone != "" {
		body["customer"] = map[string]string{"contact": "+" + customerPhone}
	}

	var link PaymentLink
	var apiErr razorpayError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&link).
		SetError(&apiErr).
		Post("/payment_links")
	if err != nil {
		return nil, fmt.Errorf("razorpay link create failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("razorpay link create rejected: %s (%s)",
			apiErr.Error.Description, apiErr.Error.Code)
	}
	return &link, nil
}

// ValidateWebhookSignature checks the X-Razorpay-Signature HMAC over the
// raw body. Constant-time compare.
func ValidateWebhookSignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
