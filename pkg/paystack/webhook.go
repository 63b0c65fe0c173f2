package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const (
	// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
	SignatureHeader = "x-paystack-signature"

	EventChargeSuccess = "charge.success"
)

// Event is the subset of a webhook payload the shop acts on.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

type EventData struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// ParseEvent decodes a webhook body.
func ParseEvent(body []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return Event{}, err
	}
	evt.Data.Reference = strings.TrimSpace(evt.Data.Reference)
	return evt, nil
}

// Sign returns the signature Paystack would send for body.
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the webhook signature in constant time.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c == nil || c.secretKey == "" {
		return false
	}
	return VerifySignature(c.secretKey, body, signature)
}

// VerifySignature checks signature against body signed with secretKey.
func VerifySignature(secretKey string, body []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if secretKey == "" || signature == "" {
		return false
	}
	expected := Sign(secretKey, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
