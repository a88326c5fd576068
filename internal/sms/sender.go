// Package sms delivers one-time login codes through an external SMS provider.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Sender dispatches a one-time code to a phone number
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// HTTPSender posts codes to a JSON SMS gateway
type HTTPSender struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewHTTPSender returns a sender for the gateway at baseURL
func NewHTTPSender(apiKey, baseURL, sender string) *HTTPSender {
	return &HTTPSender{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type sendRequest struct {
	Phone  string `json:"phone"`
	Code   string `json:"code"`
	Sender string `json:"sender,omitempty"`
}

// SendCode sends code to phone. The code itself is never logged.
func (s *HTTPSender) SendCode(ctx context.Context, phone, code string) error {
	if s.APIKey == "" || s.BaseURL == "" {
		return fmt.Errorf("sms: gateway not configured")
	}
	raw, err := json.Marshal(sendRequest{Phone: phone, Code: code, Sender: s.Sender})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.APIKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// LogSender only records that a code would have been sent. Used when no gateway is configured.
type LogSender struct{}

// SendCode logs the masked destination
func (LogSender) SendCode(_ context.Context, phone, _ string) error {
	log.Printf("INFO: SMS gateway not configured, login code for %s not delivered", MaskPhone(phone))
	return nil
}

// MaskPhone hides the middle digits of a phone number for logs
func MaskPhone(phone string) string {
	if len(phone) != 11 {
		return "***"
	}
	return phone[:3] + "****" + phone[7:]
}
