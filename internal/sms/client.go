// Package sms sends text messages through an HTTP SMS gateway.
package sms

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/phone"
)

const maxMessageRunes = 320

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	log      *logger.Logger
}

type sendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient returns nil when no gateway is configured.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:   cfg.GetSMSGatewayKey(),
		deviceID: cfg.GetSMSGatewayDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// SendMessage delivers message to phoneNumber. A nil client sends nothing.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return nil
	}

	normalized := phone.NormalizeE164(phoneNumber)
	if !phone.IsValid(normalized) {
		return fmt.Errorf("invalid phone number")
	}

	body, err := json.Marshal(sendRequest{
		Phone:   normalized,
		Message: truncate(message, maxMessageRunes),
	})
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "phone", normalized)
	return nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") || strings.HasPrefix(strings.ToLower(apiKey), "bearer ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
