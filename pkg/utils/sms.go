package utils

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chachabrian/wheelster-backend/internal/config"
)

const (
	smsLiveURL    = "https://api.africastalking.com/version1/messaging"
	smsSandboxURL = "https://api.sandbox.africastalking.com/version1/messaging"
)

// SMSClient sends text messages through the Africa's Talking bulk API.
type SMSClient struct {
	username string
	apiKey   string
	senderID string
	baseURL  string
	http     *http.Client
}

func NewSMSClient(cfg config.SMSConfig) *SMSClient {
	baseURL := smsLiveURL
	if cfg.Sandbox {
		baseURL = smsSandboxURL
	}
	return &SMSClient{
		username: cfg.Username,
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *SMSClient) Enabled() bool {
	return c != nil && c.username != "" && c.apiKey != ""
}

func (c *SMSClient) Send(ctx context.Context, message string, recipients ...string) error {
	if c.username == "" {
		return fmt.Errorf("africa's talking username not set")
	}
	if c.apiKey == "" {
		return fmt.Errorf("africa's talking API key not set")
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	data := url.Values{}
	data.Set("username", c.username)
	data.Set("to", strings.Join(recipients, ","))
	data.Set("message", message)
	if c.senderID != "" {
		data.Set("from", c.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send SMS: status code %d", resp.StatusCode)
	}
	return nil
}
