package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SendGridSender sends emails via SendGrid API
type SendGridSender struct {
	apiKey       string
	apiBase      string
	fromAddress  string
	fromName     string
	appName      string
	supportEmail string
	httpClient   *http.Client
}

// NewSendGridSenderFromConfig creates a new SendGrid sender from ProviderConfig
func NewSendGridSenderFromConfig(pc *ProviderConfig) (Sender, error) {
	var cfg SendGridConfig
	if err := json.Unmarshal(pc.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid SendGrid config: %w", err)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("SendGrid API key is required")
	}

	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.sendgrid.com/v3"
	}

	return &SendGridSender{
		apiKey:       cfg.APIKey,
		apiBase:      apiBase,
		fromAddress:  pc.FromAddress,
		fromName:     pc.FromName,
		appName:      pc.AppName,
		supportEmail: pc.SupportEmail,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SendShiftReminder sends a day-before shift reminder via SendGrid
func (s *SendGridSender) SendShiftReminder(ctx context.Context, data ShiftEmailData) error {
	data.fillDefaults(s.appName, s.supportEmail)

	htmlBody, err := renderShiftReminderHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.SendEmail(ctx, EmailData{
		To:          data.To,
		Subject:     fmt.Sprintf("Reminder: your volunteer shift on %s", data.ShiftDate),
		TextBody:    renderShiftReminderText(data),
		HTMLBody:    htmlBody,
		FromAddress: s.fromAddress,
		FromName:    s.fromName,
	})
}

// SendSignupConfirmation sends a signup confirmation via SendGrid
func (s *SendGridSender) SendSignupConfirmation(ctx context.Context, data ShiftEmailData) error {
	data.fillDefaults(s.appName, s.supportEmail)

	htmlBody, err := renderSignupConfirmationHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.SendEmail(ctx, EmailData{
		To:          data.To,
		Subject:     fmt.Sprintf("You're signed up for %s", data.ShiftDate),
		TextBody:    renderSignupConfirmationText(data),
		HTMLBody:    htmlBody,
		FromAddress: s.fromAddress,
		FromName:    s.fromName,
	})
}

// SendEmail sends an email via SendGrid API
func (s *SendGridSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr := data.FromAddress
	if fromAddr == "" {
		fromAddr = s.fromAddress
	}
	fromName := data.FromName
	if fromName == "" {
		fromName = s.fromName
	}

	// Build SendGrid API payload
	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{
				"to": []map[string]string{
					{"email": data.To},
				},
			},
		},
		"from": map[string]string{
			"email": fromAddr,
			"name":  fromName,
		},
		"subject": data.Subject,
		"content": []map[string]string{},
	}

	content := []map[string]string{}
	if data.TextBody != "" {
		content = append(content, map[string]string{
			"type":  "text/plain",
			"value": data.TextBody,
		})
	}
	if data.HTMLBody != "" {
		content = append(content, map[string]string{
			"type":  "text/html",
			"value": data.HTMLBody,
		})
	}
	payload["content"] = content

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal SendGrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiBase+"/mail/send", bytes.NewReader(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create SendGrid request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SendGrid API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("SendGrid API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// Health checks if SendGrid API is accessible
func (s *SendGridSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiBase+"/scopes", nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SendGrid health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 {
		return fmt.Errorf("SendGrid authentication failed: invalid API key")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SendGrid health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// ProviderType returns the provider type
func (s *SendGridSender) ProviderType() ProviderType {
	return ProviderTypeSendGrid
}
