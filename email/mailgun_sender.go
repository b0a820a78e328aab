package email

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MailgunSender sends emails via Mailgun API
type MailgunSender struct {
	domain       string
	apiKey       string
	apiBase      string
	fromAddress  string
	fromName     string
	appName      string
	supportEmail string
	httpClient   *http.Client
}

// NewMailgunSenderFromConfig creates a new Mailgun sender from ProviderConfig
func NewMailgunSenderFromConfig(pc *ProviderConfig) (Sender, error) {
	var cfg MailgunConfig
	if err := json.Unmarshal(pc.Config, &cfg); err != nil {
		return nil, fmt.Errorf("invalid Mailgun config: %w", err)
	}

	if cfg.Domain == "" {
		return nil, fmt.Errorf("Mailgun domain is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Mailgun API key is required")
	}

	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.mailgun.net/v3"
	}

	return &MailgunSender{
		domain:       cfg.Domain,
		apiKey:       cfg.APIKey,
		apiBase:      apiBase,
		fromAddress:  pc.FromAddress,
		fromName:     pc.FromName,
		appName:      pc.AppName,
		supportEmail: pc.SupportEmail,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SendShiftReminder sends a day-before shift reminder via Mailgun
func (s *MailgunSender) SendShiftReminder(ctx context.Context, data ShiftEmailData) error {
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

// SendSignupConfirmation sends a signup confirmation via Mailgun
func (s *MailgunSender) SendSignupConfirmation(ctx context.Context, data ShiftEmailData) error {
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

// SendEmail sends an email via Mailgun API
func (s *MailgunSender) SendEmail(ctx context.Context, data EmailData) error {
	fromAddr := data.FromAddress
	if fromAddr == "" {
		fromAddr = s.fromAddress
	}
	fromName := data.FromName
	if fromName == "" {
		fromName = s.fromName
	}

	from := fromAddr
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromAddr)
	}

	// Build form data
	formData := url.Values{}
	formData.Set("from", from)
	formData.Set("to", data.To)
	formData.Set("subject", data.Subject)
	if data.TextBody != "" {
		formData.Set("text", data.TextBody)
	}
	if data.HTMLBody != "" {
		formData.Set("html", data.HTMLBody)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", s.apiBase, s.domain)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(formData.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create Mailgun request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Mailgun API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Mailgun API error (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// Health checks if Mailgun API is accessible
func (s *MailgunSender) Health(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/domains/%s", s.apiBase, s.domain)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Mailgun health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 401 {
		return fmt.Errorf("Mailgun authentication failed: invalid API key")
	}

	if resp.StatusCode == 404 {
		return fmt.Errorf("Mailgun domain not found: %s", s.domain)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Mailgun health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// ProviderType returns the provider type
func (s *MailgunSender) ProviderType() ProviderType {
	return ProviderTypeMailgun
}
