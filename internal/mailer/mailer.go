package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/config"
)

// Mailer dispatches transactional emails. Implementations must be safe to
// call from request handlers; failures are reported but callers treat them
// as non-fatal.
type Mailer interface {
	SendConfirmation(ctx context.Context, email, name, token string) error
	SendPasswordReset(ctx context.Context, email, name, token string) error
}

// HTTPMailer posts mail payloads to an external mail function over HTTP.
// When no function URL is configured it logs the would-be delivery instead.
type HTTPMailer struct {
	cfg    config.MailerConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPMailer builds the mailer.
func NewHTTPMailer(cfg config.MailerConfig, logger *zap.Logger) *HTTPMailer {
	return &HTTPMailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type mailPayload struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Token   string `json:"token"`
	Subject string `json:"subject"`
	URL     string `json:"url"`
}

// SendConfirmation dispatches the account confirmation email.
func (m *HTTPMailer) SendConfirmation(ctx context.Context, email, name, token string) error {
	link := fmt.Sprintf("%s/confirm-email.html?token=%s", m.cfg.BaseURL, token)
	return m.send(ctx, mailPayload{
		Email:   email,
		Name:    name,
		Token:   token,
		Subject: "Confirm your registration",
		URL:     link,
	})
}

// SendPasswordReset dispatches the password reset email.
func (m *HTTPMailer) SendPasswordReset(ctx context.Context, email, name, token string) error {
	link := fmt.Sprintf("%s/reset-password.html?token=%s", m.cfg.BaseURL, token)
	return m.send(ctx, mailPayload{
		Email:   email,
		Name:    name,
		Token:   token,
		Subject: "Password reset",
		URL:     link,
	})
}

func (m *HTTPMailer) send(ctx context.Context, payload mailPayload) error {
	if m.cfg.FunctionURL == "" {
		m.logger.Info("mail function not configured; skipping delivery",
			zap.String("to", payload.Email),
			zap.String("subject", payload.Subject),
			zap.String("url", payload.URL))
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.FunctionURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail function returned status %d", resp.StatusCode)
	}
	return nil
}
