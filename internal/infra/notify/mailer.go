// Package notify delivers transactional messages (welcome credentials,
// renewal confirmations, expiry warnings) through an external mailer service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Mailer)(nil)

// Mailer posts notifications to the mailer service, which owns the templates
// and the SMTP relay. This process never talks SMTP itself.
type Mailer struct {
	url    string
	apiKey string
	client *http.Client
	log    *zerolog.Logger
}

func NewMailer(url, apiKey string, timeout time.Duration, logger *zerolog.Logger) *Mailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "Mailer").Logger()
	return &Mailer{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		log:    &l,
	}
}

type mailPayload struct {
	Type string   `json:"type"`
	To   string   `json:"to"`
	Data mailData `json:"data"`
}

type mailData struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password,omitempty"`
	PlanName    string `json:"plan_name,omitempty"`
	PlanEndDate string `json:"plan_end_date,omitempty"`
}

func (m *Mailer) Send(ctx context.Context, n adapter.Notification) error {
	payload := mailPayload{
		Type: string(n.Type),
		To:   n.To,
		Data: mailData{
			Name:     n.Data.Name,
			Email:    n.Data.Email,
			Password: n.Data.Password,
			PlanName: n.Data.PlanName,
		},
	}
	if !n.Data.PlanEndDate.IsZero() {
		payload.Data.PlanEndDate = n.Data.PlanEndDate.Format("2006-01-02")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer responded %d: %s", resp.StatusCode, snippet)
	}
	m.log.Debug().Str("type", string(n.Type)).Str("to", n.To).Msg("notification dispatched")
	return nil
}
