// Package gateway implements the payment provider adapters. Each provider
// speaks its own request shapes and status vocabulary; everything leaving this
// package is normalized to the model types.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/adapter"
)

// pixExpiry is the payment window requested for PIX charges.
const pixExpiry = 30 * time.Minute

// boletoDueDate returns a due date 3 business days out, skipping weekends.
func boletoDueDate(now time.Time) time.Time {
	d := now
	remaining := 3
	for remaining > 0 {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			remaining--
		}
	}
	return d
}

// centsToAmount renders integer cents as the decimal string most providers
// expect ("99.90").
func centsToAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// centsToFloat is for providers whose JSON takes a number. Values fit well
// within float64's exact integer range.
func centsToFloat(cents int64) float64 {
	return float64(cents) / 100
}

// Registry resolves a gateway kind to its adapter.
type Registry struct {
	byKind map[model.GatewayKind]adapter.Gateway
}

func NewRegistry(gws ...adapter.Gateway) *Registry {
	r := &Registry{byKind: make(map[model.GatewayKind]adapter.Gateway, len(gws))}
	for _, g := range gws {
		r.byKind[g.Kind()] = g
	}
	return r
}

func (r *Registry) Resolve(kind model.GatewayKind) (adapter.Gateway, bool) {
	g, ok := r.byKind[kind]
	return g, ok
}

// doJSON performs one JSON round-trip against a provider. Non-2xx responses
// come back as an error carrying the provider body, so adapters can wrap them
// into a GatewayError with whatever the provider said.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, string(raw))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unmarshal response: %w, body: %s", err, string(raw))
		}
	}
	return nil
}
