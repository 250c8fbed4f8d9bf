package adapter

import (
	"context"

	"nutrifit-payments/internal/domain/model"
)

// Gateway is the hex port for payment providers. One implementation per
// provider; all of them speak the normalized charge/status vocabulary and
// surface failures as *domain.GatewayError.
type Gateway interface {
	Kind() model.GatewayKind

	// CreateCharge creates a charge at the provider. For PIX it requests a
	// 30-minute expiry window; for boleto a due date 3 business days out; for
	// credit card it performs any tokenization round-trip the provider
	// requires, so raw card data never leaves the adapter.
	CreateCharge(ctx context.Context, creds model.GatewayCredentials, req model.ChargeRequest) (*model.ChargeResult, error)

	// ChargeStatus fetches the provider's current status for a charge and maps
	// it to the normalized vocabulary.
	ChargeStatus(ctx context.Context, creds model.GatewayCredentials, externalID string) (model.PaymentStatus, error)

	// ParseWebhook extracts the external payment id (and, when the provider
	// includes it, the candidate status) from a native webhook body.
	ParseWebhook(body []byte) (*model.WebhookEvent, error)
}
