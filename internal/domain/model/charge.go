package model

// ChargeRequest is the normalized input every gateway adapter accepts.
type ChargeRequest struct {
	PaymentID   string // our internal id, sent to the provider as external reference
	PlanName    string
	AmountCents int64
	Method      PaymentMethod
	Customer    Customer
	Card        *CardData // required iff Method == credit_card
}

// ChargeResult is the normalized outcome of a successful charge creation.
type ChargeResult struct {
	ExternalID string
	Status     PaymentStatus
	Pix        *PixCharge
	Boleto     *BoletoCharge
	Card       *CardCharge
}

// WebhookEvent is a parsed asynchronous notification. Status may be empty when
// the provider's webhook carries no state (notification-only events); the
// reconciler then falls back to a live status lookup.
type WebhookEvent struct {
	Gateway    GatewayKind
	ExternalID string
	Status     PaymentStatus
}
