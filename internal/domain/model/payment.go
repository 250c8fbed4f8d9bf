package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"nutrifit-payments/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"  // charge created at provider; awaiting settlement
	PaymentStatusApproved PaymentStatus = "approved" // provider confirmed the funds
	PaymentStatusRejected PaymentStatus = "rejected" // declined or canceled at provider
	PaymentStatusExpired  PaymentStatus = "expired"  // charge lapsed unpaid (PIX window / boleto due date)
	PaymentStatusRefunded PaymentStatus = "refunded" // funds returned after approval
)

// Precedence orders statuses for out-of-order webhook delivery: a redelivered
// stale event must never overwrite a higher-precedence stored status.
func (s PaymentStatus) Precedence() int {
	switch s {
	case PaymentStatusRefunded:
		return 4
	case PaymentStatusApproved:
		return 3
	case PaymentStatusRejected, PaymentStatusExpired:
		return 2
	case PaymentStatusPending:
		return 1
	}
	return 0
}

// Terminal reports whether no further transition is possible, with the one
// exception that approved may still become refunded.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusExpired, PaymentStatusRefunded:
		return true
	}
	return false
}

// CanTransition is the allowed-transition table. Same-status is not a
// transition (callers treat it as an idempotent no-op).
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	if s == to {
		return false
	}
	switch s {
	case PaymentStatusPending:
		return to == PaymentStatusApproved || to == PaymentStatusRejected ||
			to == PaymentStatusExpired || to == PaymentStatusRefunded
	case PaymentStatusApproved:
		return to == PaymentStatusRefunded
	}
	return false
}

type PaymentMethod string

const (
	MethodPix        PaymentMethod = "pix"
	MethodBoleto     PaymentMethod = "boleto"
	MethodCreditCard PaymentMethod = "credit_card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodPix, MethodBoleto, MethodCreditCard:
		return true
	}
	return false
}

type GatewayKind string

const (
	GatewayNone        GatewayKind = "none"
	GatewayAsaas       GatewayKind = "asaas"
	GatewayMercadoPago GatewayKind = "mercadopago"
	GatewayPagarme     GatewayKind = "pagarme"
	GatewayEfi         GatewayKind = "efi"
)

func ParseGatewayKind(s string) (GatewayKind, bool) {
	switch GatewayKind(s) {
	case GatewayAsaas, GatewayMercadoPago, GatewayPagarme, GatewayEfi:
		return GatewayKind(s), true
	}
	return GatewayNone, false
}

// Customer is the contact/identity snapshot captured at checkout time. It is
// kept on the payment independent of any client account created later.
type Customer struct {
	Name  string
	Email string
	Phone string
	CPF   string
}

type PixCharge struct {
	QRCode       string // copyable payload
	QRCodeBase64 string // renderable image
	ExpiresAt    time.Time
}

type BoletoCharge struct {
	URL     string
	Barcode string
	DueDate time.Time
}

type CardCharge struct {
	Last4        string
	Brand        string
	Installments int
}

// Payment is the durable record of one payment attempt. Rows are never
// deleted; status mutates only through the reconciliation guard.
type Payment struct {
	ID               string // ULID
	OwnerID          string
	ClientID         *string // set once provisioning links an account
	PlanID           string
	Gateway          GatewayKind
	GatewayPaymentID *string // provider-assigned id; correlation key for webhooks
	AmountCents      int64   // snapshotted from the plan at creation
	DurationDays     int     // snapshotted from the plan at creation
	Method           PaymentMethod
	Status           PaymentStatus
	Customer         Customer
	Pix              *PixCharge
	Boleto           *BoletoCharge
	Card             *CardCharge
	PaidAt           *time.Time
	RawEvent         []byte // last webhook body, kept opaque for audit
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewPayment creates a pending payment with the plan's price and duration
// snapshotted in, so later plan edits cannot change what was charged.
func NewPayment(ownerID string, plan *SubscriptionPlan, method PaymentMethod, customer Customer) (*Payment, error) {
	if ownerID == "" || plan.IsZero() || !method.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	if customer.Name == "" || customer.Email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Payment{
		ID:           ulid.Make().String(),
		OwnerID:      ownerID,
		PlanID:       plan.ID,
		AmountCents:  plan.PriceCents,
		DurationDays: plan.DurationDays,
		Method:       method,
		Status:       PaymentStatusPending,
		Customer:     customer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
