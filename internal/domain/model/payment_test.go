package model

import (
	"testing"

	"nutrifit-payments/internal/domain"
)

func TestPaymentStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusApproved, true},
		{PaymentStatusPending, PaymentStatusRejected, true},
		{PaymentStatusPending, PaymentStatusExpired, true},
		{PaymentStatusPending, PaymentStatusRefunded, true},
		{PaymentStatusApproved, PaymentStatusRefunded, true},

		// same status is a no-op, not a transition
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusApproved, PaymentStatusApproved, false},

		// approval can never be walked back
		{PaymentStatusApproved, PaymentStatusPending, false},
		{PaymentStatusApproved, PaymentStatusRejected, false},
		{PaymentStatusApproved, PaymentStatusExpired, false},

		// rejected/expired/refunded are dead ends
		{PaymentStatusRejected, PaymentStatusApproved, false},
		{PaymentStatusRejected, PaymentStatusPending, false},
		{PaymentStatusExpired, PaymentStatusApproved, false},
		{PaymentStatusRefunded, PaymentStatusApproved, false},
		{PaymentStatusRefunded, PaymentStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestPaymentStatusPrecedence(t *testing.T) {
	if PaymentStatusRefunded.Precedence() <= PaymentStatusApproved.Precedence() {
		t.Error("refunded must outrank approved")
	}
	if PaymentStatusApproved.Precedence() <= PaymentStatusRejected.Precedence() {
		t.Error("approved must outrank rejected")
	}
	if PaymentStatusRejected.Precedence() != PaymentStatusExpired.Precedence() {
		t.Error("rejected and expired are peers")
	}
	if PaymentStatusPending.Precedence() <= PaymentStatus("unknown").Precedence() {
		t.Error("pending must outrank an unknown status")
	}
}

func TestPaymentStatusTerminal(t *testing.T) {
	if PaymentStatusPending.Terminal() {
		t.Error("pending is not terminal")
	}
	for _, s := range []PaymentStatus{PaymentStatusApproved, PaymentStatusRejected, PaymentStatusExpired, PaymentStatusRefunded} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestNewPayment(t *testing.T) {
	plan, err := NewSubscriptionPlan("owner-1", "Plano Trimestral", 90, 24990, []string{"treinos", "dieta"})
	if err != nil {
		t.Fatalf("NewSubscriptionPlan: %v", err)
	}
	customer := Customer{Name: "Maria Silva", Email: "maria@example.com", CPF: "12345678909"}

	t.Run("snapshots plan price and duration", func(t *testing.T) {
		p, err := NewPayment("owner-1", plan, MethodPix, customer)
		if err != nil {
			t.Fatalf("NewPayment: %v", err)
		}
		if p.Status != PaymentStatusPending {
			t.Errorf("status = %s, want pending", p.Status)
		}
		if p.AmountCents != 24990 || p.DurationDays != 90 {
			t.Errorf("snapshot = %d cents / %d days", p.AmountCents, p.DurationDays)
		}
		if p.ID == "" {
			t.Error("missing id")
		}

		// later plan edits must not leak into the created payment
		plan.PriceCents = 99
		if p.AmountCents != 24990 {
			t.Error("payment amount followed a plan edit")
		}
		plan.PriceCents = 24990
	})

	t.Run("rejects bad input", func(t *testing.T) {
		if _, err := NewPayment("", plan, MethodPix, customer); err != domain.ErrInvalidArgument {
			t.Errorf("empty owner: err = %v", err)
		}
		if _, err := NewPayment("owner-1", &SubscriptionPlan{}, MethodPix, customer); err != domain.ErrInvalidArgument {
			t.Errorf("zero plan: err = %v", err)
		}
		if _, err := NewPayment("owner-1", plan, PaymentMethod("cash"), customer); err != domain.ErrInvalidArgument {
			t.Errorf("bad method: err = %v", err)
		}
		if _, err := NewPayment("owner-1", plan, MethodPix, Customer{Name: "X"}); err != domain.ErrInvalidArgument {
			t.Errorf("missing email: err = %v", err)
		}
	})
}

func TestParseGatewayKind(t *testing.T) {
	for _, s := range []string{"asaas", "mercadopago", "pagarme", "efi"} {
		if _, ok := ParseGatewayKind(s); !ok {
			t.Errorf("ParseGatewayKind(%q) should succeed", s)
		}
	}
	if _, ok := ParseGatewayKind("stripe"); ok {
		t.Error("unknown gateway should not parse")
	}
	if _, ok := ParseGatewayKind("none"); ok {
		t.Error("none is not a chargeable gateway")
	}
}
