package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/repository"
	"nutrifit-payments/internal/infra/metrics"
)

// CheckoutInput is everything the checkout UI sends for one payment attempt.
type CheckoutInput struct {
	OwnerID  string
	PlanID   string
	Method   model.PaymentMethod
	Customer model.Customer
	Card     *model.CardData // required iff Method == credit_card
}

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// CheckoutUseCase creates payments: it validates preconditions, invokes the
// owner's active gateway, and persists the resulting record. A card charge a
// provider approves synchronously is routed through the reconciler's guarded
// apply, the same path webhooks take, so provisioning can never double-fire.
type CheckoutUseCase interface {
	Create(ctx context.Context, in CheckoutInput) (*model.Payment, error)
}

type checkoutUC struct {
	payments  repository.PaymentRepository
	plans     repository.PlanRepository
	settings  repository.SettingsRepository
	gateways  GatewayResolver
	reconcile ReconcileUseCase
	log       *zerolog.Logger
}

func NewCheckoutUseCase(
	payments repository.PaymentRepository,
	plans repository.PlanRepository,
	settings repository.SettingsRepository,
	gateways GatewayResolver,
	reconcile ReconcileUseCase,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		payments:  payments,
		plans:     plans,
		settings:  settings,
		gateways:  gateways,
		reconcile: reconcile,
		log:       &l,
	}
}

func (u *checkoutUC) Create(ctx context.Context, in CheckoutInput) (*model.Payment, error) {
	if !in.Method.Valid() {
		return nil, domain.NewValidationError("payment_method", "unknown payment method")
	}
	if in.Customer.Name == "" || in.Customer.Email == "" {
		return nil, domain.NewValidationError("customer", "name and email are required")
	}
	if in.Method == model.MethodCreditCard && in.Card == nil {
		return nil, domain.NewValidationError("card", "card data is required for credit card payments")
	}

	settings, err := u.settings.FindByOwner(ctx, repository.NoTX, in.OwnerID)
	if err == domain.ErrNotFound {
		return nil, domain.NewValidationError("gateway", "no payment gateway configured")
	}
	if err != nil {
		return nil, err
	}
	if settings.ActiveGateway == model.GatewayNone {
		return nil, domain.NewValidationError("gateway", "no payment gateway configured")
	}
	creds, ok := settings.ActiveCredentials()
	if !ok {
		return nil, domain.NewValidationError("gateway", "active gateway has no credentials")
	}
	if !settings.MethodEnabled(in.Method) {
		return nil, domain.NewValidationError("payment_method", string(in.Method)+" is not enabled")
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, in.PlanID)
	if err == domain.ErrNotFound {
		return nil, domain.NewValidationError("plan", "plan not found")
	}
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.NewValidationError("plan", "plan is not active")
	}

	gw, ok := u.gateways.Resolve(settings.ActiveGateway)
	if !ok {
		return nil, domain.NewValidationError("gateway", "gateway "+string(settings.ActiveGateway)+" is not supported")
	}

	p, err := model.NewPayment(in.OwnerID, plan, in.Method, in.Customer)
	if err != nil {
		return nil, err
	}
	p.Gateway = settings.ActiveGateway

	req := model.ChargeRequest{
		PaymentID:   p.ID,
		PlanName:    plan.Name,
		AmountCents: p.AmountCents,
		Method:      in.Method,
		Customer:    in.Customer,
		Card:        in.Card,
	}
	res, err := gw.CreateCharge(ctx, creds, req)
	if err != nil {
		// No charge exists at the provider, so nothing is persisted either.
		u.log.Warn().Err(err).Str("gateway", string(p.Gateway)).Msg("charge creation failed")
		return nil, err
	}

	p.GatewayPaymentID = &res.ExternalID
	p.Pix = res.Pix
	p.Boleto = res.Boleto
	p.Card = res.Card

	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	metrics.IncPaymentCreated(string(p.Gateway), string(p.Method))
	u.log.Info().Str("payment_id", p.ID).Str("gateway", string(p.Gateway)).
		Str("method", string(p.Method)).Int64("amount_cents", p.AmountCents).
		Msg("payment created")

	// Synchronous approval (card path): the row was written pending, and the
	// approval goes through the same guard as a webhook would.
	if res.Status == model.PaymentStatusApproved {
		return u.reconcile.Apply(ctx, p, model.PaymentStatusApproved, nil)
	}
	if res.Status != model.PaymentStatusPending && res.Status != "" {
		return u.reconcile.Apply(ctx, p, res.Status, nil)
	}
	return p, nil
}
