// Package usecase holds the business operations of the payment core:
// checkout, status reconciliation, and account provisioning.
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/adapter"
	"nutrifit-payments/internal/domain/ports/repository"
	"nutrifit-payments/internal/infra/metrics"
)

// GatewayResolver maps a configured gateway kind to its adapter.
type GatewayResolver interface {
	Resolve(kind model.GatewayKind) (adapter.Gateway, bool)
}

// Locker is the optional cross-instance lock used to serialize reconciliation
// per payment. The database conditional update is the correctness guard; the
// lock only trims redundant work when a webhook and a poll race.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase updates a payment's stored status from a webhook or a
// poll. Both entry points converge on Apply, the single guarded transition
// path, as do synchronous card approvals from checkout.
type ReconcileUseCase interface {
	// HandleWebhook processes one native gateway notification body. Malformed
	// bodies come back as *domain.ReconciliationError, which receivers log
	// and acknowledge.
	HandleWebhook(ctx context.Context, kind model.GatewayKind, body []byte) error
	// Poll refreshes one payment from the gateway. Stored rejected/expired
	// short-circuit without a live call; a transport failure during the live
	// lookup returns the last known state instead of an error.
	Poll(ctx context.Context, paymentID string) (*model.Payment, error)
	// Apply runs the guarded transition for a known payment and candidate
	// status, firing provisioning on a first transition into approved.
	Apply(ctx context.Context, p *model.Payment, candidate model.PaymentStatus, rawEvent []byte) (*model.Payment, error)
}

type reconcileUC struct {
	payments  repository.PaymentRepository
	settings  repository.SettingsRepository
	gateways  GatewayResolver
	provision ProvisionUseCase
	locker    Locker // may be nil
	log       *zerolog.Logger
}

func NewReconcileUseCase(
	payments repository.PaymentRepository,
	settings repository.SettingsRepository,
	gateways GatewayResolver,
	provision ProvisionUseCase,
	locker Locker,
	logger *zerolog.Logger,
) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		payments:  payments,
		settings:  settings,
		gateways:  gateways,
		provision: provision,
		locker:    locker,
		log:       &l,
	}
}

func (u *reconcileUC) HandleWebhook(ctx context.Context, kind model.GatewayKind, body []byte) error {
	gw, ok := u.gateways.Resolve(kind)
	if !ok {
		metrics.IncWebhookEvent(string(kind), "malformed")
		return &domain.ReconciliationError{Gateway: string(kind), Reason: "unknown gateway"}
	}

	evt, err := gw.ParseWebhook(body)
	if err != nil {
		metrics.IncWebhookEvent(string(kind), "malformed")
		return err
	}

	p, err := u.payments.FindByGatewayID(ctx, repository.NoTX, kind, evt.ExternalID)
	if err == domain.ErrNotFound {
		// A retry for a charge outside our records, or delivery raced the
		// local insert. Acknowledge and move on.
		u.log.Debug().Str("gateway", string(kind)).Str("external_id", evt.ExternalID).
			Msg("webhook for unknown payment, ignoring")
		metrics.IncWebhookEvent(string(kind), "orphan")
		return nil
	}
	if err != nil {
		metrics.IncWebhookEvent(string(kind), "error")
		return err
	}

	candidate := evt.Status
	if candidate == "" {
		// Notification-only event; ask the gateway what actually happened.
		candidate, err = u.liveStatus(ctx, gw, p)
		if err == domain.ErrNoActiveGateway || err == domain.ErrNotFound {
			// The owner removed this gateway's credentials after the charge
			// was created. No retry can ever succeed, so acknowledge instead
			// of letting the provider hammer us with redeliveries.
			u.log.Warn().Str("gateway", string(kind)).Str("payment_id", p.ID).
				Msg("webhook for a gateway with no stored credentials")
			metrics.IncWebhookEvent(string(kind), "unconfigured")
			return &domain.ReconciliationError{Gateway: string(kind), Reason: "gateway credentials no longer configured"}
		}
		if err != nil {
			metrics.IncWebhookEvent(string(kind), "error")
			return err
		}
	}

	if _, err := u.Apply(ctx, p, candidate, body); err != nil {
		metrics.IncWebhookEvent(string(kind), "error")
		return err
	}
	metrics.IncWebhookEvent(string(kind), "applied")
	return nil
}

func (u *reconcileUC) Poll(ctx context.Context, paymentID string) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, paymentID)
	if err != nil {
		return nil, err
	}

	// rejected/expired cannot move again; approved stays pollable because a
	// refund may still land.
	if p.Status == model.PaymentStatusRejected || p.Status == model.PaymentStatusExpired {
		return p, nil
	}
	if p.GatewayPaymentID == nil {
		return p, nil
	}

	gw, ok := u.gateways.Resolve(p.Gateway)
	if !ok {
		return p, nil
	}
	candidate, err := u.liveStatus(ctx, gw, p)
	if err != nil {
		// Transport trouble: fall back to the last known state.
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("live status lookup failed, returning stored status")
		return p, nil
	}
	return u.Apply(ctx, p, candidate, nil)
}

func (u *reconcileUC) liveStatus(ctx context.Context, gw adapter.Gateway, p *model.Payment) (model.PaymentStatus, error) {
	s, err := u.settings.FindByOwner(ctx, repository.NoTX, p.OwnerID)
	if err != nil {
		return "", err
	}
	creds, ok := s.Credentials[p.Gateway]
	if !ok {
		return "", domain.ErrNoActiveGateway
	}
	return gw.ChargeStatus(ctx, creds, *p.GatewayPaymentID)
}

func (u *reconcileUC) Apply(ctx context.Context, p *model.Payment, candidate model.PaymentStatus, rawEvent []byte) (*model.Payment, error) {
	if candidate == p.Status {
		// At-least-once delivery: duplicates are a silent no-op.
		metrics.IncTransitionSkipped("duplicate")
		return p, nil
	}
	if !p.Status.CanTransition(candidate) {
		// Stale or out-of-order observation; the stored status outranks it.
		u.log.Info().Str("payment_id", p.ID).
			Str("stored", string(p.Status)).Str("candidate", string(candidate)).
			Msg("refusing status downgrade")
		metrics.IncTransitionSkipped("stale")
		return p, nil
	}

	if u.locker != nil {
		key := "payments:reconcile:" + p.ID
		if token, err := u.locker.TryLock(ctx, key, 30*time.Second); err == nil {
			defer func() { _ = u.locker.Unlock(ctx, key, token) }()
		}
		// Lock failure is not fatal: ApplyStatus below stays authoritative.
	}

	var paidAt *time.Time
	if candidate == model.PaymentStatusApproved {
		now := time.Now()
		paidAt = &now
	}

	applied, err := u.payments.ApplyStatus(ctx, repository.NoTX, p.ID, candidate, paidAt, rawEvent)
	if err != nil {
		return nil, err
	}
	if !applied {
		// A concurrent reconciler won the race; report what is now stored.
		return u.payments.FindByID(ctx, repository.NoTX, p.ID)
	}

	p.Status = candidate
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	if rawEvent != nil {
		p.RawEvent = rawEvent
	}
	metrics.IncPaymentTransition(string(candidate))

	if candidate == model.PaymentStatusApproved {
		metrics.AddRevenueCents(p.AmountCents)
		// This invocation is the only one that can observe the first
		// transition into approved: ApplyStatus just flipped the row.
		if _, err := u.provision.Provision(ctx, p); err != nil {
			// Payment stays approved; the repair path picks this up.
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("provisioning failed after approval")
		}
	}
	return p, nil
}
