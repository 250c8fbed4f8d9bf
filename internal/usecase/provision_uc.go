package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/adapter"
	"nutrifit-payments/internal/domain/ports/repository"
	"nutrifit-payments/internal/infra/metrics"
	"nutrifit-payments/internal/infra/security"
)

// Compile-time check
var _ ProvisionUseCase = (*provisionUC)(nil)

// ProvisionUseCase creates or extends a client account as the consequence of
// payment approval. Callers gate invocation on the first transition into
// approved; the handler itself does not defend against duplicate calls.
type ProvisionUseCase interface {
	Provision(ctx context.Context, p *model.Payment) (*model.ClientProfile, error)
	// Repair re-runs provisioning for approved payments that never got an
	// account linked (an operator-triggered recovery, not an automatic retry).
	Repair(ctx context.Context) (int, error)
}

type provisionUC struct {
	tm       repository.TransactionManager
	profiles repository.ProfileRepository
	plans    repository.PlanRepository
	payments repository.PaymentRepository
	notifier adapter.Notifier
	log      *zerolog.Logger
}

func NewProvisionUseCase(
	tm repository.TransactionManager,
	profiles repository.ProfileRepository,
	plans repository.PlanRepository,
	payments repository.PaymentRepository,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *provisionUC {
	l := logger.With().Str("component", "ProvisionUC").Logger()
	return &provisionUC{
		tm:       tm,
		profiles: profiles,
		plans:    plans,
		payments: payments,
		notifier: notifier,
		log:      &l,
	}
}

func (u *provisionUC) Provision(ctx context.Context, p *model.Payment) (*model.ClientProfile, error) {
	now := time.Now()

	// Plan duration comes from the live plan when it still exists, falling
	// back to the snapshot taken at checkout.
	duration := p.DurationDays
	planName := ""
	if plan, err := u.plans.FindByID(ctx, repository.NoTX, p.PlanID); err == nil {
		duration = plan.DurationDays
		planName = plan.Name
	}

	// The account write and the payment link commit or roll back together.
	// A partial failure must leave no saved profile behind: Repair re-runs
	// Provision for approved-and-unlinked payments, and a leftover profile
	// would absorb a second ExtendPlan for the same payment.
	var (
		prof      *model.ClientProfile
		password  string
		outcome   string
		notifType adapter.NotificationType
	)
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	err := u.tm.WithTx(ctx, txOpts, func(ctx context.Context, tx repository.Tx) error {
		// Renewal: the payment already references an account.
		if p.ClientID != nil {
			existing, err := u.profiles.FindByID(ctx, tx, *p.ClientID)
			if err != nil {
				return err
			}
			existing.ExtendPlan(duration, now)
			if err := u.profiles.Save(ctx, tx, existing); err != nil {
				return err
			}
			prof, outcome, notifType = existing, "renewed", adapter.NotificationRenewal
			return nil
		}

		// Returning client paying from a fresh checkout: match by email and
		// link.
		existing, err := u.profiles.FindByEmail(ctx, tx, p.OwnerID, p.Customer.Email)
		if err == nil {
			existing.ExtendPlan(duration, now)
			if err := u.profiles.Save(ctx, tx, existing); err != nil {
				return err
			}
			if err := u.payments.LinkClient(ctx, tx, p.ID, existing.ID); err != nil {
				return err
			}
			prof, outcome, notifType = existing, "linked", adapter.NotificationRenewal
			return nil
		}
		if err != domain.ErrNotFound {
			return err
		}

		// New client: generate a one-time credential and create the account.
		password, err = security.GeneratePassword(8)
		if err != nil {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		created, err := model.NewClientProfile(p.OwnerID, p.Customer, string(hash), duration, now)
		if err != nil {
			return err
		}
		if err := u.profiles.Save(ctx, tx, created); err != nil {
			return err
		}
		if err := u.payments.LinkClient(ctx, tx, p.ID, created.ID); err != nil {
			return err
		}
		prof, outcome, notifType = created, "created", adapter.NotificationWelcome
		return nil
	})
	if err != nil {
		metrics.IncProvisioning("failed")
		return nil, &domain.ProvisioningError{PaymentID: p.ID, Err: err}
	}

	// Only new accounts get the generated credential in their notification.
	if outcome != "created" {
		password = ""
	}
	u.notify(ctx, notifType, prof, password, planName)
	metrics.IncProvisioning(outcome)
	if outcome == "created" {
		u.log.Info().Str("payment_id", p.ID).Str("client_id", prof.ID).Msg("client account provisioned")
	}
	return prof, nil
}

func (u *provisionUC) Repair(ctx context.Context) (int, error) {
	orphans, err := u.payments.ListApprovedUnlinked(ctx, repository.NoTX, 100)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, p := range orphans {
		if _, err := u.Provision(ctx, p); err != nil {
			u.log.Error().Err(err).Str("payment_id", p.ID).Msg("repair provisioning failed")
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (u *provisionUC) notify(ctx context.Context, typ adapter.NotificationType, prof *model.ClientProfile, password, planName string) {
	var end time.Time
	if prof.PlanEndDate != nil {
		end = *prof.PlanEndDate
	}
	n := adapter.Notification{
		Type: typ,
		To:   prof.Email,
		Data: adapter.NotificationData{
			Name:        prof.Name,
			Email:       prof.Email,
			Password:    password,
			PlanName:    planName,
			PlanEndDate: end,
		},
	}
	if err := u.notifier.Send(ctx, n); err != nil {
		// Notification delivery is best effort; the account state is already
		// committed.
		u.log.Error().Err(err).Str("client_id", prof.ID).Str("type", string(typ)).Msg("notification dispatch failed")
	}
}
