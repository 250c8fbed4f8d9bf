package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/repository"
)

var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase manages the subscription plans an owner offers at checkout.
type PlanUseCase interface {
	Create(ctx context.Context, ownerID, name string, durationDays int, priceCents int64, features []string) (*model.SubscriptionPlan, error)
	Update(ctx context.Context, plan *model.SubscriptionPlan) error
	Get(ctx context.Context, ownerID, id string) (*model.SubscriptionPlan, error)
	List(ctx context.Context, ownerID string, activeOnly bool) ([]*model.SubscriptionPlan, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	l := logger.With().Str("component", "PlanUC").Logger()
	return &planUC{plans: plans, log: &l}
}

func (u *planUC) Create(ctx context.Context, ownerID, name string, durationDays int, priceCents int64, features []string) (*model.SubscriptionPlan, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.NewValidationError("name", "must not be empty")
	}
	if durationDays <= 0 {
		return nil, domain.NewValidationError("duration_days", "must be positive")
	}
	if priceCents <= 0 {
		return nil, domain.NewValidationError("price_cents", "must be positive")
	}
	plan, err := model.NewSubscriptionPlan(ownerID, name, durationDays, priceCents, features)
	if err != nil {
		return nil, err
	}
	if err := u.plans.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	u.log.Info().Str("plan_id", plan.ID).Str("owner_id", ownerID).Msg("plan created")
	return plan, nil
}

func (u *planUC) Update(ctx context.Context, plan *model.SubscriptionPlan) error {
	existing, err := u.plans.FindByID(ctx, repository.NoTX, plan.ID)
	if err != nil {
		return err
	}
	if existing.OwnerID != plan.OwnerID {
		return domain.ErrNotFound
	}
	if plan.DurationDays <= 0 {
		return domain.NewValidationError("duration_days", "must be positive")
	}
	if plan.PriceCents <= 0 {
		return domain.NewValidationError("price_cents", "must be positive")
	}
	return u.plans.Save(ctx, repository.NoTX, plan)
}

func (u *planUC) Get(ctx context.Context, ownerID, id string) (*model.SubscriptionPlan, error) {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if plan.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (u *planUC) List(ctx context.Context, ownerID string, activeOnly bool) ([]*model.SubscriptionPlan, error) {
	return u.plans.ListByOwner(ctx, repository.NoTX, ownerID, activeOnly)
}

func (u *planUC) Delete(ctx context.Context, ownerID, id string) error {
	plan, err := u.plans.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return err
	}
	if plan.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	// Payments keep their own price and duration snapshot, so removing the
	// plan does not affect settled or in-flight charges.
	return u.plans.Delete(ctx, repository.NoTX, id)
}
