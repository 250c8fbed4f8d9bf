package repository

import (
	"context"

	"nutrifit-payments/internal/domain/model"
)

type PlanRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string, activeOnly bool) ([]*model.SubscriptionPlan, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
