package repository

import (
	"context"
	"time"

	"nutrifit-payments/internal/domain/model"
)

type ProfileRepository interface {
	Save(ctx context.Context, tx Tx, p *model.ClientProfile) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ClientProfile, error)
	// FindByEmail is scoped per owner; two coaches may share a client email.
	FindByEmail(ctx context.Context, tx Tx, ownerID, email string) (*model.ClientProfile, error)
	// ListExpiringWithin returns active profiles whose plan end date falls
	// between now and now+days.
	ListExpiringWithin(ctx context.Context, tx Tx, days int, now time.Time) ([]*model.ClientProfile, error)
}
