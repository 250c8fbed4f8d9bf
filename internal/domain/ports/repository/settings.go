package repository

import (
	"context"

	"nutrifit-payments/internal/domain/model"
)

type SettingsRepository interface {
	FindByOwner(ctx context.Context, tx Tx, ownerID string) (*model.PaymentSettings, error)
	Save(ctx context.Context, tx Tx, s *model.PaymentSettings) error
}
