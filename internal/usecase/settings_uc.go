package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/repository"
)

var _ SettingsUseCase = (*settingsUC)(nil)

// SettingsUseCase manages an owner's checkout configuration: the active
// gateway, its credentials, and which payment methods are offered.
type SettingsUseCase interface {
	Get(ctx context.Context, ownerID string) (*model.PaymentSettings, error)
	Save(ctx context.Context, s *model.PaymentSettings) error
	SetCredentials(ctx context.Context, ownerID string, gw model.GatewayKind, creds model.GatewayCredentials) error
	ActivateGateway(ctx context.Context, ownerID string, gw model.GatewayKind) error
}

type settingsUC struct {
	settings repository.SettingsRepository
	log      *zerolog.Logger
}

func NewSettingsUseCase(settings repository.SettingsRepository, logger *zerolog.Logger) *settingsUC {
	l := logger.With().Str("component", "SettingsUC").Logger()
	return &settingsUC{settings: settings, log: &l}
}

// Get returns the owner's settings, or an empty default when none were saved
// yet (no methods enabled, no active gateway).
func (u *settingsUC) Get(ctx context.Context, ownerID string) (*model.PaymentSettings, error) {
	s, err := u.settings.FindByOwner(ctx, repository.NoTX, ownerID)
	if err == domain.ErrNotFound {
		return &model.PaymentSettings{
			OwnerID:     ownerID,
			Credentials: map[model.GatewayKind]model.GatewayCredentials{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (u *settingsUC) Save(ctx context.Context, s *model.PaymentSettings) error {
	if s.OwnerID == "" {
		return domain.NewValidationError("owner_id", "must not be empty")
	}
	if s.ActiveGateway != model.GatewayNone {
		if _, ok := s.ActiveCredentials(); !ok {
			return domain.NewValidationError("active_gateway", "no credentials configured for the active gateway")
		}
	}
	s.UpdatedAt = time.Now()
	return u.settings.Save(ctx, repository.NoTX, s)
}

// SetCredentials stores one provider's credential set without changing the
// active gateway, so an owner can configure a provider before switching to it.
func (u *settingsUC) SetCredentials(ctx context.Context, ownerID string, gw model.GatewayKind, creds model.GatewayCredentials) error {
	if gw == model.GatewayNone {
		return domain.NewValidationError("gateway", "unknown gateway")
	}
	if creds.IsZero() {
		return domain.NewValidationError("credentials", "must not be empty")
	}
	s, err := u.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	if s.Credentials == nil {
		s.Credentials = map[model.GatewayKind]model.GatewayCredentials{}
	}
	s.Credentials[gw] = creds
	s.UpdatedAt = time.Now()
	if err := u.settings.Save(ctx, repository.NoTX, s); err != nil {
		return err
	}
	u.log.Info().Str("owner_id", ownerID).Str("gateway", string(gw)).Msg("gateway credentials updated")
	return nil
}

// ActivateGateway switches the gateway used by new checkouts. Payments already
// created keep the gateway recorded on them.
func (u *settingsUC) ActivateGateway(ctx context.Context, ownerID string, gw model.GatewayKind) error {
	s, err := u.Get(ctx, ownerID)
	if err != nil {
		return err
	}
	s.ActiveGateway = gw
	if gw != model.GatewayNone {
		if _, ok := s.ActiveCredentials(); !ok {
			return domain.NewValidationError("gateway", "no credentials configured for this gateway")
		}
	}
	s.UpdatedAt = time.Now()
	if err := u.settings.Save(ctx, repository.NoTX, s); err != nil {
		return err
	}
	u.log.Info().Str("owner_id", ownerID).Str("gateway", string(gw)).Msg("active gateway changed")
	return nil
}
