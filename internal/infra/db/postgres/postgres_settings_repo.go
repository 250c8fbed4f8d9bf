package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/repository"
	"nutrifit-payments/internal/infra/security"
)

var _ repository.SettingsRepository = (*settingsRepo)(nil)

// settingsRepo stores per-owner checkout configuration. The credentials map is
// serialized to JSON and encrypted at rest; only this repository ever sees the
// ciphertext.
type settingsRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewSettingsRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *settingsRepo {
	return &settingsRepo{pool: pool, enc: enc}
}

type storedCredentials struct {
	APIKey       string `json:"api_key,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	PublicKey    string `json:"public_key,omitempty"`
	SecretKey    string `json:"secret_key,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	PixKey       string `json:"pix_key,omitempty"`
}

func (r *settingsRepo) encryptCredentials(creds map[model.GatewayKind]model.GatewayCredentials) (string, error) {
	out := make(map[string]storedCredentials, len(creds))
	for k, c := range creds {
		out[string(k)] = storedCredentials{
			APIKey:       c.APIKey,
			AccessToken:  c.AccessToken,
			PublicKey:    c.PublicKey,
			SecretKey:    c.SecretKey,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			PixKey:       c.PixKey,
		}
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return r.enc.Encrypt(string(raw))
}

func (r *settingsRepo) decryptCredentials(ciphertext string) (map[model.GatewayKind]model.GatewayCredentials, error) {
	if ciphertext == "" {
		return map[model.GatewayKind]model.GatewayCredentials{}, nil
	}
	raw, err := r.enc.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	var in map[string]storedCredentials
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, err
	}
	out := make(map[model.GatewayKind]model.GatewayCredentials, len(in))
	for k, c := range in {
		out[model.GatewayKind(k)] = model.GatewayCredentials{
			APIKey:       c.APIKey,
			AccessToken:  c.AccessToken,
			PublicKey:    c.PublicKey,
			SecretKey:    c.SecretKey,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			PixKey:       c.PixKey,
		}
	}
	return out, nil
}

func (r *settingsRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.PaymentSettings, error) {
	const q = `SELECT owner_id, active_gateway, credentials, pix_enabled, boleto_enabled, card_enabled, display_name, logo_url, support_phone, updated_at FROM payment_settings WHERE owner_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}

	s := &model.PaymentSettings{}
	var ciphertext string
	if err := row.Scan(&s.OwnerID, &s.ActiveGateway, &ciphertext, &s.PixEnabled,
		&s.BoletoEnabled, &s.CardEnabled, &s.DisplayName, &s.LogoURL, &s.SupportPhone, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	creds, err := r.decryptCredentials(ciphertext)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	s.Credentials = creds
	return s, nil
}

func (r *settingsRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSettings) error {
	ciphertext, err := r.encryptCredentials(s.Credentials)
	if err != nil {
		return domain.ErrOperationFailed
	}
	const q = `
INSERT INTO payment_settings (
  owner_id, active_gateway, credentials, pix_enabled, boleto_enabled, card_enabled, display_name, logo_url, support_phone, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (owner_id) DO UPDATE SET
  active_gateway=$2, credentials=$3, pix_enabled=$4, boleto_enabled=$5, card_enabled=$6, display_name=$7, logo_url=$8, support_phone=$9, updated_at=$10;`

	_, err = execSQL(ctx, r.pool, tx, q, s.OwnerID, s.ActiveGateway, ciphertext,
		s.PixEnabled, s.BoletoEnabled, s.CardEnabled, s.DisplayName, s.LogoURL, s.SupportPhone, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
