package model

import "time"

// GatewayCredentials holds one provider's secret material. Only the fields a
// given provider uses are populated; credentials of inactive gateways are
// inert. Never logged in full (see String).
type GatewayCredentials struct {
	APIKey       string // asaas
	AccessToken  string // mercadopago
	PublicKey    string // mercadopago card tokenization
	SecretKey    string // pagarme
	ClientID     string // efi
	ClientSecret string // efi
	PixKey       string // efi receiving key
}

func (c GatewayCredentials) IsZero() bool {
	return c.APIKey == "" && c.AccessToken == "" && c.SecretKey == "" && c.ClientID == ""
}

// String redacts all secret fields.
func (c GatewayCredentials) String() string { return "credentials(redacted)" }

// PaymentSettings is the per-owner checkout configuration: which gateway is
// active, its credentials, and which payment methods are offered. Edited by
// the owner through the admin surface; read at payment-creation time.
type PaymentSettings struct {
	OwnerID       string
	ActiveGateway GatewayKind
	Credentials   map[GatewayKind]GatewayCredentials
	PixEnabled    bool
	BoletoEnabled bool
	CardEnabled   bool

	// Public checkout presentation
	DisplayName  string
	LogoURL      string
	SupportPhone string

	UpdatedAt time.Time
}

func (s *PaymentSettings) MethodEnabled(m PaymentMethod) bool {
	switch m {
	case MethodPix:
		return s.PixEnabled
	case MethodBoleto:
		return s.BoletoEnabled
	case MethodCreditCard:
		return s.CardEnabled
	}
	return false
}

// ActiveCredentials returns the credential set of the active gateway.
func (s *PaymentSettings) ActiveCredentials() (GatewayCredentials, bool) {
	if s.ActiveGateway == GatewayNone {
		return GatewayCredentials{}, false
	}
	c, ok := s.Credentials[s.ActiveGateway]
	if !ok || c.IsZero() {
		return GatewayCredentials{}, false
	}
	return c, true
}
