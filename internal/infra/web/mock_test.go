package web

import (
	"context"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type mockCheckoutUC struct {
	payment *model.Payment
	err     error
	gotIn   usecase.CheckoutInput
}

func (m *mockCheckoutUC) Create(_ context.Context, in usecase.CheckoutInput) (*model.Payment, error) {
	m.gotIn = in
	if m.err != nil {
		return nil, m.err
	}
	return m.payment, nil
}

type mockReconcileUC struct {
	payment     *model.Payment
	pollErr     error
	webhookErr  error
	gotKind     model.GatewayKind
	gotBody     []byte
	webhookHits int
}

func (m *mockReconcileUC) HandleWebhook(_ context.Context, kind model.GatewayKind, body []byte) error {
	m.webhookHits++
	m.gotKind = kind
	m.gotBody = body
	return m.webhookErr
}

func (m *mockReconcileUC) Poll(_ context.Context, _ string) (*model.Payment, error) {
	if m.pollErr != nil {
		return nil, m.pollErr
	}
	return m.payment, nil
}

func (m *mockReconcileUC) Apply(_ context.Context, p *model.Payment, _ model.PaymentStatus, _ []byte) (*model.Payment, error) {
	return p, nil
}

type mockProvisionUC struct {
	repaired  int
	repairErr error
}

func (m *mockProvisionUC) Provision(_ context.Context, _ *model.Payment) (*model.ClientProfile, error) {
	return &model.ClientProfile{ID: "client-1"}, nil
}

func (m *mockProvisionUC) Repair(_ context.Context) (int, error) {
	return m.repaired, m.repairErr
}

type mockPlanUC struct {
	plans   []*model.SubscriptionPlan
	created *model.SubscriptionPlan
	err     error
}

func (m *mockPlanUC) Create(_ context.Context, ownerID, name string, durationDays int, priceCents int64, features []string) (*model.SubscriptionPlan, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, err := model.NewSubscriptionPlan(ownerID, name, durationDays, priceCents, features)
	if err != nil {
		return nil, err
	}
	m.created = p
	return p, nil
}

func (m *mockPlanUC) Update(_ context.Context, _ *model.SubscriptionPlan) error { return m.err }

func (m *mockPlanUC) Get(_ context.Context, _, id string) (*model.SubscriptionPlan, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, m.err
}

func (m *mockPlanUC) List(_ context.Context, _ string, _ bool) ([]*model.SubscriptionPlan, error) {
	return m.plans, m.err
}

func (m *mockPlanUC) Delete(_ context.Context, _, _ string) error { return m.err }

type mockSettingsUC struct {
	settings *model.PaymentSettings
	err      error
}

func (m *mockSettingsUC) Get(_ context.Context, ownerID string) (*model.PaymentSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings != nil {
		return m.settings, nil
	}
	return &model.PaymentSettings{
		OwnerID:     ownerID,
		Credentials: map[model.GatewayKind]model.GatewayCredentials{},
	}, nil
}

func (m *mockSettingsUC) Save(_ context.Context, s *model.PaymentSettings) error {
	m.settings = s
	return m.err
}

func (m *mockSettingsUC) SetCredentials(_ context.Context, _ string, gw model.GatewayKind, creds model.GatewayCredentials) error {
	if m.err != nil {
		return m.err
	}
	if m.settings == nil {
		m.settings = &model.PaymentSettings{Credentials: map[model.GatewayKind]model.GatewayCredentials{}}
	}
	m.settings.Credentials[gw] = creds
	return nil
}

func (m *mockSettingsUC) ActivateGateway(_ context.Context, _ string, gw model.GatewayKind) error {
	if m.err != nil {
		return m.err
	}
	if m.settings == nil {
		m.settings = &model.PaymentSettings{Credentials: map[model.GatewayKind]model.GatewayCredentials{}}
	}
	m.settings.ActiveGateway = gw
	return nil
}
