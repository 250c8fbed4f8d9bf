package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/adapter"
	"nutrifit-payments/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- payment repository ---

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*model.Payment

	applyCalls int
	saveErr    error
	linkErr    error
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[string]*model.Payment)}
}

func (m *mockPaymentRepo) Save(_ context.Context, _ repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) FindByGatewayID(_ context.Context, _ repository.Tx, gw model.GatewayKind, externalID string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.Gateway == gw && p.GatewayPaymentID != nil && *p.GatewayPaymentID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockPaymentRepo) ApplyStatus(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time, rawEvent []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyCalls++
	p, ok := m.payments[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !p.Status.CanTransition(status) {
		return false, nil
	}
	p.Status = status
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	if rawEvent != nil {
		p.RawEvent = rawEvent
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockPaymentRepo) LinkClient(_ context.Context, _ repository.Tx, paymentID, clientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkErr != nil {
		return m.linkErr
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return domain.ErrNotFound
	}
	if p.ClientID == nil {
		p.ClientID = &clientID
	}
	return nil
}

func (m *mockPaymentRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) ListApprovedUnlinked(_ context.Context, _ repository.Tx, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.payments {
		if p.Status == model.PaymentStatusApproved && p.ClientID == nil {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *mockPaymentRepo) get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id]
}

func (m *mockPaymentRepo) snapshot() map[string]*model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]*model.Payment, len(m.payments))
	for id, p := range m.payments {
		cp := *p
		snap[id] = &cp
	}
	return snap
}

func (m *mockPaymentRepo) restore(snap map[string]*model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = snap
}

// --- plan repository ---

type mockPlanRepo struct {
	mu    sync.Mutex
	plans map[string]*model.SubscriptionPlan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: make(map[string]*model.SubscriptionPlan)}
}

func (m *mockPlanRepo) Save(_ context.Context, _ repository.Tx, p *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.plans[p.ID] = &cp
	return nil
}

func (m *mockPlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPlanRepo) ListByOwner(_ context.Context, _ repository.Tx, ownerID string, activeOnly bool) ([]*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionPlan
	for _, p := range m.plans {
		if p.OwnerID != ownerID {
			continue
		}
		if activeOnly && !p.Active {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockPlanRepo) Delete(_ context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.plans, id)
	return nil
}

// --- settings repository ---

type mockSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]*model.PaymentSettings
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{settings: make(map[string]*model.PaymentSettings)}
}

func (m *mockSettingsRepo) FindByOwner(_ context.Context, _ repository.Tx, ownerID string) (*model.PaymentSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[ownerID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSettingsRepo) Save(_ context.Context, _ repository.Tx, s *model.PaymentSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.settings[s.OwnerID] = &cp
	return nil
}

// --- transaction manager ---

// mockTxManager gives the in-memory repos transactional semantics: it
// snapshots payment and profile state before the callback and restores both
// when the callback errors, mirroring a database rollback.
type mockTxManager struct {
	payments *mockPaymentRepo
	profiles *mockProfileRepo

	txCalls int
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.txCalls++
	paySnap := m.payments.snapshot()
	profSnap := m.profiles.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.payments.restore(paySnap)
		m.profiles.restore(profSnap)
		return err
	}
	return nil
}

// --- profile repository ---

type mockProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*model.ClientProfile
	saveErr  error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.ClientProfile)}
}

func (m *mockProfileRepo) Save(_ context.Context, _ repository.Tx, p *model.ClientProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (m *mockProfileRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileRepo) FindByEmail(_ context.Context, _ repository.Tx, ownerID, email string) (*model.ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.OwnerID == ownerID && p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockProfileRepo) snapshot() map[string]*model.ClientProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := make(map[string]*model.ClientProfile, len(m.profiles))
	for id, p := range m.profiles {
		cp := *p
		snap[id] = &cp
	}
	return snap
}

func (m *mockProfileRepo) restore(snap map[string]*model.ClientProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = snap
}

func (m *mockProfileRepo) ListExpiringWithin(_ context.Context, _ repository.Tx, days int, now time.Time) ([]*model.ClientProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.AddDate(0, 0, days)
	var out []*model.ClientProfile
	for _, p := range m.profiles {
		if !p.Active || p.PlanEndDate == nil {
			continue
		}
		if p.PlanEndDate.After(now) && p.PlanEndDate.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- gateway adapter ---

type mockGateway struct {
	kind model.GatewayKind

	chargeResult *model.ChargeResult
	chargeErr    error
	chargeCalls  int

	status     model.PaymentStatus
	statusErr  error
	statusGets int

	webhookEvent *model.WebhookEvent
	webhookErr   error
}

func (g *mockGateway) Kind() model.GatewayKind { return g.kind }

func (g *mockGateway) CreateCharge(_ context.Context, _ model.GatewayCredentials, _ model.ChargeRequest) (*model.ChargeResult, error) {
	g.chargeCalls++
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return g.chargeResult, nil
}

func (g *mockGateway) ChargeStatus(_ context.Context, _ model.GatewayCredentials, _ string) (model.PaymentStatus, error) {
	g.statusGets++
	if g.statusErr != nil {
		return "", g.statusErr
	}
	return g.status, nil
}

func (g *mockGateway) ParseWebhook(_ []byte) (*model.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhookEvent, nil
}

type mockResolver struct {
	gateways map[model.GatewayKind]adapter.Gateway
}

func (r *mockResolver) Resolve(kind model.GatewayKind) (adapter.Gateway, bool) {
	gw, ok := r.gateways[kind]
	return gw, ok
}

func resolverFor(gw *mockGateway) *mockResolver {
	return &mockResolver{gateways: map[model.GatewayKind]adapter.Gateway{gw.kind: gw}}
}

// --- notifier ---

type mockNotifier struct {
	mu   sync.Mutex
	sent []adapter.Notification
	err  error
}

func (n *mockNotifier) Send(_ context.Context, m adapter.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, m)
	return nil
}

func (n *mockNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// --- provision stub (for reconcile tests that only count invocations) ---

type mockProvision struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *mockProvision) Provision(_ context.Context, _ *model.Payment) (*model.ClientProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &model.ClientProfile{ID: "client-1"}, nil
}

func (p *mockProvision) Repair(_ context.Context) (int, error) { return 0, nil }

func (p *mockProvision) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// --- shared fixtures ---

func testPlan(ownerID string) *model.SubscriptionPlan {
	p, _ := model.NewSubscriptionPlan(ownerID, "Acompanhamento Mensal", 30, 9990, []string{"dieta", "treino"})
	return p
}

func testSettings(ownerID string, gw model.GatewayKind) *model.PaymentSettings {
	return &model.PaymentSettings{
		OwnerID:       ownerID,
		ActiveGateway: gw,
		Credentials: map[model.GatewayKind]model.GatewayCredentials{
			gw: {APIKey: "key", AccessToken: "token", SecretKey: "secret", ClientID: "cid", ClientSecret: "csec"},
		},
		PixEnabled:    true,
		BoletoEnabled: true,
		CardEnabled:   true,
	}
}

func testPayment(ownerID string, plan *model.SubscriptionPlan, gw model.GatewayKind, externalID string) *model.Payment {
	p, _ := model.NewPayment(ownerID, plan, model.MethodPix, model.Customer{
		Name:  "Maria Silva",
		Email: "maria@example.com",
	})
	p.Gateway = gw
	p.GatewayPaymentID = &externalID
	return p
}
