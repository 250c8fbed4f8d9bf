package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/adapter"
)

func newProvisionFixture(t *testing.T) (*provisionUC, *mockProfileRepo, *mockPlanRepo, *mockPaymentRepo, *mockNotifier) {
	t.Helper()
	profiles := newMockProfileRepo()
	plans := newMockPlanRepo()
	payments := newMockPaymentRepo()
	notifier := &mockNotifier{}
	tm := &mockTxManager{payments: payments, profiles: profiles}
	uc := NewProvisionUseCase(tm, profiles, plans, payments, notifier, newTestLogger())
	return uc, profiles, plans, payments, notifier
}

func approvedPayment(t *testing.T, payments *mockPaymentRepo, plan *model.SubscriptionPlan) *model.Payment {
	t.Helper()
	p := testPayment("owner-1", plan, model.GatewayAsaas, "pay_prov")
	p.Status = model.PaymentStatusApproved
	if err := payments.Save(context.Background(), nil, p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProvision_CreatesNewAccount(t *testing.T) {
	uc, profiles, plans, payments, notifier := newProvisionFixture(t)

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}
	p := approvedPayment(t, payments, plan)

	prof, err := uc.Provision(context.Background(), p)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if !prof.Active {
		t.Fatal("new profile must be active")
	}
	if prof.PlanEndDate == nil || time.Until(*prof.PlanEndDate) < 29*24*time.Hour {
		t.Fatal("plan end date not set to the plan duration")
	}
	if len(profiles.profiles) != 1 {
		t.Fatalf("profiles stored = %d, want 1", len(profiles.profiles))
	}

	stored := payments.get(p.ID)
	if stored.ClientID == nil || *stored.ClientID != prof.ID {
		t.Fatal("payment not linked to the created profile")
	}

	if notifier.sentCount() != 1 {
		t.Fatalf("notifications = %d, want 1", notifier.sentCount())
	}
	n := notifier.sent[0]
	if n.Type != adapter.NotificationWelcome {
		t.Fatalf("notification type = %s, want welcome", n.Type)
	}
	if n.Data.Password == "" {
		t.Fatal("welcome notification must carry the generated password")
	}
	if len(n.Data.Password) != 8 {
		t.Fatalf("password length = %d, want 8", len(n.Data.Password))
	}
	if bcrypt.CompareHashAndPassword([]byte(prof.PasswordHash), []byte(n.Data.Password)) != nil {
		t.Fatal("stored hash does not match the notified password")
	}
}

func TestProvision_LinksExistingAccountByEmail(t *testing.T) {
	uc, profiles, plans, payments, notifier := newProvisionFixture(t)

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}

	// A lapsed account with the checkout email already exists for this owner.
	past := time.Now().AddDate(0, 0, -10)
	existing, err := model.NewClientProfile("owner-1", model.Customer{
		Name:  "Maria Silva",
		Email: "maria@example.com",
	}, "hash", 30, past.AddDate(0, 0, -30))
	if err != nil {
		t.Fatal(err)
	}
	existing.PlanEndDate = &past
	existing.Active = false
	if err := profiles.Save(context.Background(), nil, existing); err != nil {
		t.Fatal(err)
	}

	p := approvedPayment(t, payments, plan)
	prof, err := uc.Provision(context.Background(), p)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if prof.ID != existing.ID {
		t.Fatal("must reuse the existing profile, not create a new one")
	}
	if len(profiles.profiles) != 1 {
		t.Fatal("a second profile was created")
	}
	if !prof.Active {
		t.Fatal("lapsed profile must be reactivated")
	}
	// Lapsed plan restarts from now, not from the old end date.
	if prof.PlanEndDate.Before(time.Now().AddDate(0, 0, 29)) {
		t.Fatal("plan did not restart from now")
	}
	if stored := payments.get(p.ID); stored.ClientID == nil || *stored.ClientID != existing.ID {
		t.Fatal("payment not linked")
	}
	if notifier.sentCount() != 1 || notifier.sent[0].Type != adapter.NotificationRenewal {
		t.Fatal("expected a single renewal notification")
	}
	if notifier.sent[0].Data.Password != "" {
		t.Fatal("renewal must not carry a password")
	}
}

func TestProvision_RenewalExtendsActivePlan(t *testing.T) {
	uc, profiles, plans, payments, _ := newProvisionFixture(t)

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}

	// Active plan with 10 days left; renewal must stack on the end date.
	prof, err := model.NewClientProfile("owner-1", model.Customer{
		Name:  "Maria Silva",
		Email: "maria@example.com",
	}, "hash", 30, time.Now().AddDate(0, 0, -20))
	if err != nil {
		t.Fatal(err)
	}
	if err := profiles.Save(context.Background(), nil, prof); err != nil {
		t.Fatal(err)
	}
	oldEnd := *prof.PlanEndDate

	p := approvedPayment(t, payments, plan)
	p.ClientID = &prof.ID
	if err := payments.Save(context.Background(), nil, p); err != nil {
		t.Fatal(err)
	}

	got, err := uc.Provision(context.Background(), p)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	want := oldEnd.AddDate(0, 0, plan.DurationDays)
	if !got.PlanEndDate.Equal(want) {
		t.Fatalf("end date = %v, want %v", got.PlanEndDate, want)
	}
}

func TestProvision_FallsBackToSnapshotWhenPlanDeleted(t *testing.T) {
	uc, _, _, payments, _ := newProvisionFixture(t)

	plan := testPlan("owner-1")
	p := approvedPayment(t, payments, plan) // plan never saved to the repo

	prof, err := uc.Provision(context.Background(), p)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	want := time.Now().AddDate(0, 0, p.DurationDays)
	if prof.PlanEndDate.Before(want.Add(-time.Minute)) || prof.PlanEndDate.After(want.Add(time.Minute)) {
		t.Fatalf("end date = %v, want ~%v (snapshot duration)", prof.PlanEndDate, want)
	}
}

func TestProvision_StoreFailureIsReported(t *testing.T) {
	uc, profiles, plans, payments, notifier := newProvisionFixture(t)
	profiles.saveErr = errors.New("disk full")

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}
	p := approvedPayment(t, payments, plan)

	_, err := uc.Provision(context.Background(), p)
	var perr *domain.ProvisioningError
	if !errors.As(err, &perr) {
		t.Fatalf("want ProvisioningError, got %v", err)
	}
	if notifier.sentCount() != 0 {
		t.Fatal("no notification on failed provisioning")
	}
}

func TestRepair_ProvisionsApprovedUnlinked(t *testing.T) {
	uc, profiles, plans, payments, notifier := newProvisionFixture(t)

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}
	p := approvedPayment(t, payments, plan)

	n, err := uc.Repair(context.Background())
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("repaired = %d, want 1", n)
	}
	if len(profiles.profiles) != 1 {
		t.Fatal("repair did not create the missing profile")
	}
	if payments.get(p.ID).ClientID == nil {
		t.Fatal("repair did not link the payment")
	}
	if notifier.sentCount() != 1 {
		t.Fatal("repair should send the welcome notification")
	}
}

func TestProvision_LinkFailureLeavesNoProfile(t *testing.T) {
	uc, profiles, plans, payments, notifier := newProvisionFixture(t)

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}
	p := approvedPayment(t, payments, plan)
	payments.linkErr = errors.New("connection reset")

	_, err := uc.Provision(context.Background(), p)
	var perr *domain.ProvisioningError
	if !errors.As(err, &perr) {
		t.Fatalf("want ProvisioningError, got %v", err)
	}
	// The profile write must roll back with the failed link: a leftover
	// profile would be found by email on the next attempt and extended a
	// second time for the same payment.
	if len(profiles.profiles) != 0 {
		t.Fatalf("profiles stored = %d, want 0 after rollback", len(profiles.profiles))
	}
	if notifier.sentCount() != 0 {
		t.Fatal("no notification on failed provisioning")
	}

	// The payment is still approved-and-unlinked, so Repair recovers it and
	// the account ends up with exactly one plan duration.
	payments.linkErr = nil
	n, err := uc.Repair(context.Background())
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("repaired = %d, want 1", n)
	}
	if len(profiles.profiles) != 1 {
		t.Fatal("repair did not create the profile")
	}
	prof, err := profiles.FindByEmail(context.Background(), nil, "owner-1", p.Customer.Email)
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	want := time.Now().AddDate(0, 0, plan.DurationDays)
	if prof.PlanEndDate.Before(want.Add(-time.Minute)) || prof.PlanEndDate.After(want.Add(time.Minute)) {
		t.Fatalf("end date = %v, want ~%v (exactly one duration)", prof.PlanEndDate, want)
	}
}

func TestRepair_AfterLinkFailureExtendsOnce(t *testing.T) {
	uc, profiles, plans, payments, _ := newProvisionFixture(t)

	plan := testPlan("owner-1")
	if err := plans.Save(context.Background(), nil, plan); err != nil {
		t.Fatal(err)
	}

	// Active account with 10 days left, matched by checkout email.
	existing, err := model.NewClientProfile("owner-1", model.Customer{
		Name:  "Maria Silva",
		Email: "maria@example.com",
	}, "hash", 30, time.Now().AddDate(0, 0, -20))
	if err != nil {
		t.Fatal(err)
	}
	if err := profiles.Save(context.Background(), nil, existing); err != nil {
		t.Fatal(err)
	}
	oldEnd := *existing.PlanEndDate

	p := approvedPayment(t, payments, plan)
	payments.linkErr = errors.New("connection reset")
	if _, err := uc.Provision(context.Background(), p); err == nil {
		t.Fatal("expected provisioning failure")
	}

	// The extension rolled back with the failed link.
	got, err := profiles.FindByID(context.Background(), nil, existing.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.PlanEndDate.Equal(oldEnd) {
		t.Fatalf("end date = %v after rollback, want unchanged %v", got.PlanEndDate, oldEnd)
	}

	payments.linkErr = nil
	n, err := uc.Repair(context.Background())
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if n != 1 {
		t.Fatalf("repaired = %d, want 1", n)
	}
	got, err = profiles.FindByID(context.Background(), nil, existing.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	// One approved payment buys exactly one duration, failed attempt included.
	want := oldEnd.AddDate(0, 0, plan.DurationDays)
	if !got.PlanEndDate.Equal(want) {
		t.Fatalf("end date = %v, want %v (a single extension)", got.PlanEndDate, want)
	}
	if len(profiles.profiles) != 1 {
		t.Fatal("repair must reuse the existing profile")
	}
}
