package model

import (
	"time"

	"github.com/google/uuid"

	"nutrifit-payments/internal/domain"
)

// SubscriptionPlan is a purchasable plan with a fixed duration and a price in
// integer cents. Payments snapshot price and duration at creation, so
// administrative edits here never rewrite history.
type SubscriptionPlan struct {
	ID           string
	OwnerID      string
	Name         string
	DurationDays int
	PriceCents   int64
	Features     []string
	Active       bool
	Featured     bool
	SortOrder    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// NewSubscriptionPlan validates and constructs a plan.
func NewSubscriptionPlan(ownerID, name string, durationDays int, priceCents int64, features []string) (*SubscriptionPlan, error) {
	if ownerID == "" || name == "" || durationDays <= 0 || priceCents <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &SubscriptionPlan{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Name:         name,
		DurationDays: durationDays,
		PriceCents:   priceCents,
		Features:     features,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
