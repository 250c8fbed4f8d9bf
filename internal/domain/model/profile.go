package model

import (
	"time"

	"github.com/google/uuid"

	"nutrifit-payments/internal/domain"
)

// ClientProfile is a client account provisioned (or extended) when a payment
// is approved.
type ClientProfile struct {
	ID            string
	OwnerID       string
	Name          string
	Email         string
	Phone         string
	CPF           string
	PasswordHash  string
	PlanStartDate *time.Time
	PlanEndDate   *time.Time
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *ClientProfile) IsZero() bool { return p == nil || p.ID == "" }

// NewClientProfile creates an active profile whose plan runs from now for the
// given number of days.
func NewClientProfile(ownerID string, customer Customer, passwordHash string, durationDays int, now time.Time) (*ClientProfile, error) {
	if ownerID == "" || customer.Email == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	start := now
	end := now.AddDate(0, 0, durationDays)
	return &ClientProfile{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Name:          customer.Name,
		Email:         customer.Email,
		Phone:         customer.Phone,
		CPF:           customer.CPF,
		PasswordHash:  passwordHash,
		PlanStartDate: &start,
		PlanEndDate:   &end,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ExtendPlan applies the renewal law: a still-active plan is extended from its
// current end date; a lapsed (or unset) plan restarts from now. An unexpired
// future end date is never shortened.
func (p *ClientProfile) ExtendPlan(durationDays int, now time.Time) {
	if p.PlanEndDate != nil && p.PlanEndDate.After(now) {
		end := p.PlanEndDate.AddDate(0, 0, durationDays)
		p.PlanEndDate = &end
	} else {
		start := now
		end := now.AddDate(0, 0, durationDays)
		p.PlanStartDate = &start
		p.PlanEndDate = &end
	}
	p.Active = true
	p.UpdatedAt = now
}
