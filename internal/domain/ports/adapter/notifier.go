package adapter

import (
	"context"
	"time"
)

type NotificationType string

const (
	NotificationWelcome  NotificationType = "welcome"
	NotificationRenewal  NotificationType = "renewal"
	NotificationExpiring NotificationType = "expiring"
)

// NotificationData is the template payload. Password is only set on welcome
// messages, for the generated one-time credential.
type NotificationData struct {
	Name        string
	Email       string
	Password    string
	PlanName    string
	PlanEndDate time.Time
}

type Notification struct {
	Type NotificationType
	To   string
	Data NotificationData
}

// Notifier is the outbound notification collaborator (email delivery lives
// outside this service).
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}
