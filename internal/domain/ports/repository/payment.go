package repository

import (
	"context"
	"time"

	"nutrifit-payments/internal/domain/model"
)

// PaymentRepository persists payment attempts. Rows are append-then-mutate:
// status changes go exclusively through ApplyStatus so the allowed-transition
// table is enforced at the storage level.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByGatewayID looks a payment up by its provider-assigned id. (gateway,
	// external id) is unique; it is the correlation key for webhooks.
	FindByGatewayID(ctx context.Context, tx Tx, gw model.GatewayKind, externalID string) (*model.Payment, error)

	// ApplyStatus performs the guarded transition as one conditional UPDATE:
	// it writes the candidate status (plus paidAt and the raw event when
	// given) only if the stored status allows the transition, and reports
	// whether a row actually changed. Two concurrent callers can therefore
	// never both observe a first transition into approved.
	ApplyStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus, paidAt *time.Time, rawEvent []byte) (applied bool, err error)

	// LinkClient sets the payment's client account exactly once.
	LinkClient(ctx context.Context, tx Tx, paymentID, clientID string) error

	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	// ListApprovedUnlinked feeds the provisioning repair path.
	ListApprovedUnlinked(ctx context.Context, tx Tx, limit int) ([]*model.Payment, error)
}
