package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, owner_id, client_id, plan_id, gateway, gateway_payment_id, amount_cents, duration_days, method, status, customer_name, customer_email, customer_phone, customer_cpf, pix_qr_code, pix_qr_code_base64, pix_expires_at, boleto_url, boleto_barcode, boleto_due_date, card_last4, card_brand, card_installments, paid_at, raw_event, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	p := &model.Payment{}
	var (
		pixQR, pixQRB64      *string
		pixExpires           *time.Time
		boletoURL, boletoBar *string
		boletoDue            *time.Time
		cardLast4, cardBrand *string
		cardInstallments     *int
	)
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.ClientID, &p.PlanID, &p.Gateway, &p.GatewayPaymentID,
		&p.AmountCents, &p.DurationDays, &p.Method, &p.Status,
		&p.Customer.Name, &p.Customer.Email, &p.Customer.Phone, &p.Customer.CPF,
		&pixQR, &pixQRB64, &pixExpires,
		&boletoURL, &boletoBar, &boletoDue,
		&cardLast4, &cardBrand, &cardInstallments,
		&p.PaidAt, &p.RawEvent, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if pixQR != nil {
		p.Pix = &model.PixCharge{QRCode: *pixQR}
		if pixQRB64 != nil {
			p.Pix.QRCodeBase64 = *pixQRB64
		}
		if pixExpires != nil {
			p.Pix.ExpiresAt = *pixExpires
		}
	}
	if boletoURL != nil {
		p.Boleto = &model.BoletoCharge{URL: *boletoURL}
		if boletoBar != nil {
			p.Boleto.Barcode = *boletoBar
		}
		if boletoDue != nil {
			p.Boleto.DueDate = *boletoDue
		}
	}
	if cardLast4 != nil {
		p.Card = &model.CardCharge{Last4: *cardLast4}
		if cardBrand != nil {
			p.Card.Brand = *cardBrand
		}
		if cardInstallments != nil {
			p.Card.Installments = *cardInstallments
		}
	}
	return p, nil
}

func paymentArgs(p *model.Payment) []interface{} {
	var (
		pixQR, pixQRB64      *string
		pixExpires           *time.Time
		boletoURL, boletoBar *string
		boletoDue            *time.Time
		cardLast4, cardBrand *string
		cardInstallments     *int
	)
	if p.Pix != nil {
		pixQR, pixQRB64, pixExpires = &p.Pix.QRCode, &p.Pix.QRCodeBase64, &p.Pix.ExpiresAt
	}
	if p.Boleto != nil {
		boletoURL, boletoBar, boletoDue = &p.Boleto.URL, &p.Boleto.Barcode, &p.Boleto.DueDate
	}
	if p.Card != nil {
		cardLast4, cardBrand, cardInstallments = &p.Card.Last4, &p.Card.Brand, &p.Card.Installments
	}
	return []interface{}{
		p.ID, p.OwnerID, p.ClientID, p.PlanID, p.Gateway, p.GatewayPaymentID,
		p.AmountCents, p.DurationDays, p.Method, p.Status,
		p.Customer.Name, p.Customer.Email, p.Customer.Phone, p.Customer.CPF,
		pixQR, pixQRB64, pixExpires,
		boletoURL, boletoBar, boletoDue,
		cardLast4, cardBrand, cardInstallments,
		p.PaidAt, p.RawEvent, p.ErrorMessage, p.CreatedAt, p.UpdatedAt,
	}
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (` + paymentColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28
) ON CONFLICT (id) DO UPDATE SET
  client_id=$3, gateway=$5, gateway_payment_id=$6,
  pix_qr_code=$15, pix_qr_code_base64=$16, pix_expires_at=$17,
  boleto_url=$18, boleto_barcode=$19, boleto_due_date=$20,
  card_last4=$21, card_brand=$22, card_installments=$23,
  error_message=$26, updated_at=$28;`

	_, err := execSQL(ctx, r.pool, tx, q, paymentArgs(p)...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByGatewayID(ctx context.Context, tx repository.Tx, gw model.GatewayKind, externalID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE gateway=$1 AND gateway_payment_id=$2 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, gw, externalID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// ApplyStatus is the single mutation path for payment status. The WHERE clause
// encodes the allowed transitions (pending may move anywhere, approved only to
// refunded), so two concurrent reconcilers can never both see a first
// transition into approved.
func (r *paymentRepo) ApplyStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, paidAt *time.Time, rawEvent []byte) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       paid_at = COALESCE($3, paid_at),
       raw_event = COALESCE($4, raw_event),
       updated_at = NOW()
 WHERE id = $1
   AND (
        (status = 'pending' AND $2 <> 'pending')
     OR (status = 'approved' AND $2 = 'refunded')
   );`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), paidAt, rawEvent)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) LinkClient(ctx context.Context, tx repository.Tx, paymentID, clientID string) error {
	const q = `UPDATE payments SET client_id=$2, updated_at=NOW() WHERE id=$1 AND client_id IS NULL;`
	_, err := execSQL(ctx, r.pool, tx, q, paymentID, clientID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) ListApprovedUnlinked(ctx context.Context, tx repository.Tx, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='approved' AND client_id IS NULL ORDER BY created_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
