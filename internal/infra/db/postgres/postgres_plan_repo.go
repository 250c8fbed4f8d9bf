package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"nutrifit-payments/internal/domain"
	"nutrifit-payments/internal/domain/model"
	"nutrifit-payments/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, owner_id, name, duration_days, price_cents, features, active, featured, sort_order, created_at, updated_at`

func scanPlan(row rowScanner) (*model.SubscriptionPlan, error) {
	p := &model.SubscriptionPlan{}
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.DurationDays, &p.PriceCents,
		&p.Features, &p.Active, &p.Featured, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	const q = `
INSERT INTO subscription_plans (` + planColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  name=$3, duration_days=$4, price_cents=$5, features=$6, active=$7, featured=$8, sort_order=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.OwnerID, p.Name, p.DurationDays,
		p.PriceCents, p.Features, p.Active, p.Featured, p.SortOrder, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM subscription_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, activeOnly bool) ([]*model.SubscriptionPlan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE owner_id=$1`
	if activeOnly {
		q += ` AND active`
	}
	q += ` ORDER BY sort_order ASC, created_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.SubscriptionPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *planRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM subscription_plans WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
