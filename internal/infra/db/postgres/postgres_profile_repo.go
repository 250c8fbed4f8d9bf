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

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct{ pool *pgxpool.Pool }

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

const profileColumns = `id, owner_id, name, email, phone, cpf, password_hash, plan_start_date, plan_end_date, active, created_at, updated_at`

func scanProfile(row rowScanner) (*model.ClientProfile, error) {
	p := &model.ClientProfile{}
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Email, &p.Phone, &p.CPF,
		&p.PasswordHash, &p.PlanStartDate, &p.PlanEndDate, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *profileRepo) Save(ctx context.Context, tx repository.Tx, p *model.ClientProfile) error {
	const q = `
INSERT INTO client_profiles (` + profileColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  name=$3, email=$4, phone=$5, cpf=$6, password_hash=$7, plan_start_date=$8, plan_end_date=$9, active=$10, updated_at=$12;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.OwnerID, p.Name, p.Email, p.Phone,
		p.CPF, p.PasswordHash, p.PlanStartDate, p.PlanEndDate, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *profileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ClientProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM client_profiles WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanProfile(row)
}

func (r *profileRepo) FindByEmail(ctx context.Context, tx repository.Tx, ownerID, email string) (*model.ClientProfile, error) {
	const q = `SELECT ` + profileColumns + ` FROM client_profiles WHERE owner_id=$1 AND lower(email)=lower($2) LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID, email)
	if err != nil {
		return nil, err
	}
	return scanProfile(row)
}

func (r *profileRepo) ListExpiringWithin(ctx context.Context, tx repository.Tx, days int, now time.Time) ([]*model.ClientProfile, error) {
	const q = `SELECT ` + profileColumns + ` FROM client_profiles WHERE active AND plan_end_date IS NOT NULL AND plan_end_date > $1 AND plan_end_date <= $2 ORDER BY plan_end_date ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, now.AddDate(0, 0, days))
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.ClientProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
