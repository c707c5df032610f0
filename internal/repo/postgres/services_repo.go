package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stillpoint/massage-bookings/internal/domain"
)

type ServicesRepo interface {
	List(ctx context.Context) ([]domain.Service, error)
	GetByID(ctx context.Context, id int64) (*domain.Service, error)
}

type ServicesRepoImpl struct{ pool *pgxpool.Pool }

func NewServicesRepo(pool *pgxpool.Pool) *ServicesRepoImpl { return &ServicesRepoImpl{pool: pool} }

const serviceCols = `id, name, COALESCE(description, ''), duration_minutes, price_cents, is_consultation, active`

func scanService(row pgx.Row) (*domain.Service, error) {
	var s domain.Service
	var minutes int
	err := row.Scan(&s.ID, &s.Name, &s.Description, &minutes, &s.PriceCents, &s.IsConsultation, &s.Active)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Duration = time.Duration(minutes) * time.Minute
	return &s, nil
}

func (r *ServicesRepoImpl) List(ctx context.Context) ([]domain.Service, error) {
	const q = `SELECT ` + serviceCols + ` FROM services WHERE active ORDER BY is_consultation DESC, name`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *ServicesRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Service, error) {
	const q = `SELECT ` + serviceCols + ` FROM services WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanService(r.pool.QueryRow(ctx, q, id))
}
