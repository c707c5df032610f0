package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stillpoint/massage-bookings/internal/domain"
)

type ClientsRepo interface {
	FindByID(ctx context.Context, id int64) (*domain.Client, error)
	FindByEmail(ctx context.Context, email string) (*domain.Client, error)
	CreateGuest(ctx context.Context, in domain.GuestProfileInput) (int64, error)
	MarkConsultationConsumed(ctx context.Context, clientID int64) error
	SetCredentials(ctx context.Context, clientID int64, passwordHash string) error
	CredentialsByEmail(ctx context.Context, email string) (clientID int64, passwordHash string, err error)
}

type ClientsRepoImpl struct{ pool *pgxpool.Pool }

func NewClientsRepo(pool *pgxpool.Pool) *ClientsRepoImpl { return &ClientsRepoImpl{pool: pool} }

const clientCols = `id, first_name, last_name, email, phone, is_guest,
has_had_free_consultation, consultation_count, created_at, updated_at`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.IsGuest,
		&c.HasHadFreeConsultation, &c.ConsultationCount, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientsRepoImpl) FindByID(ctx context.Context, id int64) (*domain.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanClient(r.pool.QueryRow(ctx, q, id))
}

func (r *ClientsRepoImpl) FindByEmail(ctx context.Context, email string) (*domain.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE lower(email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanClient(r.pool.QueryRow(ctx, q, email))
}

// CreateGuest inserts a guest profile, or reuses the existing record when
// the email is already on the books. Booking twice as a guest should not
// fork a client's history.
func (r *ClientsRepoImpl) CreateGuest(ctx context.Context, in domain.GuestProfileInput) (int64, error) {
	const q = `INSERT INTO clients (first_name, last_name, email, phone, is_guest)
  VALUES ($1,$2,lower($3),$4,true)
  ON CONFLICT (email) DO UPDATE SET
    first_name = EXCLUDED.first_name,
    last_name  = EXCLUDED.last_name,
    phone      = EXCLUDED.phone,
    updated_at = now()
  RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.pool.QueryRow(ctx, q, in.FirstName, in.LastName, in.Email, in.Phone).Scan(&id)
	return id, err
}

func (r *ClientsRepoImpl) MarkConsultationConsumed(ctx context.Context, clientID int64) error {
	const q = `UPDATE clients SET
    has_had_free_consultation = true,
    consultation_count = consultation_count + 1,
    updated_at = now()
  WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, clientID)
	return err
}

func (r *ClientsRepoImpl) SetCredentials(ctx context.Context, clientID int64, passwordHash string) error {
	const q = `UPDATE clients SET password_hash=$2, is_guest=false, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, clientID, passwordHash)
	return err
}

func (r *ClientsRepoImpl) CredentialsByEmail(ctx context.Context, email string) (int64, string, error) {
	const q = `SELECT id, COALESCE(password_hash, '') FROM clients WHERE lower(email)=lower($1)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	var hash string
	err := r.pool.QueryRow(ctx, q, email).Scan(&id, &hash)
	if err == pgx.ErrNoRows {
		return 0, "", nil
	}
	return id, hash, err
}
