package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stillpoint/massage-bookings/internal/domain"
)

type IntakeRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.IntakeForm, error)
	LatestSubmitted(ctx context.Context, clientID int64) (*domain.IntakeForm, error)
	CreateDraft(ctx context.Context, clientID int64, email string, typ domain.IntakeFormType) (*domain.IntakeForm, error)
	Submit(ctx context.Context, id int64, answers map[string]any) (*domain.IntakeForm, error)
	AttachAppointment(ctx context.Context, formID, appointmentID int64) error
}

type IntakeRepoImpl struct{ pool *pgxpool.Pool }

func NewIntakeRepo(pool *pgxpool.Pool) *IntakeRepoImpl { return &IntakeRepoImpl{pool: pool} }

const intakeCols = `id, COALESCE(client_id, 0), COALESCE(client_email, ''), type, status,
appointment_id, answers, submitted_at, created_at, updated_at`

func scanIntakeForm(row pgx.Row) (*domain.IntakeForm, error) {
	var f domain.IntakeForm
	var answers []byte
	err := row.Scan(
		&f.ID, &f.ClientID, &f.ClientEmail, &f.Type, &f.Status,
		&f.AppointmentID, &answers, &f.SubmittedAt, &f.CreatedAt, &f.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &f.Answers); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func (r *IntakeRepoImpl) GetByID(ctx context.Context, id int64) (*domain.IntakeForm, error) {
	const q = `SELECT ` + intakeCols + ` FROM intake_forms WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanIntakeForm(r.pool.QueryRow(ctx, q, id))
}

func (r *IntakeRepoImpl) LatestSubmitted(ctx context.Context, clientID int64) (*domain.IntakeForm, error) {
	const q = `SELECT ` + intakeCols + ` FROM intake_forms
  WHERE client_id=$1 AND status='submitted'
  ORDER BY submitted_at DESC LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanIntakeForm(r.pool.QueryRow(ctx, q, clientID))
}

func (r *IntakeRepoImpl) CreateDraft(ctx context.Context, clientID int64, email string, typ domain.IntakeFormType) (*domain.IntakeForm, error) {
	const q = `INSERT INTO intake_forms (client_id, client_email, type, status)
  VALUES (NULLIF($1, 0), lower($2), $3, 'draft')
  RETURNING ` + intakeCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanIntakeForm(r.pool.QueryRow(ctx, q, clientID, email, typ))
}

func (r *IntakeRepoImpl) Submit(ctx context.Context, id int64, answers map[string]any) (*domain.IntakeForm, error) {
	payload, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}

	const q = `UPDATE intake_forms SET
    answers=$2, status='submitted', submitted_at=now(), updated_at=now()
  WHERE id=$1 AND status='draft'
  RETURNING ` + intakeCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanIntakeForm(r.pool.QueryRow(ctx, q, id, payload))
}

// AttachAppointment links a form to the appointment it was collected for.
// Always an update; the form row already exists by commit time.
func (r *IntakeRepoImpl) AttachAppointment(ctx context.Context, formID, appointmentID int64) error {
	const q = `UPDATE intake_forms SET appointment_id=$2, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, formID, appointmentID)
	return err
}
