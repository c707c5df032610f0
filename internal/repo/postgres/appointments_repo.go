package postgres

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stillpoint/massage-bookings/internal/domain"
)

type AppointmentsRepo interface {
	Create(ctx context.Context, in *domain.AppointmentInput) (*domain.Appointment, error)
	CreateConsultation(ctx context.Context, appointmentID int64, typ domain.ConsultationType) (*domain.Consultation, error)
	SetConsultationRoom(ctx context.Context, consultationID int64, roomURL string) error
	GetByID(ctx context.Context, id int64) (*domain.Appointment, error)
	GetConsultationByAppointment(ctx context.Context, appointmentID int64) (*domain.Consultation, error)
	ListByClient(ctx context.Context, clientID int64, limit, offset int, status *domain.AppointmentStatus) ([]domain.Appointment, error)
	ListByEmail(ctx context.Context, email string, limit, offset int) ([]domain.Appointment, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	AttachPaymentIntent(ctx context.Context, id int64, intentID string) error
	SetPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) error
	CompleteConsultation(ctx context.Context, consultationID int64) (int64, error)
}

type AppointmentsRepoImpl struct{ pool *pgxpool.Pool }

func NewAppointmentsRepo(pool *pgxpool.Pool) *AppointmentsRepoImpl {
	return &AppointmentsRepoImpl{pool: pool}
}

const appointmentCols = `a.id, a.client_id, a.service_id, s.name, a.status,
a.date, a.starts_at, a.ends_at, a.price_cents,
a.payment_preference, a.payment_status, a.payment_intent_id,
a.confirmation_number, a.intake_form_id, a.rescheduled_from_id,
a.notes, a.created_at, a.updated_at`

func scanAppointment(row pgx.Row) (*domain.Appointment, error) {
	var a domain.Appointment
	err := row.Scan(
		&a.ID, &a.ClientID, &a.ServiceID, &a.ServiceName, &a.Status,
		&a.Date, &a.StartsAt, &a.EndsAt, &a.PriceCents,
		&a.PaymentPreference, &a.PaymentStatus, &a.PaymentIntentID,
		&a.ConfirmationNumber, &a.IntakeFormID, &a.RescheduledFromID,
		&a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentsRepoImpl) Create(ctx context.Context, in *domain.AppointmentInput) (*domain.Appointment, error) {
	const q = `WITH inserted AS (
    INSERT INTO appointments (
      client_id, service_id, status, date, starts_at, ends_at,
      price_cents, payment_preference, payment_status,
      confirmation_number, rescheduled_from_id, notes
    ) VALUES ($1,$2,'confirmed',$3,$4,$5,$6,$7,$8,$9,$10,$11)
    RETURNING *
  )
  SELECT ` + appointmentCols + `
  FROM inserted a JOIN services s ON s.id = a.service_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := r.pool.QueryRow(ctx, q,
		in.ClientID, in.ServiceID, in.Date, in.StartsAt, in.EndsAt,
		in.PriceCents, in.PaymentPreference, in.PaymentStatus,
		in.ConfirmationNumber, in.RescheduledFromID, in.Notes,
	)
	return scanAppointment(row)
}

func (r *AppointmentsRepoImpl) CreateConsultation(ctx context.Context, appointmentID int64, typ domain.ConsultationType) (*domain.Consultation, error) {
	const q = `INSERT INTO consultations (appointment_id, type)
  VALUES ($1,$2)
  RETURNING id, appointment_id, type, COALESCE(room_url, ''), completed, created_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Consultation
	err := r.pool.QueryRow(ctx, q, appointmentID, typ).Scan(
		&c.ID, &c.AppointmentID, &c.Type, &c.RoomURL, &c.Completed, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *AppointmentsRepoImpl) SetConsultationRoom(ctx context.Context, consultationID int64, roomURL string) error {
	const q = `UPDATE consultations SET room_url=$2 WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, consultationID, roomURL)
	return err
}

func (r *AppointmentsRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	const q = `SELECT ` + appointmentCols + `
  FROM appointments a JOIN services s ON s.id = a.service_id
  WHERE a.id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return scanAppointment(r.pool.QueryRow(ctx, q, id))
}

func (r *AppointmentsRepoImpl) GetConsultationByAppointment(ctx context.Context, appointmentID int64) (*domain.Consultation, error) {
	const q = `SELECT id, appointment_id, type, COALESCE(room_url, ''), completed, created_at
  FROM consultations WHERE appointment_id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.Consultation
	err := r.pool.QueryRow(ctx, q, appointmentID).Scan(
		&c.ID, &c.AppointmentID, &c.Type, &c.RoomURL, &c.Completed, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *AppointmentsRepoImpl) ListByClient(ctx context.Context, clientID int64, limit, offset int, status *domain.AppointmentStatus) ([]domain.Appointment, error) {
	q := `SELECT ` + appointmentCols + `
  FROM appointments a JOIN services s ON s.id = a.service_id
  WHERE a.client_id=$1`
	args := []any{clientID}

	if status != nil {
		q += ` AND a.status=$2`
		args = append(args, *status)
	}
	q += ` ORDER BY a.starts_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *AppointmentsRepoImpl) ListByEmail(ctx context.Context, email string, limit, offset int) ([]domain.Appointment, error) {
	const q = `SELECT ` + appointmentCols + `
  FROM appointments a
  JOIN services s ON s.id = a.service_id
  JOIN clients c ON c.id = a.client_id
  WHERE lower(c.email)=lower($1)
  ORDER BY a.starts_at DESC LIMIT $2 OFFSET $3`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, email, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *AppointmentsRepoImpl) Cancel(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE appointments SET status='canceled', updated_at=now()
  WHERE id=$1 AND status NOT IN ('canceled','completed')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *AppointmentsRepoImpl) AttachPaymentIntent(ctx context.Context, id int64, intentID string) error {
	const q = `UPDATE appointments SET payment_intent_id=$2, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id, intentID)
	return err
}

func (r *AppointmentsRepoImpl) SetPaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus) error {
	const q = `UPDATE appointments SET payment_status=$2, updated_at=now() WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, q, id, status)
	return err
}

// CompleteConsultation marks the consultation done and returns the owning
// client id, so the caller can consume the free-consultation offer.
func (r *AppointmentsRepoImpl) CompleteConsultation(ctx context.Context, consultationID int64) (int64, error) {
	const q = `WITH done AS (
    UPDATE consultations SET completed=true WHERE id=$1 AND completed=false
    RETURNING appointment_id
  )
  UPDATE appointments a SET status='completed', updated_at=now()
  FROM done WHERE a.id = done.appointment_id
  RETURNING a.client_id`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var clientID int64
	err := r.pool.QueryRow(ctx, q, consultationID).Scan(&clientID)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return clientID, err
}

func collectAppointments(rows pgx.Rows) ([]domain.Appointment, error) {
	var out []domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
