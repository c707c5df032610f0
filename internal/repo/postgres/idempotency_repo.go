package postgres

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo backs the commit orchestrator's duplicate guard across
// process restarts. Keys are draft IDs, hashed for consistent length.
type IdempotencyRepo interface {
	CheckOrCreate(ctx context.Context, draftID string, appointmentID int64) (existingAppointmentID int64, err error)
	CleanupExpired(ctx context.Context) (int64, error)
}

type IdempotencyRepoImpl struct{ pool *pgxpool.Pool }

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepoImpl {
	return &IdempotencyRepoImpl{pool: pool}
}

func (r *IdempotencyRepoImpl) CheckOrCreate(ctx context.Context, draftID string, appointmentID int64) (int64, error) {
	hasher := sha256.New()
	hasher.Write([]byte(draftID))
	keyHash := fmt.Sprintf("%x", hasher.Sum(nil))

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var existingID int64
	const checkQuery = `SELECT appointment_id FROM booking_idempotency WHERE key_hash = $1`
	err := r.pool.QueryRow(ctx, checkQuery, keyHash).Scan(&existingID)

	if err == nil {
		return existingID, nil
	}

	if err != pgx.ErrNoRows {
		return 0, err
	}

	if appointmentID > 0 {
		const insertQuery = `
			INSERT INTO booking_idempotency (key_hash, appointment_id, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key_hash) DO NOTHING`

		expiresAt := time.Now().Add(24 * time.Hour)
		if _, err := r.pool.Exec(ctx, insertQuery, keyHash, appointmentID, expiresAt); err != nil {
			return 0, err
		}
	}

	return 0, nil
}

func (r *IdempotencyRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	const query = `DELETE FROM booking_idempotency WHERE expires_at < now()`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
