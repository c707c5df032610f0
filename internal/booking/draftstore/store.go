// Package draftstore holds in-progress booking drafts server-side, keyed
// by draft ID. Drafts expire with the session TTL; an expired or unknown
// ID means the client starts the wizard over.
package draftstore

import (
	"context"
	"errors"

	"github.com/stillpoint/massage-bookings/internal/booking"
)

var ErrNotFound = errors.New("booking draft not found or expired")

type Store interface {
	Save(ctx context.Context, d *booking.Draft) error
	Get(ctx context.Context, id string) (*booking.Draft, error)
	Delete(ctx context.Context, id string) error
}
