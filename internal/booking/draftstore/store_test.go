package draftstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stillpoint/massage-bookings/internal/booking"
	"github.com/stillpoint/massage-bookings/internal/domain"
)

func sampleDraft() *booking.Draft {
	d := booking.NewDraft(0)
	d.Update(booking.Patch{Service: &domain.Service{ID: 3, Name: "Swedish 60", PriceCents: 11000, Active: true}})
	return d
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	ctx := context.Background()

	d := sampleDraft()
	require.NoError(t, store.Save(ctx, d))

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	require.NotNil(t, got.Service)
	assert.Equal(t, int64(3), got.Service.ID)
	assert.Equal(t, int64(11000), got.Service.PriceCents)
}

func TestRedisStoreMissingDraft(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	d := sampleDraft()
	require.NoError(t, store.Save(ctx, d))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	ctx := context.Background()

	d := sampleDraft()
	require.NoError(t, store.Save(ctx, d))
	require.NoError(t, store.Delete(ctx, d.ID))

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	d := sampleDraft()
	require.NoError(t, store.Save(ctx, d))

	got, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	// Stored drafts are snapshots: mutating the original must not leak.
	d.Service.PriceCents = 99999
	got2, err := store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11000), got2.Service.PriceCents)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	ctx := context.Background()

	d := sampleDraft()
	require.NoError(t, store.Save(ctx, d))

	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	d := sampleDraft()
	require.NoError(t, store.Save(ctx, d))
	require.NoError(t, store.Delete(ctx, d.ID))

	_, err := store.Get(ctx, d.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
