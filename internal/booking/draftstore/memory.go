package draftstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stillpoint/massage-bookings/internal/booking"
)

// MemoryStore keeps drafts in process memory. Used in tests and when no
// Redis is configured (single-instance dev deployments).
type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[string]entry
	ttl    time.Duration
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		drafts: make(map[string]entry),
		ttl:    ttl,
	}
}

func (s *MemoryStore) Save(ctx context.Context, d *booking.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.ID] = entry{payload: payload, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*booking.Draft, error) {
	s.mu.RLock()
	e, ok := s.drafts[id]
	s.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrNotFound
	}

	var d booking.Draft
	if err := json.Unmarshal(e.payload, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, id)
	return nil
}
