// Package memory is the in-memory Store used by unit tests and local runs.
package memory

import (
	"context"
	"sync"

	"pehchan/internal/verification/models"
	"pehchan/internal/verification/store"
	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

type entry struct {
	mu sync.Mutex // serializes Execute per verification
	v  *models.Verification
}

// InMemory keeps verifications in a map guarded by a table lock, with a
// per-entry mutex so transitions on one verification never block another.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.VerificationID]*entry
}

var _ store.Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[id.VerificationID]*entry)}
}

func (s *InMemory) Create(_ context.Context, v *models.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[v.ID]; exists {
		return sentinel.ErrConflict
	}
	s.entries[v.ID] = &entry{v: v.Clone()}
	return nil
}

func (s *InMemory) Get(_ context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	s.mu.RLock()
	e, ok := s.entries[verificationID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.v.Clone(), nil
}

func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Verification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Verification
	for _, e := range s.entries {
		e.mu.Lock()
		if e.v.UserID == userID {
			out = append(out, e.v.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

func (s *InMemory) Execute(ctx context.Context, verificationID id.VerificationID,
	validate func(*models.Verification) error,
	mutate func(*models.Verification) error) (*models.Verification, error) {

	s.mu.RLock()
	e, ok := s.entries[verificationID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// validate and mutate run on a copy; the stored aggregate only moves
	// forward when both succeed.
	working := e.v.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	if err := mutate(working); err != nil {
		return nil, err
	}
	e.v = working
	return working.Clone(), nil
}
