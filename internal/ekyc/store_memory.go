package ekyc

import (
	"context"
	"sync"
	"time"

	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

// InMemoryStore is the SessionStore for unit tests and local runs. Expiry is
// checked lazily on read, matching how the redis keys behave.
type InMemoryStore struct {
	mu           sync.Mutex
	now          func() time.Time
	reservations map[id.VerificationID]time.Time // when the cooldown ends
	sessions     map[id.VerificationID]sessionRecord
}

type sessionRecord struct {
	session   Session
	expiresAt time.Time
}

var _ SessionStore = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		now:          time.Now,
		reservations: make(map[id.VerificationID]time.Time),
		sessions:     make(map[id.VerificationID]sessionRecord),
	}
}

// WithClock overrides the time source. Test hook.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) ReserveSend(_ context.Context, verificationID id.VerificationID, cooldown time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if until, ok := s.reservations[verificationID]; ok && now.Before(until) {
		return false, nil
	}
	s.reservations[verificationID] = now.Add(cooldown)
	return true, nil
}

func (s *InMemoryStore) ReleaseSend(_ context.Context, verificationID id.VerificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reservations, verificationID)
	return nil
}

func (s *InMemoryStore) SaveSession(_ context.Context, sess Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.VerificationID] = sessionRecord{session: sess, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) GetSession(_ context.Context, verificationID id.VerificationID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[verificationID]
	if !ok {
		return Session{}, sentinel.ErrNotFound
	}
	if !s.now().Before(rec.expiresAt) {
		delete(s.sessions, verificationID)
		return Session{}, sentinel.ErrExpired
	}
	return rec.session, nil
}

func (s *InMemoryStore) ClearSession(_ context.Context, verificationID id.VerificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, verificationID)
	return nil
}
