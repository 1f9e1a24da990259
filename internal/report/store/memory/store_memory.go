// Package memory is the in-memory report store.
package memory

import (
	"context"
	"sync"

	"pehchan/internal/report"
	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

type InMemory struct {
	mu         sync.RWMutex
	byVerif    map[id.VerificationID]*report.Report
	byTracking map[id.TrackingID]*report.Report
}

var _ report.Store = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{
		byVerif:    make(map[id.VerificationID]*report.Report),
		byTracking: make(map[id.TrackingID]*report.Report),
	}
}

func (s *InMemory) Save(_ context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byVerif[r.VerificationID]; exists {
		return sentinel.ErrConflict
	}
	cp := *r
	s.byVerif[r.VerificationID] = &cp
	s.byTracking[r.TrackingID] = &cp
	return nil
}

func (s *InMemory) GetByVerification(_ context.Context, verificationID id.VerificationID) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byVerif[verificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) GetByTracking(_ context.Context, trackingID id.TrackingID) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byTracking[trackingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}
