package audit

import "context"

// Tee fans Append out to several stores. The first sink is authoritative for
// reads; later sink failures are returned but do not stop earlier appends.
type Tee struct {
	sinks []Store
}

func NewTee(sinks ...Store) *Tee {
	return &Tee{sinks: sinks}
}

func (t *Tee) Append(ctx context.Context, event Event) error {
	var firstErr error
	for _, s := range t.sinks {
		if err := s.Append(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tee) ListBySubject(ctx context.Context, subject string) ([]Event, error) {
	if len(t.sinks) == 0 {
		return nil, nil
	}
	return t.sinks[0].ListBySubject(ctx, subject)
}
