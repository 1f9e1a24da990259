package report

import (
	"context"

	id "pehchan/pkg/domain"
)

// Store persists assembled reports. Keyed by verification id with a tracking
// id lookup for the public fetch path.
type Store interface {
	Save(ctx context.Context, r *Report) error
	GetByVerification(ctx context.Context, verificationID id.VerificationID) (*Report, error)
	GetByTracking(ctx context.Context, trackingID id.TrackingID) (*Report, error)
}
