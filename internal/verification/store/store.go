// Package store defines the persistence contract for verifications.
package store

import (
	"context"

	"pehchan/internal/verification/models"
	id "pehchan/pkg/domain"
)

// Store persists Verification aggregates.
//
// Execute is the transition primitive: it loads the verification, runs
// validate, and only if validate returns nil runs mutate and commits the
// result, all while holding that verification's lock. Concurrent Executes
// against the same id serialize; stale reads can never commit.
type Store interface {
	Create(ctx context.Context, v *models.Verification) error
	Get(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Verification, error)
	Execute(ctx context.Context, verificationID id.VerificationID,
		validate func(*models.Verification) error,
		mutate func(*models.Verification) error) (*models.Verification, error)
}
