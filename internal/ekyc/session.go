// Package ekyc tracks short-lived authority OTP sessions and the resend
// cooldown reservation that keeps concurrent requests from double-sending.
package ekyc

import (
	"context"
	"time"

	id "pehchan/pkg/domain"
)

// Session is the state between a successful OTP send and its confirmation.
// It expires on its own; a confirmed or failed session is cleared explicitly.
type Session struct {
	VerificationID   id.VerificationID `json:"verification_id"`
	AuthoritySession string            `json:"authority_session"`
	IDNumber         string            `json:"id_number"`
	RequestedAt      time.Time         `json:"requested_at"`
}

// SessionStore persists sessions and arbitrates the resend cooldown.
//
// ReserveSend must be atomic: exactly one of any set of concurrent callers
// for the same verification gets true until the cooldown elapses or the
// reservation is released. This is the gate in front of the authority call,
// so a send that never happened can give its slot back via ReleaseSend.
type SessionStore interface {
	ReserveSend(ctx context.Context, verificationID id.VerificationID, cooldown time.Duration) (bool, error)
	ReleaseSend(ctx context.Context, verificationID id.VerificationID) error
	SaveSession(ctx context.Context, s Session, ttl time.Duration) error
	GetSession(ctx context.Context, verificationID id.VerificationID) (Session, error)
	ClearSession(ctx context.Context, verificationID id.VerificationID) error
}
