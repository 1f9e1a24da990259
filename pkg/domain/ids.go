// Package domain provides typed identifiers shared across bounded contexts.
//
// These are domain primitives: parsing enforces validity once at the edge so
// services never handle raw strings. A zero value is detectable via IsNil.
package domain

import (
	"github.com/google/uuid"

	dErrors "pehchan/pkg/domain-errors"
)

// VerificationID identifies a verification aggregate.
type VerificationID uuid.UUID

// UserID identifies the owning user of a verification.
type UserID uuid.UUID

// ReportID identifies a generated verification report. Reports share the
// identifier of the verification they describe.
type ReportID = VerificationID

// NewVerificationID returns a freshly minted verification ID.
func NewVerificationID() VerificationID {
	return VerificationID(uuid.New())
}

// ParseVerificationID validates and returns a VerificationID. Empty, malformed
// and nil UUIDs are all rejected with CodeValidation.
func ParseVerificationID(s string) (VerificationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return VerificationID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid verification id")
	}
	if u == uuid.Nil {
		return VerificationID{}, dErrors.New(dErrors.CodeValidation, "verification id must not be the nil uuid")
	}
	return VerificationID(u), nil
}

func (v VerificationID) String() string {
	return uuid.UUID(v).String()
}

func (v VerificationID) IsNil() bool {
	return uuid.UUID(v) == uuid.Nil
}

// MarshalText renders the ID in canonical uuid form so JSON clients see a
// string, not the underlying byte array.
func (v VerificationID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(v).String()), nil
}

func (v *VerificationID) UnmarshalText(b []byte) error {
	parsed, err := ParseVerificationID(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseUserID validates and returns a UserID. Empty, malformed and nil UUIDs
// are all rejected with CodeValidation.
func ParseUserID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, dErrors.Wrap(err, dErrors.CodeValidation, "invalid user id")
	}
	if u == uuid.Nil {
		return UserID{}, dErrors.New(dErrors.CodeValidation, "user id must not be the nil uuid")
	}
	return UserID(u), nil
}

func (u UserID) String() string {
	return uuid.UUID(u).String()
}

func (u UserID) IsNil() bool {
	return uuid.UUID(u) == uuid.Nil
}

// MarshalText renders the ID in canonical uuid form so JSON clients see a
// string, not the underlying byte array.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(u).String()), nil
}

func (u *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// OrderID is the gateway-issued identifier for a payment order. Its format is
// owned by the gateway, so it stays an opaque string.
type OrderID string

func (o OrderID) String() string { return string(o) }

func (o OrderID) IsNil() bool { return o == "" }

// TrackingID is the short human-shareable code for a completed report. It is
// derived deterministically from the verification ID, never random.
type TrackingID string

func (t TrackingID) String() string { return string(t) }

func (t TrackingID) IsNil() bool { return t == "" }
