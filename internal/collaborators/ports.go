// Package collaborators defines the contracts the verification core consumes
// from the outside world. Implementations are constructed once at process
// start and injected; the core never selects them lazily through a mutable
// singleton, and never stores authority session state in package globals.
package collaborators

import (
	"context"

	"pehchan/internal/identity"
)

// UploadedFile is what the storage collaborator returns for one stored blob.
// The core only ever keeps the URL/key, never raw bytes.
type UploadedFile struct {
	URL      string
	Key      string
	Size     int64
	MimeType string
}

// Storage stores document files and mints time-limited read access.
type Storage interface {
	Upload(ctx context.Context, content []byte, path string) (UploadedFile, error)
	SignedURL(ctx context.Context, key string, ttlSeconds int) (string, error)
}

// OTPRequest carries one authority OTP issuance.
type OTPRequest struct {
	IDNumber     string
	CaptchaToken string
	SessionID    string
}

// EKYCData is the authority's demographic answer after OTP confirmation.
// The core tolerates extra fields the authority may add later.
type EKYCData struct {
	identity.Record
	Photo          []byte
	MaskedIDNumber string
}

// Authority is the eKYC identity authority. Opaque: the OTP protocol's
// internals live behind this contract. Failures surface as coded errors
// (upstream_unavailable, identity_lookup_incomplete, or validation for a
// rejected OTP). ConfirmOTP with an empty sessionID performs the plain
// registry lookup the no-OTP methods use.
type Authority interface {
	RequestOTP(ctx context.Context, req OTPRequest) (accepted bool, err error)
	ConfirmOTP(ctx context.Context, otp, sessionID string) (EKYCData, error)
}

// OCR extracts demographic fields from document images. Opaque.
type OCR interface {
	Extract(ctx context.Context, frontImageURL, backImageURL string) (identity.Record, error)
}

// Biometric compares two face images and returns a 0-100 similarity score.
type Biometric interface {
	MatchFaces(ctx context.Context, imageAURL, imageBURL string) (float64, error)
}

// GatewayOrder is the payment gateway's record of a created order.
type GatewayOrder struct {
	OrderID     string
	AmountPaise int64
	Currency    string
	Receipt     string
}

// PaymentGateway creates orders. The core never trusts a gateway-supplied
// "verified" flag; it recomputes the payment signature itself.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (GatewayOrder, error)
}

// VerdictEmail describes a terminal-transition notification.
type VerdictEmail struct {
	To         string
	TrackingID string
	Verified   bool
}

// Email sends verdict notifications. Fire-and-forget: a send failure must
// never roll back a committed state transition.
type Email interface {
	SendVerdict(ctx context.Context, msg VerdictEmail) error
}
