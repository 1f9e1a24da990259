// Package report assembles the shareable verification report once a
// verification reaches verified.
package report

import (
	"encoding/base32"
	"time"

	"golang.org/x/crypto/blake2b"

	"pehchan/internal/catalog"
	"pehchan/internal/identity"
	"pehchan/internal/verification/models"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
)

const trackingPrefix = "PVR-"

// Report is the immutable verification summary handed to relying parties.
// It never carries the full ID number, only the authority's masked form.
type Report struct {
	TrackingID     id.TrackingID     `json:"tracking_id"`
	VerificationID id.VerificationID `json:"verification_id"`
	UserID         id.UserID         `json:"user_id"`
	Type           models.Type       `json:"type"`
	Method         catalog.Method    `json:"method"`
	Subject        identity.Record   `json:"subject"`
	MaskedIDNumber string            `json:"masked_id_number,omitempty"`
	Match          identity.Result   `json:"match"`
	FaceMatchScore float64           `json:"face_match_score"`
	VerifiedAt     time.Time         `json:"verified_at"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// TrackingIDFor derives the public handle for a verification: a blake2b-256
// digest of the id, truncated to 10 bytes and base32-encoded. Stable across
// regenerations and unguessable enough that handles cannot be enumerated.
func TrackingIDFor(verificationID id.VerificationID) id.TrackingID {
	sum := blake2b.Sum256([]byte(verificationID.String()))
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum[:10])
	return id.TrackingID(trackingPrefix + encoded)
}

// Assemble builds the report from a verified verification. Pure; the caller
// persists it. Any other status is a guard violation.
func Assemble(v *models.Verification, now time.Time) (*Report, error) {
	if v.Status != models.StatusVerified {
		return nil, dErrors.New(dErrors.CodeGuardViolation, "report requires a verified verification")
	}
	meta := v.Metadata
	if meta.Match == nil || meta.EKYC == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "verified verification is missing match evidence")
	}

	var face float64
	if meta.FaceMatchScore != nil {
		face = *meta.FaceMatchScore
	}

	return &Report{
		TrackingID:     TrackingIDFor(v.ID),
		VerificationID: v.ID,
		UserID:         v.UserID,
		Type:           v.Type,
		Method:         v.Method,
		Subject:        meta.EKYC.Record,
		MaskedIDNumber: meta.EKYC.MaskedIDNumber,
		Match:          *meta.Match,
		FaceMatchScore: face,
		VerifiedAt:     v.UpdatedAt,
		GeneratedAt:    now,
	}, nil
}
