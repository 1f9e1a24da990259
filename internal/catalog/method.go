// Package catalog is the static registry of verification methods: the
// security level, document set, and price behind each method is fixed
// configuration, shared safely across concurrent callers.
package catalog

import (
	"strings"

	dErrors "pehchan/pkg/domain-errors"
)

// Method is one of the closed enumeration of verification methods. The method
// determines required documents, price, and security level.
type Method string

const (
	MethodAadhaarOTP            Method = "aadhaar-otp"
	MethodAdvancedAadhaar       Method = "advanced-aadhaar"
	MethodBasicVoterID          Method = "basic-voter-id"
	MethodBasicDrivingLicense   Method = "basic-driving-license"
	MethodBasicPAN              Method = "basic-pan"
	MethodVoterIDAadhaar        Method = "voter-id-aadhaar"
	MethodDrivingLicenseAadhaar Method = "driving-license-aadhaar"
	MethodPANAadhaar            Method = "pan-aadhaar"
)

// SecurityLevel tiers describe how many corroborating documents and authority
// checks a method requires.
type SecurityLevel string

const (
	// LevelMostAdvanced: multi-document flows with authority OTP.
	LevelMostAdvanced SecurityLevel = "most-advanced"
	// LevelMediumAdvanced: single document plus authority OTP.
	LevelMediumAdvanced SecurityLevel = "medium-advanced"
	// LevelLessAdvanced: single document, no OTP round-trip.
	LevelLessAdvanced SecurityLevel = "less-advanced"
)

// methods is the full catalog. Closed set: anything else is rejected at parse
// time, never silently defaulted to a price tier.
var methods = map[Method]struct{}{
	MethodAadhaarOTP:            {},
	MethodAdvancedAadhaar:       {},
	MethodBasicVoterID:          {},
	MethodBasicDrivingLicense:   {},
	MethodBasicPAN:              {},
	MethodVoterIDAadhaar:        {},
	MethodDrivingLicenseAadhaar: {},
	MethodPANAadhaar:            {},
}

// ParseMethod validates a raw method identifier against the catalog.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := methods[m]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown verification method")
	}
	return m, nil
}

func (m Method) String() string { return string(m) }

// IsKnown reports whether the method is in the catalog.
func (m Method) IsKnown() bool {
	_, ok := methods[m]
	return ok
}

// Level derives the security tier from the method identifier.
// "advanced-" prefixed and dual-document "-aadhaar" suffixed flows carry the
// most corroboration; "basic-" flows are single-document without OTP; the
// plain Aadhaar OTP flow sits in between.
func (m Method) Level() SecurityLevel {
	name := string(m)
	switch {
	case strings.HasPrefix(name, "advanced-"), m.IsDualDocument():
		return LevelMostAdvanced
	case strings.HasPrefix(name, "basic-"):
		return LevelLessAdvanced
	default:
		return LevelMediumAdvanced
	}
}

// IsDualDocument reports whether the method cross-checks a second document
// against the Aadhaar card ("voter-id-aadhaar" and friends).
func (m Method) IsDualDocument() bool {
	return strings.HasSuffix(string(m), "-aadhaar") && string(m) != string(MethodAdvancedAadhaar)
}

// RequiresOTP reports whether the method includes an authority OTP round-trip.
// Only "basic-" single-document flows skip it.
func (m Method) RequiresOTP() bool {
	return m.Level() != LevelLessAdvanced
}

// UsesAadhaarNumber reports whether the flow needs the person's Aadhaar number
// before eKYC confirmation.
func (m Method) UsesAadhaarNumber() bool {
	return m.RequiresOTP()
}

// Methods returns the catalog as a stable, sorted-by-declaration slice.
func Methods() []Method {
	return []Method{
		MethodAadhaarOTP,
		MethodAdvancedAadhaar,
		MethodBasicVoterID,
		MethodBasicDrivingLicense,
		MethodBasicPAN,
		MethodVoterIDAadhaar,
		MethodDrivingLicenseAadhaar,
		MethodPANAadhaar,
	}
}
