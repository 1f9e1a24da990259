// Package models holds the Verification aggregate and its transition rules.
//
// Status is derived state: only the Can*/Apply* transitions below may change
// it. Handlers ignore any externally supplied status value on write.
package models

import (
	"regexp"
	"strings"
	"time"

	"pehchan/internal/catalog"
	"pehchan/internal/identity"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
)

// Type is the purpose category of a verification.
type Type string

const (
	TypeTenant      Type = "tenant"
	TypeMaid        Type = "maid"
	TypeDriver      Type = "driver"
	TypeMatrimonial Type = "matrimonial"
	TypeOther       Type = "other"
)

var validTypes = map[Type]struct{}{
	TypeTenant:      {},
	TypeMaid:        {},
	TypeDriver:      {},
	TypeMatrimonial: {},
	TypeOther:       {},
}

// Status is the verification lifecycle state.
//
// pending → payment-pending → payment-complete → verified
// with rejected reachable from any non-terminal state.
// verified and rejected are terminal.
type Status string

const (
	StatusPending         Status = "pending"
	StatusPaymentPending  Status = "payment-pending"
	StatusPaymentComplete Status = "payment-complete"
	StatusVerified        Status = "verified"
	StatusRejected        Status = "rejected"
)

// CanTransitionTo encodes the directed status graph. Forward moves only,
// plus the sideways move into rejected from any non-terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusRejected:
		return true
	case StatusPaymentPending:
		return s == StatusPending
	case StatusPaymentComplete:
		return s == StatusPaymentPending
	case StatusVerified:
		return s == StatusPaymentComplete
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// DocumentFile is one stored upload. The core keeps only the storage URL,
// never raw bytes.
type DocumentFile struct {
	URL          string            `json:"url"`
	MimeClass    catalog.MimeClass `json:"mime_class"`
	OriginalName string            `json:"original_name"`
	ByteSize     int64             `json:"byte_size"`
}

// Documents maps a logical slot name to its ordered uploads.
type Documents map[string][]DocumentFile

// EKYCResult is the authority's answer, retained for the report.
type EKYCResult struct {
	identity.Record
	MaskedIDNumber string `json:"masked_id_number"`
}

// Metadata is the confirmation-step evidence, one typed section per source.
// Never user-writable; populated only while confirming. When persisted as
// JSON, unknown extra keys from older or newer writers are tolerated.
type Metadata struct {
	OCR            *identity.Record `json:"ocr,omitempty"`
	EKYC           *EKYCResult      `json:"ekyc,omitempty"`
	FaceMatchScore *float64         `json:"face_match_score,omitempty"`
	Match          *identity.Result `json:"match,omitempty"`
}

// Verification is the aggregate root. Mutated only through state-machine
// transitions; never hard-deleted in normal flow (retained for audit).
type Verification struct {
	ID      id.VerificationID `json:"id"`
	UserID  id.UserID         `json:"user_id"`
	Type    Type              `json:"type"`
	Purpose string            `json:"purpose,omitempty"`
	Method  catalog.Method    `json:"method"`
	Status  Status            `json:"status"`

	// NotifyEmail, when set, receives the verdict notification.
	NotifyEmail string `json:"notify_email,omitempty"`

	Documents Documents `json:"documents"`

	// AadhaarNumber is required before eKYC confirmation for OTP methods;
	// exactly 12 digits when present.
	AadhaarNumber  string     `json:"aadhaar_number,omitempty"`
	OTPVerified    bool       `json:"otp_verified"`
	OTPRequestTime *time.Time `json:"otp_request_time,omitempty"`

	PaymentOrderID id.OrderID `json:"payment_order_id,omitempty"`
	PaymentID      string     `json:"payment_id,omitempty"`
	PaymentStatus  string     `json:"payment_status,omitempty"`

	Metadata Metadata `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version increments on every committed transition; stores use it for
	// optimistic concurrency.
	Version int64 `json:"version"`
}

var aadhaarPattern = regexp.MustCompile(`^\d{12}$`)

// ValidateAadhaarNumber enforces the 12-digit Aadhaar format.
func ValidateAadhaarNumber(n string) error {
	if !aadhaarPattern.MatchString(n) {
		return dErrors.New(dErrors.CodeValidation, "aadhaar number must be exactly 12 digits")
	}
	return nil
}

// NewVerification constructs a pending verification after validating the
// creation invariants. Document-capture-first flows start at payment-pending.
func NewVerification(verificationID id.VerificationID, userID id.UserID, typ Type, purpose string, method catalog.Method, captureFirst bool, now time.Time) (*Verification, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "owning user is required")
	}
	if _, ok := validTypes[typ]; !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown verification type")
	}
	purpose = strings.TrimSpace(purpose)
	if typ == TypeOther && purpose == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is required for type \"other\"")
	}
	if typ != TypeOther && purpose != "" {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is only allowed for type \"other\"")
	}
	if !method.IsKnown() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown verification method")
	}

	status := StatusPending
	if captureFirst {
		status = StatusPaymentPending
	}

	return &Verification{
		ID:        verificationID,
		UserID:    userID,
		Type:      typ,
		Purpose:   purpose,
		Method:    method,
		Status:    status,
		Documents: Documents{},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}, nil
}

func (v *Verification) touch(now time.Time) {
	v.UpdatedAt = now
	v.Version++
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// ValidateDocuments checks submitted files against the method's slot
// requirements: every required slot non-empty with the right count, and every
// file within size and mime constraints.
func (v *Verification) ValidateDocuments(docs Documents) error {
	slots, err := catalog.RequirementsFor(v.Method)
	if err != nil {
		return err
	}

	for _, slot := range slots {
		files := docs[slot.Name]
		if len(files) < slot.MinCount || len(files) > slot.MaxCount {
			return dErrors.New(dErrors.CodeValidation, "slot \""+slot.Name+"\" needs the required number of files")
		}
		for _, f := range files {
			if f.URL == "" {
				return dErrors.New(dErrors.CodeValidation, "document file is missing its storage url")
			}
			if f.ByteSize <= 0 || f.ByteSize > slot.MaxBytesPerFile {
				return dErrors.New(dErrors.CodeValidation, "document file exceeds the per-file size limit")
			}
			if !slot.Allows(f.MimeClass) {
				return dErrors.New(dErrors.CodeValidation, "slot \""+slot.Name+"\" does not accept this file type")
			}
		}
	}

	for name := range docs {
		if !slotExists(slots, name) {
			return dErrors.New(dErrors.CodeValidation, "unknown document slot \""+name+"\"")
		}
	}
	return nil
}

func slotExists(slots []catalog.Slot, name string) bool {
	for _, s := range slots {
		if s.Name == name {
			return true
		}
	}
	return false
}

// DocumentsComplete reports whether every required slot is satisfied.
func (v *Verification) DocumentsComplete() bool {
	return v.ValidateDocuments(v.Documents) == nil
}

// CanSubmitDocuments guards the document submission transition.
func (v *Verification) CanSubmitDocuments(docs Documents) error {
	if v.Status != StatusPending && v.Status != StatusPaymentPending {
		return dErrors.New(dErrors.CodeGuardViolation, "documents can only be submitted before payment completes")
	}
	return v.ValidateDocuments(docs)
}

// ApplySubmitDocuments stores the documents and advances pending flows to
// payment-pending. Call CanSubmitDocuments first.
func (v *Verification) ApplySubmitDocuments(docs Documents, now time.Time) {
	v.Documents = docs
	if v.Status == StatusPending {
		v.Status = StatusPaymentPending
	}
	v.touch(now)
}

// ---------------------------------------------------------------------------
// Payment
// ---------------------------------------------------------------------------

// CanAttachOrder guards order creation. Attaching an order does not change
// status; payment-pending it stays until the signature verifies.
func (v *Verification) CanAttachOrder() error {
	if v.Status != StatusPaymentPending {
		return dErrors.New(dErrors.CodeGuardViolation, "an order can only be created while payment is pending")
	}
	if !v.DocumentsComplete() {
		return dErrors.New(dErrors.CodeGuardViolation, "all required documents must be submitted before payment")
	}
	return nil
}

// ApplyAttachOrder records the gateway order for later signature checks.
func (v *Verification) ApplyAttachOrder(orderID id.OrderID, now time.Time) {
	v.PaymentOrderID = orderID
	v.PaymentStatus = "order-created"
	v.touch(now)
}

// IsPaymentReplay reports whether this exact payment already completed.
// Payment callbacks can be delivered more than once; a replay is a no-op,
// not an error.
func (v *Verification) IsPaymentReplay(orderID id.OrderID, paymentID string) bool {
	return v.Status == StatusPaymentComplete &&
		v.PaymentOrderID == orderID &&
		v.PaymentID == paymentID
}

// CanCompletePayment guards the payment-complete transition.
func (v *Verification) CanCompletePayment(orderID id.OrderID) error {
	if v.Status != StatusPaymentPending {
		return dErrors.New(dErrors.CodeGuardViolation, "payment can only complete from payment-pending")
	}
	if v.PaymentOrderID.IsNil() || v.PaymentOrderID != orderID {
		return dErrors.New(dErrors.CodeGuardViolation, "payment does not match the attached order")
	}
	return nil
}

// ApplyPaymentComplete is the only code path that sets payment status to
// complete, and the service invokes it solely on a true signature check.
func (v *Verification) ApplyPaymentComplete(paymentID string, now time.Time) {
	v.PaymentID = paymentID
	v.PaymentStatus = "complete"
	v.Status = StatusPaymentComplete
	v.touch(now)
}

// ---------------------------------------------------------------------------
// OTP & confirmation
// ---------------------------------------------------------------------------

// CanRequestOTP guards OTP issuance: right state, OTP-bearing method, valid
// ID number, and the resend cooldown elapsed.
func (v *Verification) CanRequestOTP(idNumber string, now time.Time, cooldown time.Duration) error {
	if v.Status != StatusPaymentComplete {
		return dErrors.New(dErrors.CodeGuardViolation, "otp can only be requested after payment completes")
	}
	if !v.Method.RequiresOTP() {
		return dErrors.New(dErrors.CodeGuardViolation, "method does not use an authority otp")
	}
	if err := ValidateAadhaarNumber(idNumber); err != nil {
		return err
	}
	if v.OTPRequestTime != nil && now.Sub(*v.OTPRequestTime) < cooldown {
		return dErrors.New(dErrors.CodeGuardViolation, "otp was requested recently, wait for the cooldown to elapse")
	}
	return nil
}

// ApplyOTPRequested records the issuance time the cooldown is measured from.
func (v *Verification) ApplyOTPRequested(idNumber string, now time.Time) {
	v.AadhaarNumber = idNumber
	t := now
	v.OTPRequestTime = &t
	v.touch(now)
}

// CanConfirm guards the verdict transition.
func (v *Verification) CanConfirm() error {
	if v.Status != StatusPaymentComplete {
		return dErrors.New(dErrors.CodeGuardViolation, "confirmation requires completed payment")
	}
	if v.Method.RequiresOTP() && v.OTPRequestTime == nil {
		return dErrors.New(dErrors.CodeGuardViolation, "request an otp before confirming")
	}
	return nil
}

// ApplyVerdict commits the identity-match outcome. The verdict decides
// between the two terminal-bound transitions.
func (v *Verification) ApplyVerdict(meta Metadata, now time.Time) {
	v.Metadata = meta
	v.OTPVerified = true
	if meta.Match != nil && meta.Match.IsVerified {
		v.Status = StatusVerified
	} else {
		v.Status = StatusRejected
	}
	v.touch(now)
}

// ---------------------------------------------------------------------------
// Rejection
// ---------------------------------------------------------------------------

// CanReject guards explicit rejection, legal from any non-terminal state.
func (v *Verification) CanReject() error {
	if v.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeGuardViolation, "verification already reached a terminal state")
	}
	return nil
}

// ApplyReject moves the verification to rejected.
func (v *Verification) ApplyReject(now time.Time) {
	v.Status = StatusRejected
	v.touch(now)
}

// Clone deep-copies the aggregate so store reads never alias live state.
func (v *Verification) Clone() *Verification {
	cp := *v
	cp.Documents = make(Documents, len(v.Documents))
	for slot, files := range v.Documents {
		cp.Documents[slot] = append([]DocumentFile(nil), files...)
	}
	if v.OTPRequestTime != nil {
		t := *v.OTPRequestTime
		cp.OTPRequestTime = &t
	}
	if v.Metadata.OCR != nil {
		r := *v.Metadata.OCR
		cp.Metadata.OCR = &r
	}
	if v.Metadata.EKYC != nil {
		r := *v.Metadata.EKYC
		cp.Metadata.EKYC = &r
	}
	if v.Metadata.FaceMatchScore != nil {
		f := *v.Metadata.FaceMatchScore
		cp.Metadata.FaceMatchScore = &f
	}
	if v.Metadata.Match != nil {
		m := *v.Metadata.Match
		m.FieldMatches = make(map[string]bool, len(v.Metadata.Match.FieldMatches))
		for k, b := range v.Metadata.Match.FieldMatches {
			m.FieldMatches[k] = b
		}
		cp.Metadata.Match = &m
	}
	return &cp
}
