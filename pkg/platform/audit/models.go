package audit

import (
	"time"

	id "pehchan/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: verification creation, verdicts, report generation.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: payment signature rejections, OTP cooldown hits.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility. These can be sampled with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	UserID    id.UserID
	// Subject is the verification (or report) the event is about.
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ClientIP and Device describe where the triggering request came from.
	ClientIP string
	Device   string
}

// AuditEvent names every action the service emits.
type AuditEvent string

const (
	EventVerificationCreated  AuditEvent = "verification_created"
	EventDocumentsSubmitted   AuditEvent = "documents_submitted"
	EventOrderCreated         AuditEvent = "order_created"
	EventPaymentVerified      AuditEvent = "payment_verified"
	EventSignatureRejected    AuditEvent = "payment_signature_rejected"
	EventOTPRequested         AuditEvent = "otp_requested"
	EventOTPCooldownHit       AuditEvent = "otp_cooldown_hit"
	EventVerificationVerified AuditEvent = "verification_verified"
	EventVerificationRejected AuditEvent = "verification_rejected"
	EventReportGenerated      AuditEvent = "report_generated"
)

// eventCategories maps each audit event to its category.
// Compliance: legal/regulatory significance, long retention required.
// Security: security monitoring, SIEM integration, alerting.
// Operations: routine activity, can be sampled.
var eventCategories = map[AuditEvent]EventCategory{
	EventVerificationCreated:  CategoryCompliance,
	EventPaymentVerified:      CategoryCompliance,
	EventVerificationVerified: CategoryCompliance,
	EventVerificationRejected: CategoryCompliance,
	EventReportGenerated:      CategoryCompliance,

	EventSignatureRejected: CategorySecurity,
	EventOTPCooldownHit:    CategorySecurity,

	EventDocumentsSubmitted: CategoryOperations,
	EventOrderCreated:       CategoryOperations,
	EventOTPRequested:       CategoryOperations,
}

// Category returns the category for this event, defaulting to operations for
// unknown actions so routing never drops an event.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}
