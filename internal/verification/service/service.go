// Package service orchestrates the verification lifecycle: creation, document
// intake, payment, authority OTP, and the final identity-match verdict.
//
// Every state change goes through the store's Execute primitive, so guard
// checks and mutations commit atomically per verification. Collaborator
// calls happen outside Execute and the guards are re-validated inside it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pehchan/internal/catalog"
	"pehchan/internal/collaborators"
	"pehchan/internal/ekyc"
	"pehchan/internal/identity"
	"pehchan/internal/payment"
	"pehchan/internal/platform/config"
	"pehchan/internal/report"
	"pehchan/internal/verification/metrics"
	"pehchan/internal/verification/models"
	"pehchan/internal/verification/store"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
	"pehchan/pkg/platform/audit"
	"pehchan/pkg/platform/sentinel"
	"pehchan/pkg/requestcontext"
)

// errPaymentReplay aborts an Execute without committing when a payment
// callback turns out to be a duplicate of the one already accepted.
var errPaymentReplay = errors.New("payment already accepted")

type Service struct {
	store     store.Store
	sessions  ekyc.SessionStore
	signer    *payment.Signer
	gateway   collaborators.PaymentGateway
	authority collaborators.Authority
	ocr       collaborators.OCR
	biometric collaborators.Biometric
	otpCfg    config.OTP

	email   collaborators.Email
	audit   *audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEmail enables verdict notifications.
func WithEmail(e collaborators.Email) Option {
	return func(s *Service) { s.email = e }
}

func New(
	st store.Store,
	sessions ekyc.SessionStore,
	signer *payment.Signer,
	gateway collaborators.PaymentGateway,
	authority collaborators.Authority,
	ocr collaborators.OCR,
	biometric collaborators.Biometric,
	otpCfg config.OTP,
	opts ...Option,
) *Service {
	s := &Service{
		store:     st,
		sessions:  sessions,
		signer:    signer,
		gateway:   gateway,
		authority: authority,
		ocr:       ocr,
		biometric: biometric,
		otpCfg:    otpCfg,
		logger:    slog.Default(),
		metrics:   metrics.NewNop(),
		tracer:    otel.Tracer("pehchan/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the creation request after transport-level validation.
type CreateParams struct {
	Type         models.Type
	Purpose      string
	Method       catalog.Method
	NotifyEmail  string
	CaptureFirst bool
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Create")
	defer span.End()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	vid, err := id.ParseVerificationID(uuid.NewString())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mint verification id")
	}

	v, err := models.NewVerification(vid, userID, params.Type, params.Purpose, params.Method, params.CaptureFirst, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	v.NotifyEmail = params.NotifyEmail

	if err := s.store.Create(ctx, v); err != nil {
		return nil, s.mapStoreErr(err, "create verification")
	}

	s.metrics.Created.Inc()
	s.emitAudit(ctx, v, audit.EventVerificationCreated, "created", string(params.Method))
	return v, nil
}

// Get returns the verification after enforcing ownership.
func (s *Service) Get(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	v, err := s.store.Get(ctx, verificationID)
	if err != nil {
		return nil, s.mapStoreErr(err, "load verification")
	}
	if err := s.authorize(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// List returns the caller's verifications.
func (s *Service) List(ctx context.Context) ([]*models.Verification, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.mapStoreErr(err, "list verifications")
	}
	return list, nil
}

func (s *Service) SubmitDocuments(ctx context.Context, verificationID id.VerificationID, docs models.Documents) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.SubmitDocuments")
	defer span.End()

	if err := s.authorizeByID(ctx, verificationID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	v, err := s.store.Execute(ctx, verificationID,
		func(w *models.Verification) error { return w.CanSubmitDocuments(docs) },
		func(w *models.Verification) error {
			w.ApplySubmitDocuments(docs, now)
			return nil
		})
	if err != nil {
		return nil, s.mapStoreErr(err, "submit documents")
	}

	s.metrics.DocumentsSubmitted.Inc()
	s.emitAudit(ctx, v, audit.EventDocumentsSubmitted, "accepted", "")
	return v, nil
}

// CreateOrder prices the method and opens a gateway order. The verification
// stays payment-pending; failed attempts may create further orders.
func (s *Service) CreateOrder(ctx context.Context, verificationID id.VerificationID) (payment.Order, error) {
	ctx, span := s.tracer.Start(ctx, "verification.CreateOrder")
	defer span.End()

	v, err := s.Get(ctx, verificationID)
	if err != nil {
		return payment.Order{}, err
	}
	if err := v.CanAttachOrder(); err != nil {
		return payment.Order{}, err
	}

	pricing, err := catalog.PriceFor(v.Method)
	if err != nil {
		return payment.Order{}, err
	}

	now := requestcontext.Now(ctx)
	order, err := payment.CreateOrder(ctx, s.gateway, verificationID, pricing, now)
	if err != nil {
		s.metrics.UpstreamFailures.WithLabelValues("gateway").Inc()
		return payment.Order{}, err
	}

	if _, err := s.store.Execute(ctx, verificationID,
		func(w *models.Verification) error { return w.CanAttachOrder() },
		func(w *models.Verification) error {
			w.ApplyAttachOrder(order.OrderID, now)
			return nil
		}); err != nil {
		return payment.Order{}, s.mapStoreErr(err, "attach order")
	}

	s.metrics.OrdersCreated.Inc()
	s.emitAudit(ctx, v, audit.EventOrderCreated, "created", string(order.OrderID))
	return order, nil
}

// VerifyPayment validates the gateway callback signature and, on success,
// moves the verification to payment-complete. A duplicate delivery of an
// already-accepted payment is a no-op returning current state.
func (s *Service) VerifyPayment(ctx context.Context, verificationID id.VerificationID, orderID id.OrderID, paymentID, signature string) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyPayment")
	defer span.End()

	v, err := s.Get(ctx, verificationID)
	if err != nil {
		return nil, err
	}

	ok, err := s.signer.Verify(string(orderID), paymentID, signature)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "payment verification timed out")
	}
	if !ok {
		s.metrics.SignatureRejections.Inc()
		s.emitAudit(ctx, v, audit.EventSignatureRejected, "rejected", "signature mismatch")
		return nil, dErrors.New(dErrors.CodeIntegrityFailure, "payment signature does not match")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, verificationID,
		func(w *models.Verification) error {
			if w.IsPaymentReplay(orderID, paymentID) {
				return errPaymentReplay
			}
			return w.CanCompletePayment(orderID)
		},
		func(w *models.Verification) error {
			w.ApplyPaymentComplete(paymentID, now)
			return nil
		})
	if errors.Is(err, errPaymentReplay) {
		return v, nil
	}
	if err != nil {
		return nil, s.mapStoreErr(err, "complete payment")
	}

	s.metrics.PaymentsVerified.Inc()
	s.emitAudit(ctx, updated, audit.EventPaymentVerified, "accepted", paymentID)
	return updated, nil
}

// RequestOTP asks the authority to send an OTP for the given Aadhaar number.
// The resend cooldown is enforced twice: optimistically against the aggregate
// and atomically through the session store's reservation, so concurrent
// requests cannot double-send.
func (s *Service) RequestOTP(ctx context.Context, verificationID id.VerificationID, idNumber, captchaToken string) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.RequestOTP")
	defer span.End()

	v, err := s.Get(ctx, verificationID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	if err := v.CanRequestOTP(idNumber, now, s.otpCfg.ResendCooldown); err != nil {
		if dErrors.HasCode(err, dErrors.CodeGuardViolation) && v.OTPRequestTime != nil {
			s.metrics.CooldownHits.Inc()
			s.emitAudit(ctx, v, audit.EventOTPCooldownHit, "refused", "resend cooldown active")
		}
		return nil, err
	}

	granted, err := s.sessions.ReserveSend(ctx, verificationID, s.otpCfg.ResendCooldown)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "otp session store unavailable")
	}
	if !granted {
		s.metrics.CooldownHits.Inc()
		s.emitAudit(ctx, v, audit.EventOTPCooldownHit, "refused", "resend cooldown active")
		return nil, dErrors.New(dErrors.CodeGuardViolation, "otp was requested recently, wait for the cooldown to elapse")
	}

	authoritySession := uuid.NewString()
	authorityCtx, cancel := context.WithTimeout(ctx, s.otpCfg.AuthorityTimeout)
	defer cancel()
	accepted, err := s.authority.RequestOTP(authorityCtx, collaborators.OTPRequest{
		IDNumber:     idNumber,
		CaptchaToken: captchaToken,
		SessionID:    authoritySession,
	})
	if err != nil {
		// The send never happened; give the cooldown slot back so the
		// user's retry is not penalized for our upstream failure.
		s.releaseSend(ctx, verificationID)
		s.metrics.UpstreamFailures.WithLabelValues("authority").Inc()
		if dErrors.IsCoded(err) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "identity authority unavailable")
	}
	if !accepted {
		s.releaseSend(ctx, verificationID)
		return nil, dErrors.New(dErrors.CodeValidation, "identity authority refused the otp request")
	}

	if err := s.sessions.SaveSession(ctx, ekyc.Session{
		VerificationID:   verificationID,
		AuthoritySession: authoritySession,
		IDNumber:         idNumber,
		RequestedAt:      now,
	}, s.otpCfg.SessionTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "otp session store unavailable")
	}

	updated, err := s.store.Execute(ctx, verificationID,
		func(w *models.Verification) error {
			// Cooldown was already arbitrated by the reservation; only the
			// structural guards are re-checked here.
			return w.CanRequestOTP(idNumber, now, 0)
		},
		func(w *models.Verification) error {
			w.ApplyOTPRequested(idNumber, now)
			return nil
		})
	if err != nil {
		return nil, s.mapStoreErr(err, "record otp request")
	}

	s.metrics.OTPRequests.Inc()
	s.emitAudit(ctx, updated, audit.EventOTPRequested, "sent", "")
	return updated, nil
}

// Confirm finishes the verification: confirms the OTP with the authority (for
// OTP-bearing methods), gathers OCR and face-match evidence concurrently, and
// commits the identity-match verdict. A collaborator failure or timeout
// leaves the verification in payment-complete.
func (s *Service) Confirm(ctx context.Context, verificationID id.VerificationID, otp string) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Confirm")
	defer span.End()

	started := time.Now()
	defer func() { s.metrics.ConfirmDuration.Observe(time.Since(started).Seconds()) }()

	v, err := s.Get(ctx, verificationID)
	if err != nil {
		return nil, err
	}
	if err := v.CanConfirm(); err != nil {
		return nil, err
	}

	authorityCtx, cancel := context.WithTimeout(ctx, s.otpCfg.AuthorityTimeout)
	defer cancel()

	var authoritySession string
	if v.Method.RequiresOTP() {
		sess, err := s.sessions.GetSession(ctx, verificationID)
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeGuardViolation, "otp session expired, request a fresh otp")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "otp session store unavailable")
		}
		authoritySession = sess.AuthoritySession
	}

	kyc, err := s.authority.ConfirmOTP(authorityCtx, otp, authoritySession)
	if err != nil {
		s.metrics.UpstreamFailures.WithLabelValues("authority").Inc()
		if dErrors.IsCoded(err) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "identity authority unavailable")
	}

	evidence, err := s.gatherEvidence(ctx, v)
	if err != nil {
		return nil, err
	}

	match, err := identity.Match(evidence.ocr, kyc.Record, evidence.faceScore)
	if err != nil {
		return nil, err
	}

	meta := models.Metadata{
		OCR:            &evidence.ocr,
		EKYC:           &models.EKYCResult{Record: kyc.Record, MaskedIDNumber: kyc.MaskedIDNumber},
		FaceMatchScore: &evidence.faceScore,
		Match:          &match,
	}

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, verificationID,
		func(w *models.Verification) error { return w.CanConfirm() },
		func(w *models.Verification) error {
			w.ApplyVerdict(meta, now)
			return nil
		})
	if err != nil {
		return nil, s.mapStoreErr(err, "commit verdict")
	}

	_ = s.sessions.ClearSession(ctx, verificationID)

	if updated.Status == models.StatusVerified {
		s.metrics.Verdicts.WithLabelValues(string(models.StatusVerified)).Inc()
		s.emitAudit(ctx, updated, audit.EventVerificationVerified, "verified",
			fmt.Sprintf("match %d%%, face %.0f", match.MatchPercentage, match.FaceMatchScore))
	} else {
		s.metrics.Verdicts.WithLabelValues(string(models.StatusRejected)).Inc()
		s.emitAudit(ctx, updated, audit.EventVerificationRejected, "rejected",
			fmt.Sprintf("match %d%%, face %.0f", match.MatchPercentage, match.FaceMatchScore))
	}
	s.notifyVerdict(updated)

	return updated, nil
}

// Reject moves a non-terminal verification to rejected.
func (s *Service) Reject(ctx context.Context, verificationID id.VerificationID, reason string) (*models.Verification, error) {
	ctx, span := s.tracer.Start(ctx, "verification.Reject")
	defer span.End()

	if err := s.authorizeByID(ctx, verificationID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	v, err := s.store.Execute(ctx, verificationID,
		func(w *models.Verification) error { return w.CanReject() },
		func(w *models.Verification) error {
			w.ApplyReject(now)
			return nil
		})
	if err != nil {
		return nil, s.mapStoreErr(err, "reject verification")
	}

	s.metrics.Verdicts.WithLabelValues(string(models.StatusRejected)).Inc()
	s.emitAudit(ctx, v, audit.EventVerificationRejected, "rejected", reason)
	s.notifyVerdict(v)
	return v, nil
}

type evidence struct {
	ocr       identity.Record
	faceScore float64
}

// gatherEvidence runs OCR extraction and the face comparison concurrently.
// Both must succeed; either failure aborts the confirmation.
func (s *Service) gatherEvidence(ctx context.Context, v *models.Verification) (evidence, error) {
	front, back, selfie, err := documentURLs(v)
	if err != nil {
		return evidence{}, err
	}

	var ev evidence
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := s.ocr.Extract(gctx, front, back)
		if err != nil {
			s.metrics.UpstreamFailures.WithLabelValues("ocr").Inc()
			return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "document ocr unavailable")
		}
		ev.ocr = rec
		return nil
	})
	g.Go(func() error {
		score, err := s.biometric.MatchFaces(gctx, selfie, front)
		if err != nil {
			s.metrics.UpstreamFailures.WithLabelValues("biometric").Inc()
			return dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "face comparison unavailable")
		}
		ev.faceScore = score
		return nil
	})
	if err := g.Wait(); err != nil {
		return evidence{}, err
	}
	return ev, nil
}

// documentURLs picks the evidence files out of the submitted documents. The
// dual-document methods use the Aadhaar card as the OCR source since the
// authority record is Aadhaar demographics.
func documentURLs(v *models.Verification) (front, back, selfie string, err error) {
	idSlot := catalog.SlotGovernmentID
	if v.Method.IsDualDocument() {
		idSlot = catalog.SlotAadhaarCard
	}
	idFiles := v.Documents[idSlot]
	photo := v.Documents[catalog.SlotPersonPhoto]
	if len(idFiles) < 2 || len(photo) < 1 {
		return "", "", "", dErrors.New(dErrors.CodeGuardViolation, "required documents are missing")
	}
	return idFiles[0].URL, idFiles[1].URL, photo[0].URL, nil
}

func (s *Service) authorize(ctx context.Context, v *models.Verification) error {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if v.UserID != userID {
		return dErrors.New(dErrors.CodeForbidden, "verification belongs to another user")
	}
	return nil
}

func (s *Service) authorizeByID(ctx context.Context, verificationID id.VerificationID) error {
	v, err := s.store.Get(ctx, verificationID)
	if err != nil {
		return s.mapStoreErr(err, "load verification")
	}
	return s.authorize(ctx, v)
}

func (s *Service) releaseSend(ctx context.Context, verificationID id.VerificationID) {
	if err := s.sessions.ReleaseSend(ctx, verificationID); err != nil {
		s.logger.WarnContext(ctx, "failed to release otp cooldown reservation",
			"verification_id", verificationID.String(), "error", err)
	}
}

// notifyVerdict fires the email without blocking or failing the transition.
func (s *Service) notifyVerdict(v *models.Verification) {
	if s.email == nil || v.NotifyEmail == "" {
		return
	}
	msg := collaborators.VerdictEmail{
		To:         v.NotifyEmail,
		Verified:   v.Status == models.StatusVerified,
		TrackingID: report.TrackingIDFor(v.ID).String(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.email.SendVerdict(ctx, msg); err != nil {
			s.logger.Warn("verdict email failed",
				"verification_id", v.ID.String(), "error", err)
		}
	}()
}

func (s *Service) emitAudit(ctx context.Context, v *models.Verification, action audit.AuditEvent, decision, reason string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		UserID:   v.UserID,
		Subject:  v.ID.String(),
		Action:   string(action),
		Decision: decision,
		Reason:   reason,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(action), "verification_id", v.ID.String(), "error", err)
	}
}

func (s *Service) mapStoreErr(err error, op string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "verification not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "verification was modified concurrently, retry")
	case dErrors.IsCoded(err):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
	}
}
