package report

import (
	"context"
	"errors"
	"log/slog"

	"pehchan/internal/verification/models"
	verificationstore "pehchan/internal/verification/store"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
	"pehchan/pkg/platform/audit"
	"pehchan/pkg/platform/sentinel"
	"pehchan/pkg/requestcontext"
)

// Service generates and serves reports. Generation is idempotent: the report
// for a verification is assembled once and the stored copy returned after.
type Service struct {
	reports       Store
	verifications verificationstore.Store
	audit         *audit.Publisher
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(reports Store, verifications verificationstore.Store, opts ...Option) *Service {
	s := &Service{reports: reports, verifications: verifications, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate assembles (or returns the already assembled) report for the
// caller's verified verification.
func (s *Service) Generate(ctx context.Context, verificationID id.VerificationID) (*Report, error) {
	v, err := s.verifications.Get(ctx, verificationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "verification not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load verification")
	}

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if v.UserID != userID {
		return nil, dErrors.New(dErrors.CodeForbidden, "verification belongs to another user")
	}

	if existing, err := s.reports.GetByVerification(ctx, verificationID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load report")
	}

	r, err := Assemble(v, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.reports.Save(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a concurrent Generate; serve the winner.
			return s.getStored(ctx, verificationID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save report")
	}

	s.emitGenerated(ctx, v, r)
	return r, nil
}

// GetByTracking serves the public fetch path. No ownership check: the
// tracking id itself is the capability.
func (s *Service) GetByTracking(ctx context.Context, trackingID id.TrackingID) (*Report, error) {
	r, err := s.reports.GetByTracking(ctx, trackingID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load report")
	}
	return r, nil
}

func (s *Service) getStored(ctx context.Context, verificationID id.VerificationID) (*Report, error) {
	r, err := s.reports.GetByVerification(ctx, verificationID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load report")
	}
	return r, nil
}

func (s *Service) emitGenerated(ctx context.Context, v *models.Verification, r *Report) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		UserID:   v.UserID,
		Subject:  v.ID.String(),
		Action:   string(audit.EventReportGenerated),
		Decision: "generated",
		Reason:   string(r.TrackingID),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"action", string(audit.EventReportGenerated), "verification_id", v.ID.String(), "error", err)
	}
}
