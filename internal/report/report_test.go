package report_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pehchan/internal/catalog"
	"pehchan/internal/identity"
	"pehchan/internal/report"
	reportmemory "pehchan/internal/report/store/memory"
	"pehchan/internal/verification/models"
	"pehchan/internal/verification/store/memory"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
	"pehchan/pkg/requestcontext"
)

type ReportSuite struct {
	suite.Suite
	svc           *report.Service
	verifications *memory.InMemory
	userID        id.UserID
	now           time.Time
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportSuite))
}

func (s *ReportSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uid, err := id.ParseUserID(uuid.NewString())
	s.Require().NoError(err)
	s.userID = uid
	s.verifications = memory.NewInMemory()
	s.svc = report.New(reportmemory.NewInMemory(), s.verifications)
}

func (s *ReportSuite) ctx() context.Context {
	ctx := requestcontext.WithUserID(context.Background(), s.userID)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *ReportSuite) seed(status models.Status) *models.Verification {
	vid, _ := id.ParseVerificationID(uuid.NewString())
	v, err := models.NewVerification(vid, s.userID, models.TypeTenant, "", catalog.MethodAadhaarOTP, false, s.now)
	s.Require().NoError(err)

	if status == models.StatusVerified {
		face := 91.0
		rec := identity.Record{
			Name: "Asha Devi", DateOfBirth: "1991-04-12", Gender: "F",
			GuardianName: "Ram Devi", Address: "14 MG Road", District: "New Delhi",
			State: "Delhi", Pincode: "110001",
		}
		match, merr := identity.Match(rec, rec, face)
		s.Require().NoError(merr)
		v.Status = models.StatusVerified
		v.Metadata = models.Metadata{
			OCR:            &rec,
			EKYC:           &models.EKYCResult{Record: rec, MaskedIDNumber: "XXXX-XXXX-4321"},
			FaceMatchScore: &face,
			Match:          &match,
		}
	} else {
		v.Status = status
	}
	s.Require().NoError(s.verifications.Create(context.Background(), v))
	return v
}

func (s *ReportSuite) TestTrackingID() {
	vid, _ := id.ParseVerificationID(uuid.NewString())

	a := report.TrackingIDFor(vid)
	b := report.TrackingIDFor(vid)
	s.Equal(a, b, "tracking id must be stable for a verification")
	s.True(strings.HasPrefix(string(a), "PVR-"))
	s.Len(string(a), 4+16) // prefix + base32 of 10 bytes

	other, _ := id.ParseVerificationID(uuid.NewString())
	s.NotEqual(a, report.TrackingIDFor(other))
}

func (s *ReportSuite) TestGenerate() {
	s.Run("verified verification yields a report", func() {
		v := s.seed(models.StatusVerified)
		r, err := s.svc.Generate(s.ctx(), v.ID)
		s.Require().NoError(err)
		s.Equal(report.TrackingIDFor(v.ID), r.TrackingID)
		s.Equal("Asha Devi", r.Subject.Name)
		s.Equal("XXXX-XXXX-4321", r.MaskedIDNumber)
		s.True(r.Match.IsVerified)
	})

	s.Run("regeneration returns the same report", func() {
		v := s.seed(models.StatusVerified)
		first, err := s.svc.Generate(s.ctx(), v.ID)
		s.Require().NoError(err)

		s.now = s.now.Add(time.Hour)
		second, err := s.svc.Generate(s.ctx(), v.ID)
		s.Require().NoError(err)
		s.Equal(first.TrackingID, second.TrackingID)
		s.Equal(first.GeneratedAt, second.GeneratedAt)
	})

	s.Run("non-verified statuses are refused", func() {
		for _, status := range []models.Status{models.StatusPending, models.StatusPaymentPending, models.StatusPaymentComplete, models.StatusRejected} {
			v := s.seed(status)
			_, err := s.svc.Generate(s.ctx(), v.ID)
			s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation), "status %s", status)
		}
	})

	s.Run("another user's verification is forbidden", func() {
		v := s.seed(models.StatusVerified)
		stranger, _ := id.ParseUserID(uuid.NewString())
		ctx := requestcontext.WithUserID(context.Background(), stranger)
		_, err := s.svc.Generate(ctx, v.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ReportSuite) TestGetByTracking() {
	v := s.seed(models.StatusVerified)
	generated, err := s.svc.Generate(s.ctx(), v.ID)
	s.Require().NoError(err)

	got, err := s.svc.GetByTracking(context.Background(), generated.TrackingID)
	s.Require().NoError(err)
	s.Equal(generated.VerificationID, got.VerificationID)

	_, err = s.svc.GetByTracking(context.Background(), id.TrackingID("PVR-UNKNOWN"))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
