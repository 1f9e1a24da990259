package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"pehchan/internal/catalog"
	"pehchan/internal/identity"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
)

type VerificationModelSuite struct {
	suite.Suite
	now    time.Time
	userID id.UserID
}

func TestVerificationModelSuite(t *testing.T) {
	suite.Run(t, new(VerificationModelSuite))
}

func (s *VerificationModelSuite) SetupTest() {
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	uid, err := id.ParseUserID(uuid.NewString())
	s.Require().NoError(err)
	s.userID = uid
}

func (s *VerificationModelSuite) newVerification(method catalog.Method) *Verification {
	vid, err := id.ParseVerificationID(uuid.NewString())
	s.Require().NoError(err)
	v, err := NewVerification(vid, s.userID, TypeTenant, "", method, false, s.now)
	s.Require().NoError(err)
	return v
}

func validDocs(method catalog.Method) Documents {
	docs := Documents{
		catalog.SlotGovernmentID: {
			{URL: "mem://gov-front.jpg", MimeClass: catalog.MimeImage, OriginalName: "front.jpg", ByteSize: 120_000},
			{URL: "mem://gov-back.pdf", MimeClass: catalog.MimePDF, OriginalName: "back.pdf", ByteSize: 240_000},
		},
		catalog.SlotPersonPhoto: {
			{URL: "mem://selfie.jpg", MimeClass: catalog.MimeImage, OriginalName: "selfie.jpg", ByteSize: 80_000},
		},
	}
	if method.IsDualDocument() {
		docs[catalog.SlotAadhaarCard] = []DocumentFile{
			{URL: "mem://aadhaar-front.jpg", MimeClass: catalog.MimeImage, OriginalName: "af.jpg", ByteSize: 90_000},
			{URL: "mem://aadhaar-back.jpg", MimeClass: catalog.MimeImage, OriginalName: "ab.jpg", ByteSize: 90_000},
		}
	}
	return docs
}

func (s *VerificationModelSuite) TestCreationValidation() {
	vid, _ := id.ParseVerificationID(uuid.NewString())

	s.Run("type other requires a purpose", func() {
		_, err := NewVerification(vid, s.userID, TypeOther, "", catalog.MethodBasicPAN, false, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("purpose forbidden outside type other", func() {
		_, err := NewVerification(vid, s.userID, TypeTenant, "background check", catalog.MethodBasicPAN, false, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("type other with purpose is accepted", func() {
		v, err := NewVerification(vid, s.userID, TypeOther, "loan underwriting", catalog.MethodBasicPAN, false, s.now)
		s.Require().NoError(err)
		s.Equal(StatusPending, v.Status)
		s.Equal("loan underwriting", v.Purpose)
	})

	s.Run("unknown type rejected", func() {
		_, err := NewVerification(vid, s.userID, Type("landlord"), "", catalog.MethodBasicPAN, false, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown method rejected", func() {
		_, err := NewVerification(vid, s.userID, TypeTenant, "", catalog.Method("passport"), false, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("capture-first flows start at payment-pending", func() {
		v, err := NewVerification(vid, s.userID, TypeTenant, "", catalog.MethodBasicVoterID, true, s.now)
		s.Require().NoError(err)
		s.Equal(StatusPaymentPending, v.Status)
	})
}

func (s *VerificationModelSuite) TestStatusGraph() {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusPaymentPending, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPaymentComplete, false},
		{StatusPending, StatusVerified, false},
		{StatusPaymentPending, StatusPaymentComplete, true},
		{StatusPaymentPending, StatusRejected, true},
		{StatusPaymentPending, StatusVerified, false},
		{StatusPaymentPending, StatusPending, false},
		{StatusPaymentComplete, StatusVerified, true},
		{StatusPaymentComplete, StatusRejected, true},
		{StatusPaymentComplete, StatusPaymentPending, false},
		{StatusVerified, StatusRejected, false},
		{StatusVerified, StatusPaymentComplete, false},
		{StatusRejected, StatusVerified, false},
		{StatusRejected, StatusPending, false},
	}
	for _, tc := range cases {
		s.Equal(tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func (s *VerificationModelSuite) TestDocumentSubmission() {
	s.Run("valid documents advance pending to payment-pending", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		docs := validDocs(v.Method)
		s.Require().NoError(v.CanSubmitDocuments(docs))
		v.ApplySubmitDocuments(docs, s.now.Add(time.Minute))
		s.Equal(StatusPaymentPending, v.Status)
		s.True(v.DocumentsComplete())
	})

	s.Run("dual-document method requires the aadhaar slot", func() {
		v := s.newVerification(catalog.MethodPANAadhaar)
		docs := validDocs(catalog.MethodBasicPAN) // no aadhaarCard slot
		err := v.CanSubmitDocuments(docs)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("person photo must be an image", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		docs := validDocs(v.Method)
		docs[catalog.SlotPersonPhoto][0].MimeClass = catalog.MimePDF
		err := v.CanSubmitDocuments(docs)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("oversized file rejected", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		docs := validDocs(v.Method)
		docs[catalog.SlotGovernmentID][0].ByteSize = catalog.MaxBytesPerFile + 1
		err := v.CanSubmitDocuments(docs)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown slot rejected", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		docs := validDocs(v.Method)
		docs["utilityBill"] = []DocumentFile{{URL: "mem://bill.pdf", MimeClass: catalog.MimePDF, ByteSize: 1000}}
		err := v.CanSubmitDocuments(docs)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("resubmission allowed until payment completes", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		docs := validDocs(v.Method)
		v.ApplySubmitDocuments(docs, s.now)
		s.NoError(v.CanSubmitDocuments(docs))

		v.ApplyAttachOrder(id.OrderID("order_x"), s.now)
		v.ApplyPaymentComplete("pay_x", s.now)
		err := v.CanSubmitDocuments(docs)
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})
}

func (s *VerificationModelSuite) TestPaymentTransitions() {
	v := s.newVerification(catalog.MethodBasicVoterID)

	s.Run("order requires complete documents", func() {
		err := v.CanAttachOrder()
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})

	v.ApplySubmitDocuments(validDocs(v.Method), s.now)
	s.Require().NoError(v.CanAttachOrder())
	v.ApplyAttachOrder(id.OrderID("order_abc"), s.now)

	s.Run("payment for a different order is refused", func() {
		err := v.CanCompletePayment(id.OrderID("order_other"))
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})

	s.Require().NoError(v.CanCompletePayment(id.OrderID("order_abc")))
	v.ApplyPaymentComplete("pay_123", s.now.Add(time.Minute))
	s.Equal(StatusPaymentComplete, v.Status)
	s.Equal("complete", v.PaymentStatus)

	s.Run("replaying the same payment is detected as a no-op", func() {
		s.True(v.IsPaymentReplay(id.OrderID("order_abc"), "pay_123"))
		s.False(v.IsPaymentReplay(id.OrderID("order_abc"), "pay_999"))
		err := v.CanCompletePayment(id.OrderID("order_abc"))
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})
}

func (s *VerificationModelSuite) TestOTPGuards() {
	cooldown := 60 * time.Second
	aadhaar := "234567890123"

	paid := func(method catalog.Method) *Verification {
		v := s.newVerification(method)
		v.ApplySubmitDocuments(validDocs(method), s.now)
		v.ApplyAttachOrder(id.OrderID("order_1"), s.now)
		v.ApplyPaymentComplete("pay_1", s.now)
		return v
	}

	s.Run("otp refused before payment", func() {
		v := s.newVerification(catalog.MethodAadhaarOTP)
		err := v.CanRequestOTP(aadhaar, s.now, cooldown)
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})

	s.Run("otp refused for basic methods", func() {
		v := paid(catalog.MethodBasicPAN)
		err := v.CanRequestOTP(aadhaar, s.now, cooldown)
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})

	s.Run("malformed aadhaar number refused", func() {
		v := paid(catalog.MethodAadhaarOTP)
		for _, bad := range []string{"", "12345", "12345678901a", "1234567890123"} {
			err := v.CanRequestOTP(bad, s.now, cooldown)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "input %q", bad)
		}
	})

	s.Run("resend inside the cooldown is refused, after it succeeds", func() {
		v := paid(catalog.MethodAadhaarOTP)
		s.Require().NoError(v.CanRequestOTP(aadhaar, s.now, cooldown))
		v.ApplyOTPRequested(aadhaar, s.now)

		err := v.CanRequestOTP(aadhaar, s.now.Add(30*time.Second), cooldown)
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))

		s.NoError(v.CanRequestOTP(aadhaar, s.now.Add(cooldown), cooldown))
	})

	s.Run("confirmation requires a prior otp request for otp methods", func() {
		v := paid(catalog.MethodAadhaarOTP)
		err := v.CanConfirm()
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))

		v.ApplyOTPRequested(aadhaar, s.now)
		s.NoError(v.CanConfirm())
	})

	s.Run("basic methods confirm without an otp", func() {
		v := paid(catalog.MethodBasicVoterID)
		s.NoError(v.CanConfirm())
	})
}

func (s *VerificationModelSuite) TestVerdictAndRejection() {
	match := &identity.Result{MatchPercentage: 88, FaceMatchScore: 91, IsVerified: true, FieldMatches: map[string]bool{"name": true}}
	face := 91.0

	s.Run("positive verdict lands on verified", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		v.ApplySubmitDocuments(validDocs(v.Method), s.now)
		v.ApplyAttachOrder(id.OrderID("o"), s.now)
		v.ApplyPaymentComplete("p", s.now)

		v.ApplyVerdict(Metadata{OCR: &identity.Record{Name: "A"}, FaceMatchScore: &face, Match: match}, s.now)
		s.Equal(StatusVerified, v.Status)
		s.True(v.OTPVerified)
		s.True(v.Status.IsTerminal())
	})

	s.Run("negative verdict lands on rejected", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		v.ApplySubmitDocuments(validDocs(v.Method), s.now)
		v.ApplyAttachOrder(id.OrderID("o"), s.now)
		v.ApplyPaymentComplete("p", s.now)

		failed := *match
		failed.IsVerified = false
		v.ApplyVerdict(Metadata{Match: &failed}, s.now)
		s.Equal(StatusRejected, v.Status)
	})

	s.Run("explicit rejection from any non-terminal state", func() {
		v := s.newVerification(catalog.MethodBasicVoterID)
		s.Require().NoError(v.CanReject())
		v.ApplyReject(s.now)
		s.Equal(StatusRejected, v.Status)

		err := v.CanReject()
		s.True(dErrors.HasCode(err, dErrors.CodeGuardViolation))
	})
}

func (s *VerificationModelSuite) TestCloneIsDeep() {
	v := s.newVerification(catalog.MethodAadhaarOTP)
	v.ApplySubmitDocuments(validDocs(v.Method), s.now)
	v.ApplyOTPRequested("234567890123", s.now)

	cp := v.Clone()
	cp.Documents[catalog.SlotPersonPhoto][0].URL = "mem://tampered"
	*cp.OTPRequestTime = cp.OTPRequestTime.Add(time.Hour)

	s.Equal("mem://selfie.jpg", v.Documents[catalog.SlotPersonPhoto][0].URL)
	s.Equal(s.now, *v.OTPRequestTime)
}
