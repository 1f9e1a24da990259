package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"pehchan/internal/catalog"
	"pehchan/internal/collaborators"
	"pehchan/internal/ekyc"
	"pehchan/internal/payment"
	"pehchan/internal/platform/config"
	reportsvc "pehchan/internal/report"
	reportmemory "pehchan/internal/report/store/memory"
	verifsvc "pehchan/internal/verification/service"
	"pehchan/internal/verification/store/memory"
	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/middleware/auth"
	"pehchan/pkg/testutil"
)

// stubValidator maps bearer tokens to user ids directly, standing in for the
// JWT validator.
type stubValidator struct {
	users map[string]string
}

func (s *stubValidator) ValidateToken(token string) (*auth.Claims, error) {
	raw, ok := s.users[token]
	if !ok {
		return nil, fmt.Errorf("unknown token")
	}
	userID, err := id.ParseUserID(raw)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{UserID: userID}, nil
}

type HandlerSuite struct {
	suite.Suite
	router    http.Handler
	userToken string
	userID    string
	signer    *payment.Signer
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.userID = uuid.NewString()
	s.userToken = "token-" + s.userID
	s.signer = payment.NewSigner("handler-test-secret")

	verifStore := memory.NewInMemory()
	sessions := ekyc.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)

	svc := verifsvc.New(
		verifStore,
		sessions,
		s.signer,
		collaborators.MockGateway{},
		collaborators.MockAuthority{},
		&collaborators.MockOCR{},
		&collaborators.MockBiometric{},
		config.OTP{
			ResendCooldown:   60 * time.Second,
			SessionTTL:       10 * time.Minute,
			AuthorityTimeout: time.Second,
		},
		verifsvc.WithLogger(logger),
	)
	reports := reportsvc.New(reportmemory.NewInMemory(), verifStore, reportsvc.WithLogger(logger))

	s.router = NewRouter(RouterDeps{
		Verifications: svc,
		Reports:       reports,
		Storage:       collaborators.MockStorage{},
		TokenCheck:    &stubValidator{users: map[string]string{s.userToken: s.userID}},
		Logger:        logger,
		Registry:      prometheus.NewRegistry(),
		Health:        map[string]func() error{"store": func() error { return nil }},
	})
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+s.userToken)
	return testutil.DoRequest(s.router, req)
}

type verificationEnvelope struct {
	Verification struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"verification"`
	Pricing struct {
		Base  float64 `json:"base_price"`
		Tax   float64 `json:"tax"`
		Total float64 `json:"total"`
	} `json:"pricing"`
}

func (s *HandlerSuite) createVerification(method string) string {
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{
		"type":   "tenant",
		"method": method,
	}))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	env := testutil.UnmarshalResponse[verificationEnvelope](s.T(), rr)
	return env.Verification.ID
}

func (s *HandlerSuite) submitDocuments(vid, method string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	addFile := func(slot, name, contentType string) {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, slot, name))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		s.Require().NoError(err)
		_, err = part.Write([]byte("file-bytes-" + name))
		s.Require().NoError(err)
	}

	addFile(catalog.SlotGovernmentID, "front.jpg", "image/jpeg")
	addFile(catalog.SlotGovernmentID, "back.jpg", "image/jpeg")
	addFile(catalog.SlotPersonPhoto, "selfie.jpg", "image/jpeg")
	if catalog.Method(method).IsDualDocument() {
		addFile(catalog.SlotAadhaarCard, "af.jpg", "image/jpeg")
		addFile(catalog.SlotAadhaarCard, "ab.jpg", "image/jpeg")
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/verifications/"+vid+"/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := s.do(req)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
}

type orderEnvelope struct {
	Order struct {
		OrderID     string `json:"order_id"`
		AmountPaise int64  `json:"amount_paise"`
		Currency    string `json:"currency"`
		Receipt     string `json:"receipt"`
	} `json:"order"`
}

func (s *HandlerSuite) payFor(vid string) {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/order"))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	env := testutil.UnmarshalResponse[orderEnvelope](s.T(), rr)

	paymentID := "pay_" + uuid.NewString()[:8]
	rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/payment", map[string]any{
		"orderId":   env.Order.OrderID,
		"paymentId": paymentID,
		"signature": s.signer.Sign(env.Order.OrderID, paymentID),
	}))
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
}

func (s *HandlerSuite) TestCreate() {
	s.Run("201 with pricing for a known method", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{
			"type":   "tenant",
			"method": "basic-voter-id",
		}))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
		env := testutil.UnmarshalResponse[verificationEnvelope](s.T(), rr)
		s.Equal("pending", env.Verification.Status)
		s.InDelta(20.0, env.Pricing.Base, 1e-9)
		s.InDelta(3.60, env.Pricing.Tax, 1e-9)
		s.InDelta(23.60, env.Pricing.Total, 1e-9)
	})

	s.Run("unknown method is 400", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{
			"type":   "tenant",
			"method": "passport",
		}))
		s.Equal(http.StatusBadRequest, rr.Code)
		s.Equal("validation_error", testutil.ErrorCode(s.T(), rr))
	})

	s.Run("type other without purpose is 400", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{
			"type":   "other",
			"method": "basic-pan",
		}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("missing token is 401", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications", map[string]any{
			"type":   "tenant",
			"method": "basic-pan",
		}))
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func (s *HandlerSuite) TestDocumentAndPaymentFlow() {
	vid := s.createVerification("basic-voter-id")
	s.submitDocuments(vid, "basic-voter-id")

	s.Run("order carries the rounded paise amount", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/order"))
		s.Require().Equal(http.StatusCreated, rr.Code)
		env := testutil.UnmarshalResponse[orderEnvelope](s.T(), rr)
		s.Equal(int64(2360), env.Order.AmountPaise)
		s.Equal("INR", env.Order.Currency)
		s.LessOrEqual(len(env.Order.Receipt), 40)

		s.Run("bad signature is a 400 integrity failure", func() {
			rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/payment", map[string]any{
				"orderId":   env.Order.OrderID,
				"paymentId": "pay_x",
				"signature": "forged",
			}))
			s.Equal(http.StatusBadRequest, rr.Code)
			s.Equal("integrity_failure", testutil.ErrorCode(s.T(), rr))
		})

		s.Run("valid signature completes payment", func() {
			paymentID := "pay_ok"
			rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/payment", map[string]any{
				"orderId":   env.Order.OrderID,
				"paymentId": paymentID,
				"signature": s.signer.Sign(env.Order.OrderID, paymentID),
			}))
			s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
			got := testutil.UnmarshalResponse[verificationEnvelope](s.T(), rr)
			s.Equal("payment-complete", got.Verification.Status)
		})
	})
}

func (s *HandlerSuite) TestOTPAndConfirmFlow() {
	vid := s.createVerification("aadhaar-otp")
	s.submitDocuments(vid, "aadhaar-otp")
	s.payFor(vid)

	s.Run("malformed aadhaar number is 400", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/otp", map[string]any{
			"idNumber": "12345",
		}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("otp request, early resend 409, confirm verifies", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/otp", map[string]any{
			"idNumber":     "234567890123",
			"captchaToken": "captcha",
		}))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

		rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/otp", map[string]any{
			"idNumber": "234567890123",
		}))
		s.Equal(http.StatusConflict, rr.Code)
		s.Equal("guard_violation", testutil.ErrorCode(s.T(), rr))

		rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/otp/confirm", map[string]any{
			"otp": "123456",
		}))
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		got := testutil.UnmarshalResponse[verificationEnvelope](s.T(), rr)
		s.Equal("verified", got.Verification.Status)
	})

	s.Run("report generation and public fetch", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/report"))
		s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())

		var env struct {
			Report struct {
				TrackingID string `json:"tracking_id"`
			} `json:"report"`
		}
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &env))
		s.Contains(env.Report.TrackingID, "PVR-")

		// Public path, no bearer token.
		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/reports/"+env.Report.TrackingID))
		s.Equal(http.StatusOK, rr.Code)
	})
}

func (s *HandlerSuite) TestRejectAndOwnership() {
	vid := s.createVerification("basic-pan")

	s.Run("reject needs a reason", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/reject", map[string]any{}))
		s.Equal(http.StatusBadRequest, rr.Code)
	})

	s.Run("reject succeeds once then conflicts", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/reject", map[string]any{
			"reason": "user withdrew consent",
		}))
		s.Require().Equal(http.StatusOK, rr.Code)

		rr = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/verifications/"+vid+"/reject", map[string]any{
			"reason": "again",
		}))
		s.Equal(http.StatusConflict, rr.Code)
	})

	s.Run("unknown verification is 404", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/"+uuid.NewString()))
		s.Equal(http.StatusNotFound, rr.Code)
	})

	s.Run("malformed id is 400", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/verifications/not-a-uuid"))
		s.Equal(http.StatusBadRequest, rr.Code)
	})
}

func (s *HandlerSuite) TestHealthz() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	s.Equal(http.StatusOK, rr.Code)

	var body struct {
		Checks map[string]string `json:"checks"`
	}
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
	s.Equal("ok", body.Checks["store"])
}

