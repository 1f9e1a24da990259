package http

import (
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"pehchan/internal/catalog"
	"pehchan/internal/collaborators"
	reportsvc "pehchan/internal/report"
	"pehchan/internal/verification/models"
	verifsvc "pehchan/internal/verification/service"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
)

var validate = validator.New()

type verificationHandler struct {
	svc     *verifsvc.Service
	reports *reportsvc.Service
	storage collaborators.Storage
	logger  *slog.Logger
}

type reportHandler struct {
	svc    *reportsvc.Service
	logger *slog.Logger
}

func pathVerificationID(r *http.Request) (id.VerificationID, error) {
	return id.ParseVerificationID(chi.URLParam(r, "id"))
}

type createRequest struct {
	Type         string `json:"type" validate:"required"`
	Purpose      string `json:"purpose" validate:"omitempty,max=200"`
	Method       string `json:"method" validate:"required"`
	NotifyEmail  string `json:"notifyEmail" validate:"omitempty,email"`
	CaptureFirst bool   `json:"captureFirst"`
}

func (h *verificationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, dErrors.New(dErrors.CodeValidation, "type and method are required; notifyEmail must be a valid address"))
		return
	}
	method, err := catalog.ParseMethod(req.Method)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	v, err := h.svc.Create(r.Context(), verifsvc.CreateParams{
		Type:         models.Type(strings.ToLower(strings.TrimSpace(req.Type))),
		Purpose:      req.Purpose,
		Method:       method,
		NotifyEmail:  req.NotifyEmail,
		CaptureFirst: req.CaptureFirst,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	pricing, err := catalog.PriceFor(method)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"verification": v,
		"pricing":      pricing,
	})
}

func (h *verificationHandler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verifications": list})
}

func (h *verificationHandler) get(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.svc.Get(r.Context(), vid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification": v})
}

// maxUploadBytes bounds the whole multipart submission; per-file limits are
// enforced against the catalog slots afterwards.
const maxUploadBytes = 64 << 20

// submitDocuments takes a multipart form whose field names are slot names.
// Files are pushed to storage and the resulting references submitted.
func (h *verificationHandler) submitDocuments(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, h.logger, dErrors.New(dErrors.CodeValidation, "expected a multipart form of document files"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	docs := models.Documents{}
	for slot, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := h.storeFile(r, vid, slot, header)
			if err != nil {
				writeError(w, h.logger, err)
				return
			}
			docs[slot] = append(docs[slot], file)
		}
	}

	v, err := h.svc.SubmitDocuments(r.Context(), vid, docs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification": v})
}

func (h *verificationHandler) storeFile(r *http.Request, vid id.VerificationID, slot string, header *multipart.FileHeader) (models.DocumentFile, error) {
	f, err := header.Open()
	if err != nil {
		return models.DocumentFile{}, dErrors.Wrap(err, dErrors.CodeValidation, "unreadable upload")
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, catalog.MaxBytesPerFile+1))
	if err != nil {
		return models.DocumentFile{}, dErrors.Wrap(err, dErrors.CodeValidation, "unreadable upload")
	}
	if int64(len(content)) > catalog.MaxBytesPerFile {
		return models.DocumentFile{}, dErrors.New(dErrors.CodeValidation, "document file exceeds the per-file size limit")
	}

	stored, err := h.storage.Upload(r.Context(), content, "verifications/"+vid.String()+"/"+slot)
	if err != nil {
		return models.DocumentFile{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "document storage unavailable")
	}

	return models.DocumentFile{
		URL:          stored.URL,
		MimeClass:    mimeClassOf(header.Header.Get("Content-Type")),
		OriginalName: header.Filename,
		ByteSize:     int64(len(content)),
	}, nil
}

func mimeClassOf(contentType string) catalog.MimeClass {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return catalog.MimeImage
	case contentType == "application/pdf":
		return catalog.MimePDF
	default:
		return catalog.MimeClass(contentType)
	}
}

func (h *verificationHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	order, err := h.svc.CreateOrder(r.Context(), vid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

func (h *verificationHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, dErrors.New(dErrors.CodeValidation, "orderId, paymentId and signature are required"))
		return
	}

	v, err := h.svc.VerifyPayment(r.Context(), vid, id.OrderID(req.OrderID), req.PaymentID, req.Signature)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification": v})
}

type requestOTPRequest struct {
	IDNumber     string `json:"idNumber" validate:"required,len=12,numeric"`
	CaptchaToken string `json:"captchaToken"`
}

func (h *verificationHandler) requestOTP(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req requestOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, dErrors.New(dErrors.CodeValidation, "idNumber must be exactly 12 digits"))
		return
	}

	v, err := h.svc.RequestOTP(r.Context(), vid, req.IDNumber, req.CaptchaToken)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification": v})
}

type confirmRequest struct {
	OTP string `json:"otp" validate:"omitempty,numeric,max=8"`
}

func (h *verificationHandler) confirm(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, dErrors.New(dErrors.CodeValidation, "otp must be numeric"))
		return
	}

	v, err := h.svc.Confirm(r.Context(), vid, req.OTP)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification": v})
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *verificationHandler) reject(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, h.logger, dErrors.New(dErrors.CodeValidation, "a reason is required"))
		return
	}

	v, err := h.svc.Reject(r.Context(), vid, req.Reason)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verification": v})
}

func (h *verificationHandler) generateReport(w http.ResponseWriter, r *http.Request) {
	vid, err := pathVerificationID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rep, err := h.reports.Generate(r.Context(), vid)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"report": rep})
}

func (h *reportHandler) getByTracking(w http.ResponseWriter, r *http.Request) {
	trackingID := id.TrackingID(chi.URLParam(r, "trackingId"))
	rep, err := h.svc.GetByTracking(r.Context(), trackingID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}
