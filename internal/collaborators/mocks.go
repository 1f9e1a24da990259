package collaborators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"pehchan/internal/identity"
	dErrors "pehchan/pkg/domain-errors"
)

// Mock collaborators use deterministic data and a configurable latency to
// mimic real-world calls. They serve development and the non-integration test
// suites; production wiring swaps in real adapters at construction time.

// MockStorage keeps nothing and fabricates stable URLs from the path.
type MockStorage struct {
	Latency time.Duration
}

func (m MockStorage) Upload(ctx context.Context, content []byte, path string) (UploadedFile, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return UploadedFile{}, err
	}
	key := path + "/" + uuid.NewString()
	return UploadedFile{
		URL:      "https://files.pehchan.example/" + key,
		Key:      key,
		Size:     int64(len(content)),
		MimeType: "application/octet-stream",
	}, nil
}

func (m MockStorage) SignedURL(ctx context.Context, key string, ttlSeconds int) (string, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return "", err
	}
	return fmt.Sprintf("https://files.pehchan.example/%s?ttl=%d", key, ttlSeconds), nil
}

// MockAuthority accepts any OTP equal to "123456" and answers with a fixed
// demographic record echoing the requested ID number's last 4 digits.
type MockAuthority struct {
	Latency time.Duration
	Record  identity.Record
}

func (m MockAuthority) RequestOTP(ctx context.Context, req OTPRequest) (bool, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return false, err
	}
	return req.IDNumber != "", nil
}

func (m MockAuthority) ConfirmOTP(ctx context.Context, otp, sessionID string) (EKYCData, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return EKYCData{}, err
	}
	// An empty session is a registry lookup for the no-OTP methods; only
	// OTP-bearing sessions check the code.
	if sessionID != "" && otp != "123456" {
		return EKYCData{}, dErrors.New(dErrors.CodeValidation, "authority rejected the otp")
	}
	record := m.Record
	if record == (identity.Record{}) {
		record = sampleRecord()
	}
	return EKYCData{
		Record:         record,
		MaskedIDNumber: "XXXX-XXXX-0000",
	}, nil
}

// MockOCR returns the same record the mock authority serves, so end-to-end
// development flows verify.
type MockOCR struct {
	Latency time.Duration
	Record  identity.Record
}

func (m MockOCR) Extract(ctx context.Context, frontImageURL, backImageURL string) (identity.Record, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return identity.Record{}, err
	}
	if m.Record == (identity.Record{}) {
		return sampleRecord(), nil
	}
	return m.Record, nil
}

// MockBiometric scores a fixed similarity.
type MockBiometric struct {
	Latency time.Duration
	Score   float64
}

func (m MockBiometric) MatchFaces(ctx context.Context, imageAURL, imageBURL string) (float64, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return 0, err
	}
	if m.Score == 0 {
		return 92, nil
	}
	return m.Score, nil
}

// MockGateway issues order ids with a recognizable prefix.
type MockGateway struct {
	Latency time.Duration
}

func (m MockGateway) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (GatewayOrder, error) {
	if err := sleepCtx(ctx, m.Latency); err != nil {
		return GatewayOrder{}, err
	}
	return GatewayOrder{
		OrderID:     "order_" + uuid.NewString()[:18],
		AmountPaise: amountPaise,
		Currency:    currency,
		Receipt:     receipt,
	}, nil
}

// LogEmail logs instead of sending. Useful in development; the service treats
// any Email implementation as fire-and-forget.
type LogEmail struct {
	Logger *slog.Logger
}

func (l LogEmail) SendVerdict(ctx context.Context, msg VerdictEmail) error {
	if l.Logger != nil {
		l.Logger.InfoContext(ctx, "verdict email",
			"to", msg.To,
			"tracking_id", msg.TrackingID,
			"verified", msg.Verified,
		)
	}
	return nil
}

func sampleRecord() identity.Record {
	return identity.Record{
		Name:         "Sample Person",
		DateOfBirth:  "1990-02-03",
		Gender:       "F",
		GuardianName: "Sample Guardian",
		Address:      "1 Sample Street",
		District:     "Sample District",
		State:        "Sample State",
		Pincode:      "110001",
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d == 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
