package payment

import (
	"context"
	"strings"
	"time"

	"pehchan/internal/catalog"
	"pehchan/internal/collaborators"
	id "pehchan/pkg/domain"
	dErrors "pehchan/pkg/domain-errors"
)

// Currency is fixed; the gateway is configured for Indian rupees.
const Currency = "INR"

// receiptPrefix plus 32 hex chars stays within the gateway's 40-byte
// receipt limit.
const receiptPrefix = "rcpt_"

// Order is one payment attempt for a verification. A verification may
// accumulate several attempts; at most one verifies.
type Order struct {
	OrderID        id.OrderID `json:"order_id"`
	VerificationID string     `json:"verification_id"`
	AmountPaise    int64      `json:"amount_paise"`
	Currency       string     `json:"currency"`
	Receipt        string     `json:"receipt"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ReceiptFor derives the deterministic gateway receipt for a verification.
// Retried orders share the receipt, which is how gateway-side reconciliation
// groups attempts.
func ReceiptFor(verificationID id.VerificationID) string {
	compact := strings.ReplaceAll(verificationID.String(), "-", "")
	return receiptPrefix + compact
}

// CreateOrder asks the gateway for an order priced by the pricing engine.
// The amount sent is the rounded total in paise, matching what was displayed.
func CreateOrder(ctx context.Context, gateway collaborators.PaymentGateway, verificationID id.VerificationID, pricing catalog.Pricing, now time.Time) (Order, error) {
	if verificationID.IsNil() {
		return Order{}, dErrors.New(dErrors.CodeValidation, "verification id is required")
	}

	receipt := ReceiptFor(verificationID)
	gw, err := gateway.CreateOrder(ctx, pricing.TotalPaise(), Currency, receipt)
	if err != nil {
		return Order{}, dErrors.Wrap(err, dErrors.CodeUpstreamUnavailable, "payment gateway order creation failed")
	}

	return Order{
		OrderID:        id.OrderID(gw.OrderID),
		VerificationID: verificationID.String(),
		AmountPaise:    gw.AmountPaise,
		Currency:       gw.Currency,
		Receipt:        gw.Receipt,
		Status:         "created",
		CreatedAt:      now,
	}, nil
}
