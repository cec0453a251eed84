package service

import (
	"context"

	"github.com/billbridge/oracle/db/models"
)

// VerificationStore is the audit/idempotency persistence seam. Find methods
// return (nil, nil) when no record exists; errors always mean the store
// itself failed.
type VerificationStore interface {
	// InsertOrGet appends the record, or returns the already-stored record
	// for the same payment id. The check-and-insert must be atomic so that
	// concurrent deliveries of one payment id observe a single attestation.
	InsertOrGet(ctx context.Context, v *models.Verification) (stored *models.Verification, inserted bool, err error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Verification, error)
	FindByBillID(ctx context.Context, billID int64) (*models.Verification, error)
	UpdateBillVerification(ctx context.Context, v *models.Verification) error
}

// VerificationPublisher fans a finished verification out to platform
// consumers. Best-effort; the orchestrator never fails a request on it.
type VerificationPublisher interface {
	PublishVerification(ctx context.Context, v *models.Verification) error
}
