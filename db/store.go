package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/billbridge/oracle/db/models"
	"github.com/uptrace/bun"
)

// VerificationStore is the bun-backed audit/idempotency store. The unique
// constraint on mollie_payment_id carries the idempotency guarantee; see
// InsertOrGet.
type VerificationStore struct {
	db *bun.DB
}

func NewVerificationStore(db *bun.DB) *VerificationStore {
	return &VerificationStore{db: db}
}

// InsertOrGet appends the verification record. When another delivery for the
// same payment id already won the race, the existing row is returned instead
// and inserted reports false. The insert and the conflict check are one
// statement, so two concurrent deliveries can never both report inserted.
func (s *VerificationStore) InsertOrGet(ctx context.Context, v *models.Verification) (*models.Verification, bool, error) {
	res, err := s.db.NewInsert().
		Model(v).
		On("CONFLICT (mollie_payment_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows == 0 {
		existing, err := s.FindByPaymentID(ctx, v.MolliePaymentID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return v, true, nil
}

// FindByPaymentID returns the stored verification for a provider payment id,
// or nil when none exists.
func (s *VerificationStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Verification, error) {
	verification := &models.Verification{}
	err := s.db.NewSelect().
		Model(verification).
		Where("verification.mollie_payment_id = ?", paymentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return verification, nil
}

// FindByBillID returns the stored verification for an on-chain bill id, or
// nil when none exists.
func (s *VerificationStore) FindByBillID(ctx context.Context, billID int64) (*models.Verification, error) {
	verification := &models.Verification{}
	err := s.db.NewSelect().
		Model(verification).
		Where("verification.bill_id = ?", billID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return verification, nil
}

// UpdateBillVerification upserts the verification mirror fields onto the
// bill row so the platform UI can render verification state without hitting
// the provider.
func (s *VerificationStore) UpdateBillVerification(ctx context.Context, v *models.Verification) error {
	bill := &models.Bill{
		ID:                v.BillID,
		MakerAddress:      v.MakerAddress,
		PaymentVerified:   true,
		PaymentVerifiedAt: bun.NullTime{Time: time.Unix(v.Timestamp, 0)},
		MolliePaymentID:   v.MolliePaymentID,
		Signature:         v.Signature,
	}
	_, err := s.db.NewInsert().
		Model(bill).
		On("CONFLICT (id) DO UPDATE").
		Set("payment_verified = EXCLUDED.payment_verified").
		Set("payment_verified_at = EXCLUDED.payment_verified_at").
		Set("mollie_payment_id = EXCLUDED.mollie_payment_id").
		Set("signature = EXCLUDED.signature").
		Set("updated_at = now()").
		Exec(ctx)
	return err
}
