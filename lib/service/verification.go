package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/billbridge/oracle/common"
	"github.com/billbridge/oracle/db/models"
	"github.com/billbridge/oracle/oracle"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"
)

var (
	// ErrMissingMetadata marks a paid event without the escrow linkage
	// fields. Redelivery cannot fix it, so callers answer 400.
	ErrMissingMetadata = errors.New("payment metadata incomplete")
	// ErrInvalidMetadata marks metadata that is present but unusable
	// (non-numeric bill id, malformed addresses, unparsable amount).
	ErrInvalidMetadata = errors.New("payment metadata invalid")
	// ErrSigningFailure marks a signer error. Config-level, callers answer
	// 500 and the capture should page operators.
	ErrSigningFailure = errors.New("attestation signing failed")
)

// VerificationResult is the orchestrator's answer for one webhook delivery.
// Either Ack is set (event acknowledged without action) or Verification
// carries the attestation record.
type VerificationResult struct {
	Ack          bool
	Status       string
	Replayed     bool
	Verification *models.Verification
}

// VerifyPayment runs the verification pipeline for one provider payment id:
// idempotency lookup, authoritative fetch, metadata validation, attestation
// signing, best-effort persistence. Duplicate deliveries of an already
// verified payment return the stored attestation unchanged.
func (svc *OracleService) VerifyPayment(ctx context.Context, paymentID string) (*VerificationResult, error) {
	// Webhook redelivery is routine; an already-verified payment must map to
	// its one canonical attestation, not a fresh signature.
	existing, err := svc.Store.FindByPaymentID(ctx, paymentID)
	if err != nil {
		// Store reads are best-effort here: the unique constraint in
		// InsertOrGet still prevents a second observable attestation.
		svc.Logger.Errorf("Idempotency lookup failed: mollie_payment_id:%s error: %v", paymentID, err)
		sentry.CaptureException(err)
	}
	if existing != nil {
		svc.Logger.Infof("Replaying stored verification: mollie_payment_id:%s bill_id:%d", paymentID, existing.BillID)
		return &VerificationResult{
			Status:       common.VerificationStatusVerified,
			Replayed:     true,
			Verification: existing,
		}, nil
	}

	payment, err := svc.Provider.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != common.PaymentStatusPaid {
		svc.Logger.Infof("Payment not actionable: mollie_payment_id:%s status:%s", paymentID, payment.Status)
		return &VerificationResult{Ack: true, Status: payment.Status}, nil
	}

	billID, payer, maker, err := validateMetadata(payment.Metadata.BillID, payment.Metadata.PayerAddress, payment.Metadata.MakerAddress)
	if err != nil {
		svc.Logger.Errorf("Rejecting paid event: mollie_payment_id:%s error: %v", paymentID, err)
		return nil, err
	}

	fiatAmount, err := ParseCents(payment.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrInvalidMetadata, payment.Amount.Value, err)
	}

	attestation := oracle.Attestation{
		BillID:           billID,
		PayerAddress:     payer,
		MakerAddress:     maker,
		FiatAmount:       fiatAmount,
		PaymentReference: payment.Metadata.PaymentReference,
		Timestamp:        svc.now().Unix(),
	}
	signature, err := svc.Signer.Sign(attestation)
	if err != nil {
		sentry.CaptureException(err)
		return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}

	refHash := attestation.ReferenceHash()
	verification := &models.Verification{
		BillID:               billID,
		MolliePaymentID:      paymentID,
		PayerAddress:         payer.Hex(),
		MakerAddress:         maker.Hex(),
		FiatAmount:           fiatAmount,
		Currency:             payment.Amount.Currency,
		PaymentReference:     payment.Metadata.PaymentReference,
		PaymentReferenceHash: "0x" + hex.EncodeToString(refHash[:]),
		Timestamp:            attestation.Timestamp,
		Signature:            signature,
		Status:               common.VerificationStatusVerified,
	}

	// Persistence is observability, the signed attestation is the source of
	// truth: store errors are logged and the attestation is still returned.
	stored, inserted, err := svc.Store.InsertOrGet(ctx, verification)
	if err != nil {
		svc.Logger.Errorf("Failed to persist verification: mollie_payment_id:%s bill_id:%d error: %v", paymentID, billID, err)
		sentry.CaptureException(err)
		stored = verification
		inserted = false
	} else if !inserted {
		if stored == nil {
			// Conflict reported but the winning row was not visible on the
			// re-select; fall back to our own attestation.
			svc.Logger.Errorf("Conflicting verification not found on re-select: mollie_payment_id:%s", paymentID)
			stored = verification
		} else {
			// A concurrent delivery won the insert race; its attestation is
			// the canonical one for this payment.
			svc.Logger.Infof("Concurrent verification already stored: mollie_payment_id:%s", paymentID)
			return &VerificationResult{
				Status:       common.VerificationStatusVerified,
				Replayed:     true,
				Verification: stored,
			}, nil
		}
	}

	if err := svc.Store.UpdateBillVerification(ctx, stored); err != nil {
		svc.Logger.Errorf("Failed to update bill verification: bill_id:%d error: %v", billID, err)
		sentry.CaptureException(err)
	}

	if svc.Publisher != nil && inserted {
		if err := svc.Publisher.PublishVerification(ctx, stored); err != nil {
			svc.Logger.Errorf("Failed to publish verification event: mollie_payment_id:%s error: %v", paymentID, err)
			sentry.CaptureException(err)
		}
	}

	svc.Logger.Infof("Payment verified: mollie_payment_id:%s bill_id:%d amount:%d %s oracle:%s",
		paymentID, billID, fiatAmount, payment.Amount.Currency, svc.Signer.Address().Hex())

	return &VerificationResult{
		Status:       common.VerificationStatusVerified,
		Verification: stored,
	}, nil
}

func validateMetadata(billIDRaw, payerRaw, makerRaw string) (int64, ethcommon.Address, ethcommon.Address, error) {
	var zero ethcommon.Address
	billIDRaw = strings.TrimSpace(billIDRaw)
	payerRaw = strings.TrimSpace(payerRaw)
	makerRaw = strings.TrimSpace(makerRaw)

	if billIDRaw == "" || payerRaw == "" || makerRaw == "" {
		return 0, zero, zero, fmt.Errorf("%w: billId, payerAddress and makerAddress are required", ErrMissingMetadata)
	}
	billID, err := strconv.ParseInt(billIDRaw, 10, 64)
	if err != nil || billID < 0 {
		return 0, zero, zero, fmt.Errorf("%w: billId %q is not a valid bill identifier", ErrInvalidMetadata, billIDRaw)
	}
	if !ethcommon.IsHexAddress(payerRaw) {
		return 0, zero, zero, fmt.Errorf("%w: payerAddress %q is not a valid address", ErrInvalidMetadata, payerRaw)
	}
	if !ethcommon.IsHexAddress(makerRaw) {
		return 0, zero, zero, fmt.Errorf("%w: makerAddress %q is not a valid address", ErrInvalidMetadata, makerRaw)
	}
	return billID, ethcommon.HexToAddress(payerRaw), ethcommon.HexToAddress(makerRaw), nil
}

// decimalAmountRegex is the only amount shape the provider documents:
// unsigned digits with an optional fraction. big.Rat.SetString on its own is
// far too liberal for money (base prefixes, exponents, fractions like 3/2).
var decimalAmountRegex = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseCents converts a provider decimal amount string to the smallest
// currency unit with exact arithmetic, rounding half up at the cent boundary
// so oracle and contract-side fee math never diverge by a cent.
func ParseCents(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount required")
	}
	if !decimalAmountRegex.MatchString(trimmed) {
		return 0, fmt.Errorf("invalid decimal amount %q", value)
	}
	rat := new(big.Rat)
	if _, ok := rat.SetString(trimmed); !ok {
		return 0, fmt.Errorf("invalid decimal amount %q", value)
	}
	rat.Mul(rat, big.NewRat(100, 1))

	quo, rem := new(big.Int).QuoRem(rat.Num(), rat.Denom(), new(big.Int))
	if new(big.Int).Lsh(rem, 1).Cmp(rat.Denom()) >= 0 {
		quo.Add(quo, big.NewInt(1))
	}
	if !quo.IsInt64() {
		return 0, fmt.Errorf("amount %q out of range", value)
	}
	return quo.Int64(), nil
}
