package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Bill mirrors the on-chain bill for the platform UI. Only the verification
// fields are owned by this service; the rest of the row is written by the
// platform backend when the bill is created.
type Bill struct {
	ID                int64        `json:"id" bun:",pk"` // on-chain bill id
	MakerAddress      string       `json:"maker_address" bun:",nullzero"`
	Description       string       `json:"description" bun:",nullzero"`
	PaymentVerified   bool         `json:"payment_verified" bun:",default:false"`
	PaymentVerifiedAt bun.NullTime `json:"payment_verified_at"`
	MolliePaymentID   string       `json:"mollie_payment_id" bun:",nullzero"`
	Signature         string       `json:"signature" bun:",nullzero"`
	CreatedAt         time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt         bun.NullTime `json:"updated_at"`
}

func (b *Bill) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		b.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Bill)(nil)
