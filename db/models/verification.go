package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// Verification is the append-only audit record for a verified payment. One
// row per provider payment id; the unique constraint is what makes duplicate
// webhook deliveries idempotent.
type Verification struct {
	ID                   int64        `json:"id" bun:",pk,autoincrement"`
	BillID               int64        `json:"bill_id" bun:",notnull"`
	MolliePaymentID      string       `json:"mollie_payment_id" bun:",unique,notnull"`
	PayerAddress         string       `json:"payer_address" bun:",notnull"`
	MakerAddress         string       `json:"maker_address" bun:",notnull"`
	FiatAmount           int64        `json:"fiat_amount" bun:",notnull"` // cents
	Currency             string       `json:"currency" bun:",nullzero"`
	PaymentReference     string       `json:"payment_reference" bun:",nullzero"`
	PaymentReferenceHash string       `json:"payment_reference_hash" bun:",notnull"`
	Timestamp            int64        `json:"timestamp" bun:",notnull"` // unix seconds at signing
	Signature            string       `json:"signature" bun:",notnull"`
	Status               string       `json:"status" bun:",default:'verified'"`
	CreatedAt            time.Time    `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt            bun.NullTime `json:"updated_at"`
}

func (v *Verification) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		v.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

var _ bun.BeforeAppendModelHook = (*Verification)(nil)
