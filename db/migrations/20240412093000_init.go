package migrations

import (
	"context"

	"github.com/billbridge/oracle/db/models"
	"github.com/uptrace/bun"
)

/* This init reflects the latest model fields when run on a fresh db.
Make sure that subsequent migrations use IfNotExists/IfExists when
adding/removing columns, otherwise it's going to result in errors. */
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if _, err := db.NewCreateTable().Model((*models.Verification)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*models.Bill)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateIndex().
			Model((*models.Verification)(nil)).
			Index("verifications_bill_id_idx").
			IfNotExists().
			Column("bill_id").
			Exec(ctx); err != nil {
			return err
		}

		return nil
	}, nil)
}
