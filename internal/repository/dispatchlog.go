package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/vendorhub/vendor-engage/internal/model"
)

// DispatchLogRepository enforces at-most-once per (vendor, date, type).
// TryClaim is an atomic insert-if-absent against the unique key, so it holds
// under overlapping ticks and would keep holding under horizontal scaling.
type DispatchLogRepository interface {
	TryClaim(ctx context.Context, vendorID int64, date string, typ model.DispatchType) (bool, error)
	Release(ctx context.Context, vendorID int64, date string, typ model.DispatchType) error
	ExistsAny(ctx context.Context, vendorID int64, date string) (bool, error)
}

type DispatchLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewDispatchLogRepository(db *sqlx.DB) *DispatchLogRepositoryImpl {
	return &DispatchLogRepositoryImpl{db: db}
}

var _ DispatchLogRepository = (*DispatchLogRepositoryImpl)(nil)

// TryClaim returns true when this caller won the (vendor, date, type) slot.
func (r *DispatchLogRepositoryImpl) TryClaim(ctx context.Context, vendorID int64, date string, typ model.DispatchType) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT IGNORE INTO dispatch_log (vendor_id, date, type, sent_at)
		VALUES (?, ?, ?, NOW())
	`, vendorID, date, typ.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release frees a claim whose send attempt failed, so the catch-up pass can retry.
func (r *DispatchLogRepositoryImpl) Release(ctx context.Context, vendorID int64, date string, typ model.DispatchType) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM dispatch_log
		 WHERE vendor_id = ? AND date = ? AND type = ?
	`, vendorID, date, typ.String())
	return err
}

func (r *DispatchLogRepositoryImpl) ExistsAny(ctx context.Context, vendorID int64, date string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		  FROM dispatch_log
		 WHERE vendor_id = ? AND date = ?
	`, vendorID, date)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
