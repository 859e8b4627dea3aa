package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// FlowLogsRepository persists the per-flow side-effect rows (support call
// requests, loan inquiry replies).
type FlowLogsRepository interface {
	InsertSupportCall(ctx context.Context, vendorPhone string, requestedAt time.Time) error
	SupportCallSince(ctx context.Context, vendorPhone string, since time.Time) (bool, error)
	InsertLoanReply(ctx context.Context, vendorPhone, body string) error
}

type FlowLogsRepositoryImpl struct {
	db *sqlx.DB
}

func NewFlowLogsRepository(db *sqlx.DB) *FlowLogsRepositoryImpl {
	return &FlowLogsRepositoryImpl{db: db}
}

var _ FlowLogsRepository = (*FlowLogsRepositoryImpl)(nil)

func (r *FlowLogsRepositoryImpl) InsertSupportCall(ctx context.Context, vendorPhone string, requestedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO support_call_log (vendor_phone, requested_at, answered)
		VALUES (?, ?, 0)
	`, vendorPhone, requestedAt)
	return err
}

func (r *FlowLogsRepositoryImpl) SupportCallSince(ctx context.Context, vendorPhone string, since time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		  FROM support_call_log
		 WHERE vendor_phone = ? AND requested_at >= ?
	`, vendorPhone, since)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *FlowLogsRepositoryImpl) InsertLoanReply(ctx context.Context, vendorPhone, body string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO loan_reply_log (vendor_phone, body, created_at)
		VALUES (?, ?, NOW())
	`, vendorPhone, body)
	return err
}
