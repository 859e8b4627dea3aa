package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vendorhub/vendor-engage/internal/model"
)

type ReminderLogRepository interface {
	Insert(ctx context.Context, contactNumber string, kind model.ReminderType, sentAt time.Time) error
	SentSince(ctx context.Context, contactNumber string, kind model.ReminderType, since time.Time) (bool, error)
}

type ReminderLogRepositoryImpl struct {
	db *sqlx.DB
}

func NewReminderLogRepository(db *sqlx.DB) *ReminderLogRepositoryImpl {
	return &ReminderLogRepositoryImpl{db: db}
}

var _ ReminderLogRepository = (*ReminderLogRepositoryImpl)(nil)

func (r *ReminderLogRepositoryImpl) Insert(ctx context.Context, contactNumber string, kind model.ReminderType, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminder_log (contact_number, kind, sent_at)
		VALUES (?, ?, ?)
	`, contactNumber, kind.String(), sentAt)
	return err
}

func (r *ReminderLogRepositoryImpl) SentSince(ctx context.Context, contactNumber string, kind model.ReminderType, since time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		  FROM reminder_log
		 WHERE contact_number = ? AND kind = ? AND sent_at >= ?
	`, contactNumber, kind.String(), since)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
