package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vendorhub/vendor-engage/internal/model"
)

type ContactsRepository interface {
	// UpsertSeen creates the contact on first sight and bumps last_seen otherwise.
	UpsertSeen(ctx context.Context, phone string, at time.Time) error
	ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.Contact, error)
}

type ContactsRepositoryImpl struct {
	db *sqlx.DB
}

func NewContactsRepository(db *sqlx.DB) *ContactsRepositoryImpl {
	return &ContactsRepositoryImpl{db: db}
}

var _ ContactsRepository = (*ContactsRepositoryImpl)(nil)

func (r *ContactsRepositoryImpl) UpsertSeen(ctx context.Context, phone string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (phone, last_seen, created_at)
		VALUES (?, ?, NOW())
		ON DUPLICATE KEY UPDATE last_seen = VALUES(last_seen)
	`, phone, at)
	return err
}

func (r *ContactsRepositoryImpl) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.Contact, error) {
	var contacts []model.Contact
	err := r.db.SelectContext(ctx, &contacts, `
		SELECT id, phone, last_seen, created_at
		  FROM contacts
		 WHERE last_seen < ?
		 ORDER BY last_seen
	`, cutoff)
	return contacts, err
}
