package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vendorhub/vendor-engage/internal/model"
)

// MessagesRepository persists the append-only conversation log. History
// queries double as conversational context: there is no session table.
type MessagesRepository interface {
	Insert(ctx context.Context, m model.Message) error
	UpdateStatusByExternalID(ctx context.Context, externalID string, status model.DeliveryStatus) error

	// LastOutboundReminder returns the most recent outbound reminder of the
	// given type sent to phone at or after since, or nil.
	LastOutboundReminder(ctx context.Context, phone string, typ model.ReminderType, since time.Time) (*model.Message, error)

	// LastOutboundFlow returns the most recent outbound flow response of the
	// given flow sent to phone at or after since, or nil.
	LastOutboundFlow(ctx context.Context, phone string, flow string, since time.Time) (*model.Message, error)

	// HasInboundLocationSince reports whether phone sent a location payload
	// (or a location-confirmation text) at or after since.
	HasInboundLocationSince(ctx context.Context, phone string, since time.Time) (bool, error)
}

type MessagesRepositoryImpl struct {
	db *sqlx.DB
}

func NewMessagesRepository(db *sqlx.DB) *MessagesRepositoryImpl {
	return &MessagesRepositoryImpl{db: db}
}

var _ MessagesRepository = (*MessagesRepositoryImpl)(nil)

const messageColumns = `id, external_id, from_phone, to_phone, body, direction, status, meta, created_at`

func (r *MessagesRepositoryImpl) Insert(ctx context.Context, m model.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
		    (id, external_id, from_phone, to_phone, body, direction, status, meta, created_at)
		VALUES
		    (?,  ?,           ?,          ?,        ?,    ?,         ?,      ?,    NOW())
	`, m.ID, m.ExternalID, m.FromPhone, m.ToPhone, m.Body, m.Direction.String(), m.Status.String(), m.Meta)
	return err
}

func (r *MessagesRepositoryImpl) UpdateStatusByExternalID(ctx context.Context, externalID string, status model.DeliveryStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET status = ?
		 WHERE external_id = ? AND direction = 'outbound'
	`, status.String(), externalID)
	return err
}

func (r *MessagesRepositoryImpl) LastOutboundReminder(ctx context.Context, phone string, typ model.ReminderType, since time.Time) (*model.Message, error) {
	var m model.Message
	err := r.db.GetContext(ctx, &m, `
		SELECT `+messageColumns+`
		  FROM messages
		 WHERE to_phone = ?
		   AND direction = 'outbound'
		   AND meta->>'$.kind' = 'reminder'
		   AND meta->>'$.reminder_type' = ?
		   AND created_at >= ?
		 ORDER BY created_at DESC LIMIT 1
	`, phone, typ.String(), since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessagesRepositoryImpl) LastOutboundFlow(ctx context.Context, phone string, flow string, since time.Time) (*model.Message, error) {
	var m model.Message
	err := r.db.GetContext(ctx, &m, `
		SELECT `+messageColumns+`
		  FROM messages
		 WHERE to_phone = ?
		   AND direction = 'outbound'
		   AND meta->>'$.kind' = 'flow'
		   AND meta->>'$.flow' = ?
		   AND created_at >= ?
		 ORDER BY created_at DESC LIMIT 1
	`, phone, flow, since)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessagesRepositoryImpl) HasInboundLocationSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		  FROM messages
		 WHERE from_phone = ?
		   AND direction = 'inbound'
		   AND created_at >= ?
		   AND (meta->>'$.msg_type' = 'location' OR body LIKE 'location shared%')
	`, phone, since)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
