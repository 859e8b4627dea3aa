package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/vendorhub/vendor-engage/internal/model"
)

// ArchiveRepository is the ClickHouse read model for operator reports. Writes
// are best-effort copies of the MySQL rows; the transactional path never
// depends on them.
type ArchiveRepository interface {
	Insert(ctx context.Context, m model.Message) error
	List(ctx context.Context, phone string, direction model.Direction, limit, offset int) ([]model.Message, error)
}

type archiveRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewArchiveRepository(ch *sqlx.DB) ArchiveRepository {
	return &archiveRepository{ch: ch}
}

func (r *archiveRepository) Insert(ctx context.Context, m model.Message) error {
	meta, err := m.Meta.Value()
	if err != nil {
		return err
	}
	_, err = r.ch.ExecContext(ctx, `
		INSERT INTO vengage.messages_archive
		    (id, external_id, from_phone, to_phone, body, direction, status, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, now())
	`, m.ID, m.ExternalID, m.FromPhone, m.ToPhone, m.Body, m.Direction.String(), m.Status.String(), meta)
	return err
}

func (r *archiveRepository) List(ctx context.Context, phone string, direction model.Direction, limit, offset int) ([]model.Message, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, external_id, from_phone, to_phone, body, direction, status, meta, created_at
		FROM vengage.messages_archive
		WHERE 1 = 1
	`
	args := []any{}

	if phone != "" {
		q += " AND (from_phone = ? OR to_phone = ?)"
		args = append(args, phone, phone)
	}
	if direction != "" {
		q += " AND direction = ?"
		args = append(args, direction.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.Message
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
