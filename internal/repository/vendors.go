package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/vendorhub/vendor-engage/internal/model"
)

type VendorsRepository interface {
	ListConsented(ctx context.Context) ([]model.Vendor, error)
	GetByPhone(ctx context.Context, phone string) (*model.Vendor, error)
	UpdateLocation(ctx context.Context, phone string, lat, lng float64) error
	MarkAadhaarVerified(ctx context.Context, phone string) error
}

type VendorsRepositoryImpl struct {
	db *sqlx.DB
}

func NewVendorsRepository(db *sqlx.DB) *VendorsRepositoryImpl {
	return &VendorsRepositoryImpl{db: db}
}

var _ VendorsRepository = (*VendorsRepositoryImpl)(nil)

const vendorColumns = `id, name, phone, whatsapp_consent, aadhaar_verified,
	open_time, close_time, open_days, latitude, longitude, created_at, updated_at`

// ListConsented returns every vendor that opted into WhatsApp messaging.
func (r *VendorsRepositoryImpl) ListConsented(ctx context.Context) ([]model.Vendor, error) {
	var vendors []model.Vendor
	err := r.db.SelectContext(ctx, &vendors, `
		SELECT `+vendorColumns+`
		  FROM vendors
		 WHERE whatsapp_consent = 1
		 ORDER BY id
	`)
	return vendors, err
}

func (r *VendorsRepositoryImpl) GetByPhone(ctx context.Context, phone string) (*model.Vendor, error) {
	var v model.Vendor
	err := r.db.GetContext(ctx, &v, `
		SELECT `+vendorColumns+`
		  FROM vendors
		 WHERE phone = ? LIMIT 1
	`, phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VendorsRepositoryImpl) UpdateLocation(ctx context.Context, phone string, lat, lng float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vendors SET latitude = ?, longitude = ?, updated_at = NOW()
		 WHERE phone = ?
	`, lat, lng, phone)
	return err
}

func (r *VendorsRepositoryImpl) MarkAadhaarVerified(ctx context.Context, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vendors SET aadhaar_verified = 1, updated_at = NOW()
		 WHERE phone = ?
	`, phone)
	return err
}
