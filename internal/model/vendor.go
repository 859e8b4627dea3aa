package model

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Vendor is owned by the vendor-management subsystem; the engagement core
// only reads it (plus location/verification updates driven by flows).
type Vendor struct {
	ID              int64           `db:"id"`
	Name            string          `db:"name"`
	Phone           string          `db:"phone"`
	WhatsAppConsent bool            `db:"whatsapp_consent"`
	AadhaarVerified bool            `db:"aadhaar_verified"`
	OpenTime        string          `db:"open_time"`  // "9:30 AM", "09:30", ...
	CloseTime       string          `db:"close_time"`
	OpenDays        string          `db:"open_days"` // CSV of weekday indices 0-6 (0 = Sunday)
	Latitude        sql.NullFloat64 `db:"latitude"`
	Longitude       sql.NullFloat64 `db:"longitude"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// OpensOn reports whether the vendor operates on the given weekday.
// Malformed entries in the day list are ignored.
func (v Vendor) OpensOn(day time.Weekday) bool {
	for _, part := range strings.Split(v.OpenDays, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if n == int(day) {
			return true
		}
	}
	return false
}
