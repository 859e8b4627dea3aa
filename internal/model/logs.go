package model

import "time"

// ReminderLogEntry is the per-(contact, kind) send receipt. It is the
// authoritative "already sent today / within the window" check, stronger than
// scanning message bodies.
type ReminderLogEntry struct {
	ID            int64        `db:"id"`
	ContactNumber string       `db:"contact_number"`
	Kind          ReminderType `db:"kind"`
	SentAt        time.Time    `db:"sent_at"`
}

type DispatchType string

const (
	DispatchPreOpen DispatchType = "pre_open"
	DispatchOpen    DispatchType = "open"
)

func (t DispatchType) String() string { return string(t) }

// DispatchLogEntry is the per-vendor per-calendar-day receipt. The
// (vendor_id, date, type) tuple is unique; claiming it is an atomic
// insert-if-absent so overlapping ticks cannot double-send.
type DispatchLogEntry struct {
	ID       int64        `db:"id"`
	VendorID int64        `db:"vendor_id"`
	Date     string       `db:"date"` // YYYY-MM-DD in the scheduler's timezone
	Type     DispatchType `db:"type"`
	SentAt   time.Time    `db:"sent_at"`
}

// SupportCallLog records a vendor's confirmed support request awaiting a
// callback from the operations team.
type SupportCallLog struct {
	ID          int64     `db:"id"`
	VendorPhone string    `db:"vendor_phone"`
	RequestedAt time.Time `db:"requested_at"`
	Answered    bool      `db:"answered"`
}

// LoanReplyLog records a loan-inquiry reply for the lending team to follow up.
type LoanReplyLog struct {
	ID          int64     `db:"id"`
	VendorPhone string    `db:"vendor_phone"`
	Body        string    `db:"body"`
	CreatedAt   time.Time `db:"created_at"`
}
