package model

import "time"

// Contact tracks recency for every distinct WhatsApp sender; upserted on each
// inbound message. A Contact with no matching Vendor is never messaged.
type Contact struct {
	ID        int64     `db:"id"`
	Phone     string    `db:"phone"`
	LastSeen  time.Time `db:"last_seen"`
	CreatedAt time.Time `db:"created_at"`
}
