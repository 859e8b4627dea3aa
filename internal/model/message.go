package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) String() string { return string(d) }

func (d Direction) Valid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

type DeliveryStatus string

const (
	StatusReceived  DeliveryStatus = "received"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusFailed    DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusReceived, StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// MetaKind is the closed set of message annotations. Every persisted message
// carries exactly one kind; consumers switch on it instead of probing
// free-form fields.
type MetaKind string

const (
	MetaInbound  MetaKind = "inbound"
	MetaReminder MetaKind = "reminder"
	MetaFlow     MetaKind = "flow"
	MetaStatus   MetaKind = "status"
	MetaError    MetaKind = "error"
)

type ReminderType string

const (
	ReminderPreOpen ReminderType = "pre_open"
	ReminderOpen    ReminderType = "open"
	ReminderSupport ReminderType = "support"
)

func (t ReminderType) String() string { return string(t) }

// Meta is the tagged annotation stored alongside a message row (JSON column).
// Which fields are set depends on Kind:
//   - inbound:  MsgType
//   - reminder: ReminderType, Template
//   - flow:     Flow, Template
//   - status:   StatusValue
//   - error:    ErrorText
type Meta struct {
	Kind         MetaKind     `json:"kind"`
	MsgType      string       `json:"msg_type,omitempty"` // text|button|location
	ReminderType ReminderType `json:"reminder_type,omitempty"`
	Flow         string       `json:"flow,omitempty"`
	Template     string       `json:"template,omitempty"`
	StatusValue  string       `json:"status,omitempty"`
	ErrorText    string       `json:"error,omitempty"`
}

func (m Meta) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Meta) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	case nil:
		*m = Meta{}
		return nil
	default:
		return fmt.Errorf("meta: unsupported scan type %T", src)
	}
}

// Message is the append-only conversation record. It is the only persisted
// conversation state: flow context is reconstructed by querying recent rows.
type Message struct {
	ID         string         `db:"id"` // ULID
	ExternalID string         `db:"external_id"`
	FromPhone  string         `db:"from_phone"`
	ToPhone    string         `db:"to_phone"`
	Body       string         `db:"body"`
	Direction  Direction      `db:"direction"`
	Status     DeliveryStatus `db:"status"`
	Meta       Meta           `db:"meta"`
	CreatedAt  time.Time      `db:"created_at"`
}
