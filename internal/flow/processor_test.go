package flow

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/idempotency"
	"github.com/vendorhub/vendor-engage/internal/model"
)

type fakeContacts struct {
	upserts []string
}

func (f *fakeContacts) UpsertSeen(ctx context.Context, phone string, at time.Time) error {
	f.upserts = append(f.upserts, phone)
	return nil
}
func (f *fakeContacts) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.Contact, error) {
	return nil, nil
}

func (f *fakeMessages) inboundRows() []model.Message {
	var out []model.Message
	for _, m := range f.inserted {
		if m.Direction == model.DirectionInbound {
			out = append(out, m)
		}
	}
	return out
}

type procHarness struct {
	*harness
	contacts *fakeContacts
	p        *Processor
}

func newProcHarness(t *testing.T) *procHarness {
	t.Helper()
	ph := &procHarness{
		harness:  newHarness(t),
		contacts: &fakeContacts{},
	}
	guard := idempotency.New(nil, time.Hour, zap.NewNop())
	ph.p = NewProcessor(guard, ph.contacts, ph.messages, nil, ph.c, nil, "5550001", zap.NewNop())
	return ph
}

// Provider numbers arrive without the plus; normalization restores it.
const textPayload = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "5550001", "phone_number_id": "5550001"},
				"messages": [{
					"from": "919800000001",
					"id": "wamid.DUP1",
					"timestamp": "1772400000",
					"type": "text",
					"text": {"body": "hi"}
				}]
			}
		}]
	}]
}`

func TestProcessPayloadRedelivery(t *testing.T) {
	h := newProcHarness(t)
	body := []byte(textPayload)

	h.p.ProcessPayload(context.Background(), body)
	h.p.ProcessPayload(context.Background(), body)

	// Same provider message id twice: one inbound row, one reply, one upsert.
	if got := len(h.messages.inboundRows()); got != 1 {
		t.Fatalf("inbound rows = %d, want 1", got)
	}
	if got := len(h.messages.outboundByFlow(FlowGreeting)); got != 1 {
		t.Errorf("greeting replies = %d, want 1", got)
	}
	if got := len(h.contacts.upserts); got != 1 {
		t.Errorf("contact upserts = %d, want 1", got)
	}
}

func TestProcessPayloadInboundRow(t *testing.T) {
	h := newProcHarness(t)

	h.p.ProcessPayload(context.Background(), []byte(textPayload))

	rows := h.messages.inboundRows()
	if len(rows) != 1 {
		t.Fatalf("inbound rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.FromPhone != testPhone {
		t.Errorf("from = %s, want %s", row.FromPhone, testPhone)
	}
	if row.ToPhone != "5550001" {
		t.Errorf("to = %s, want the business number", row.ToPhone)
	}
	if row.ExternalID != "wamid.DUP1" || row.Meta.Kind != model.MetaInbound || row.Meta.MsgType != "text" {
		t.Errorf("row = %+v", row)
	}
}

func TestProcessPayloadMalformed(t *testing.T) {
	h := newProcHarness(t)

	for _, body := range []string{
		"",
		"not json",
		`{"object":`,
		`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{}}]}]}`,
	} {
		h.p.ProcessPayload(context.Background(), []byte(body))
	}

	if len(h.messages.inserted) != 0 {
		t.Errorf("malformed payloads must not write rows, got %d", len(h.messages.inserted))
	}
	if len(h.sender.calls) != 0 {
		t.Errorf("malformed payloads must not send, got %d", len(h.sender.calls))
	}
}

func TestProcessPayloadStatuses(t *testing.T) {
	h := newProcHarness(t)

	body := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"statuses": [
						{"id": "wamid.OUT1", "status": "delivered", "recipient_id": "919800000001"},
						{"id": "wamid.OUT2", "status": "weird", "recipient_id": "919800000001"}
					]
				}
			}]
		}]
	}`
	h.p.ProcessPayload(context.Background(), []byte(body))

	if got := h.messages.statusUpdates["wamid.OUT1"]; got != model.StatusDelivered {
		t.Errorf("wamid.OUT1 status = %q, want delivered", got)
	}
	if _, ok := h.messages.statusUpdates["wamid.OUT2"]; ok {
		t.Error("unknown delivery status must be ignored")
	}
}

func TestFlattenMessage(t *testing.T) {
	cases := []struct {
		name    string
		msg     model.InboundMessage
		msgType string
		ok      bool
	}{
		{
			name:    "text",
			msg:     model.InboundMessage{From: "919800000001", ID: "w1", Type: "text", Text: &model.TextBody{Body: "hi"}},
			msgType: "text",
			ok:      true,
		},
		{
			name: "button reply",
			msg: model.InboundMessage{From: "919800000001", ID: "w2", Type: "interactive",
				Interactive: &model.Interactive{Type: "button_reply", ButtonReply: &model.ButtonReply{ID: "need_support", Title: "Talk to support"}}},
			msgType: "button",
			ok:      true,
		},
		{
			name:    "location",
			msg:     model.InboundMessage{From: "919800000001", ID: "w3", Type: "location", Location: &model.LocationPayload{Latitude: 1, Longitude: 2}},
			msgType: "location",
			ok:      true,
		},
		{
			name: "unsupported type",
			msg:  model.InboundMessage{From: "919800000001", ID: "w4", Type: "audio"},
			ok:   false,
		},
		{
			name: "text without body struct",
			msg:  model.InboundMessage{From: "919800000001", ID: "w5", Type: "text"},
			ok:   false,
		},
		{
			name: "missing sender",
			msg:  model.InboundMessage{ID: "w6", Type: "text", Text: &model.TextBody{Body: "hi"}},
			ok:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := flattenMessage(tc.msg)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && ev.MsgType != tc.msgType {
				t.Errorf("msg type = %s, want %s", ev.MsgType, tc.msgType)
			}
		})
	}
}
