package flow

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/idempotency"
	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/model"
	"github.com/vendorhub/vendor-engage/internal/relay"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/util"
)

// Processor runs the post-acknowledgment half of the webhook pipeline:
// parse, dedup, contact upsert, message log, classification, relay.
type Processor struct {
	guard      *idempotency.Guard
	contacts   repository.ContactsRepository
	messages   repository.MessagesRepository
	archive    repository.ArchiveRepository // optional
	classifier *Classifier
	relay      *relay.Relay // optional
	self       string // business phone number id, recorded as inbound recipient
	log        *zap.Logger
	now        func() time.Time
	timeout    time.Duration
}

func NewProcessor(
	guard *idempotency.Guard,
	contacts repository.ContactsRepository,
	messages repository.MessagesRepository,
	archive repository.ArchiveRepository,
	classifier *Classifier,
	rl *relay.Relay,
	selfPhone string,
	log *zap.Logger,
) *Processor {
	return &Processor{
		guard:      guard,
		contacts:   contacts,
		messages:   messages,
		archive:    archive,
		classifier: classifier,
		relay:      rl,
		self:       selfPhone,
		log:        log,
		now:        time.Now,
		timeout:    30 * time.Second,
	}
}

// ProcessPayload handles one verified webhook body. It runs detached from
// the HTTP request: the provider has already been acknowledged.
func (p *Processor) ProcessPayload(ctx context.Context, body []byte) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var payload model.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		p.log.Warn("malformed webhook payload", zap.Error(err))
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				p.applyStatus(ctx, st)
			}
			for _, msg := range change.Value.Messages {
				p.processMessage(ctx, msg)
			}
		}
	}

	if p.relay != nil {
		p.relay.Forward(ctx, body)
	}
}

func (p *Processor) applyStatus(ctx context.Context, st model.StatusUpdate) {
	status := model.DeliveryStatus(st.Status)
	if !status.Valid() {
		p.log.Debug("ignoring unknown delivery status", zap.String("status", st.Status))
		return
	}
	if err := p.messages.UpdateStatusByExternalID(ctx, st.ID, status); err != nil {
		p.log.Warn("status update failed", zap.String("external_id", st.ID), zap.Error(err))
	}
}

func (p *Processor) processMessage(ctx context.Context, msg model.InboundMessage) {
	if p.guard.CheckAndMark(ctx, msg.ID) {
		metrics.WebhookEventsTotal.WithLabelValues("duplicate").Inc()
		p.log.Debug("duplicate webhook event", zap.String("external_id", msg.ID))
		return
	}

	ev, ok := flattenMessage(msg)
	if !ok {
		metrics.WebhookEventsTotal.WithLabelValues("invalid").Inc()
		p.log.Warn("inbound message with unusable content",
			zap.String("external_id", msg.ID), zap.String("type", msg.Type))
		return
	}

	if err := p.contacts.UpsertSeen(ctx, ev.From, p.now()); err != nil {
		p.log.Warn("contact upsert failed", zap.String("phone", ev.From), zap.Error(err))
	}

	inbound := model.Message{
		ID:         util.New(),
		ExternalID: msg.ID,
		FromPhone:  ev.From,
		ToPhone:    p.self,
		Body:       ev.BodyForLog(),
		Direction:  model.DirectionInbound,
		Status:     model.StatusReceived,
		Meta:       model.Meta{Kind: model.MetaInbound, MsgType: ev.MsgType},
	}
	if err := p.messages.Insert(ctx, inbound); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		p.log.Error("inbound message insert failed", zap.Error(err))
		return
	}
	if p.archive != nil {
		if err := p.archive.Insert(ctx, inbound); err != nil {
			p.log.Warn("archive inbound failed", zap.Error(err))
		}
	}

	flowName, err := p.classifier.Classify(ctx, ev)
	metrics.FlowsTotal.WithLabelValues(flowName).Inc()
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("error").Inc()
		p.log.Error("flow handler failed", zap.String("flow", flowName), zap.Error(err))
		return
	}
	metrics.WebhookEventsTotal.WithLabelValues("ok").Inc()
}

// flattenMessage converts the provider shape into a classifier event.
func flattenMessage(msg model.InboundMessage) (Event, bool) {
	ev := Event{
		From:       util.NormalizePhone(msg.From),
		ExternalID: msg.ID,
	}
	switch {
	case msg.Type == "interactive" && msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
		ev.MsgType = "button"
		ev.Button = msg.Interactive.ButtonReply
	case msg.Type == "location" && msg.Location != nil:
		ev.MsgType = "location"
		ev.Location = msg.Location
	case msg.Type == "text" && msg.Text != nil:
		ev.MsgType = "text"
		ev.Text = msg.Text.Body
	default:
		return ev, false
	}
	return ev, ev.From != ""
}
