// Package flow classifies inbound vendor messages into a fixed set of
// conversational flows and executes the matching handler. There is no
// session object: context is reconstructed from recent message history.
package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/model"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/whatsapp"
)

const (
	FlowGreeting     = "greeting"
	FlowLoan         = "loan"
	FlowAadhaar      = "aadhaar_verify"
	FlowSupport      = "support"
	FlowLocation     = "location_update"
	FlowOnboarding   = "onboarding"
	FlowUnclassified = "unclassified"
)

const (
	// replyDedupWindow guards against double-delivery slipping past the
	// idempotency guard: an equivalent outbound within this window is skipped.
	replyDedupWindow = 30 * time.Second

	// supportLookback bounds how far back an outbound support prompt still
	// claims an ambiguous affirmative reply.
	supportLookback = time.Hour
)

// Event is one inbound message after envelope flattening.
type Event struct {
	From       string // normalized sender phone
	ExternalID string // provider message id
	MsgType    string // text|button|location|other
	Text       string
	Button     *model.ButtonReply
	Location   *model.LocationPayload
}

// BodyForLog renders the event as the message-log body.
func (e Event) BodyForLog() string {
	switch e.MsgType {
	case "button":
		return e.Button.Title
	case "location":
		return fmt.Sprintf("location shared: %.6f,%.6f", e.Location.Latitude, e.Location.Longitude)
	default:
		return e.Text
	}
}

type Classifier struct {
	vendors  repository.VendorsRepository
	messages repository.MessagesRepository
	flowLogs repository.FlowLogsRepository
	archive  repository.ArchiveRepository // optional
	sender   whatsapp.Sender
	self     string // business phone number id, recorded as outbound sender
	log      *zap.Logger
	now      func() time.Time
}

func NewClassifier(
	vendors repository.VendorsRepository,
	messages repository.MessagesRepository,
	flowLogs repository.FlowLogsRepository,
	archive repository.ArchiveRepository,
	sender whatsapp.Sender,
	selfPhone string,
	log *zap.Logger,
) *Classifier {
	return &Classifier{
		vendors:  vendors,
		messages: messages,
		flowLogs: flowLogs,
		archive:  archive,
		sender:   sender,
		self:     selfPhone,
		log:      log,
		now:      time.Now,
	}
}

var (
	greetingRe = regexp.MustCompile(`^(hi+|hello+|hey+|namaste)\b`)

	affirmatives = map[string]struct{}{
		"yes": {}, "y": {}, "yeah": {}, "yep": {}, "ok": {}, "okay": {},
		"sure": {}, "haan": {}, "ha": {}, "ji": {},
	}

	verifyKeywords     = []string{"verify", "aadhaar", "aadhar", "kyc"}
	onboardingKeywords = []string{"register", "join", "onboard", "sign up", "signup"}
)

func isAffirmative(text string) bool {
	for _, tok := range strings.Fields(text) {
		if _, ok := affirmatives[strings.Trim(tok, ".,!")]; ok {
			return true
		}
	}
	return false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Classify applies the ordered rule list (first match wins), runs the
// matched handler, and returns the flow name.
func (c *Classifier) Classify(ctx context.Context, ev Event) (string, error) {
	// 1) Button press: the most unambiguous signal.
	if ev.Button != nil {
		id := strings.ToLower(ev.Button.ID)
		title := strings.ToLower(ev.Button.Title)
		switch {
		case strings.Contains(id, "verify") || strings.Contains(title, "verify"):
			return FlowAadhaar, c.handleAadhaar(ctx, ev)
		case strings.Contains(id, "support") || strings.Contains(title, "support"):
			return FlowSupport, c.handleSupport(ctx, ev)
		}
		c.log.Info("unmapped button press", zap.String("from", ev.From), zap.String("button_id", ev.Button.ID))
		return FlowUnclassified, nil
	}

	// 2) Location payload.
	if ev.Location != nil {
		return FlowLocation, c.handleLocation(ctx, ev)
	}

	// 3) Text rules, in order.
	text := strings.ToLower(strings.TrimSpace(ev.Text))
	if text == "" {
		return FlowUnclassified, nil
	}

	switch {
	case isAffirmative(text) && c.hasRecentSupportPrompt(ctx, ev.From):
		return FlowSupport, c.handleSupport(ctx, ev)
	case strings.Contains(text, "loan"):
		return FlowLoan, c.handleLoan(ctx, ev)
	case isAffirmative(text) && containsAny(text, verifyKeywords):
		return FlowAadhaar, c.handleAadhaar(ctx, ev)
	case containsAny(text, onboardingKeywords):
		return FlowOnboarding, c.handleOnboarding(ctx, ev)
	case greetingRe.MatchString(text):
		return FlowGreeting, c.handleGreeting(ctx, ev)
	}

	c.log.Info("unclassified inbound", zap.String("from", ev.From))
	return FlowUnclassified, nil
}

// hasRecentSupportPrompt checks the message log for an outbound support
// reminder inside the lookback window. Errors count as "no prompt": a missed
// support match degrades to an unclassified reply, not a wrong flow.
func (c *Classifier) hasRecentSupportPrompt(ctx context.Context, phone string) bool {
	m, err := c.messages.LastOutboundReminder(ctx, phone, model.ReminderSupport, c.now().Add(-supportLookback))
	if err != nil {
		c.log.Warn("support prompt lookup failed", zap.Error(err))
		return false
	}
	return m != nil
}

// alreadyReplied reports whether an equivalent flow response went out inside
// the dedup window.
func (c *Classifier) alreadyReplied(ctx context.Context, phone, flowName string) bool {
	m, err := c.messages.LastOutboundFlow(ctx, phone, flowName, c.now().Add(-replyDedupWindow))
	if err != nil {
		c.log.Warn("reply dedup lookup failed", zap.Error(err))
		return false
	}
	return m != nil
}
