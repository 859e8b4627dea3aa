package flow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/model"
	"github.com/vendorhub/vendor-engage/internal/util"
	"github.com/vendorhub/vendor-engage/internal/whatsapp"
)

// Reply template tags, recorded in the outbound Meta for audit and dedup.
const (
	tmplGreeting    = "greeting_response"
	tmplLoan        = "loan_response"
	tmplSupportAck  = "support_ack"
	tmplAadhaar     = "aadhaar_confirm"
	tmplLocationAck = "location_ack"
	tmplOnboarding  = "onboarding_intro"
)

func (c *Classifier) handleGreeting(ctx context.Context, ev Event) error {
	if c.alreadyReplied(ctx, ev.From, FlowGreeting) {
		return nil
	}
	text := "Hello! Welcome to the vendor helpline. Reply LOAN for loan info, or share your location to update your stall position."
	return c.reply(ctx, ev.From, text, FlowGreeting, tmplGreeting)
}

func (c *Classifier) handleLoan(ctx context.Context, ev Event) error {
	if c.alreadyReplied(ctx, ev.From, FlowLoan) {
		return nil
	}
	if err := c.flowLogs.InsertLoanReply(ctx, ev.From, ev.Text); err != nil {
		return fmt.Errorf("loan reply log: %w", err)
	}
	text := "Thanks for your interest in a vendor loan. Our lending partner will reach out within 2 working days."
	return c.reply(ctx, ev.From, text, FlowLoan, tmplLoan)
}

// handleSupport confirms a support callback. The support_call_log row is the
// exactly-once side effect: once a request exists inside the lookback window,
// repeated affirmatives are no-ops.
func (c *Classifier) handleSupport(ctx context.Context, ev Event) error {
	exists, err := c.flowLogs.SupportCallSince(ctx, ev.From, c.now().Add(-supportLookback))
	if err != nil {
		return fmt.Errorf("support call lookup: %w", err)
	}
	if exists {
		return nil
	}
	if err := c.flowLogs.InsertSupportCall(ctx, ev.From, c.now()); err != nil {
		return fmt.Errorf("support call log: %w", err)
	}
	text := "Got it. Our support team will call you back shortly."
	return c.reply(ctx, ev.From, text, FlowSupport, tmplSupportAck)
}

func (c *Classifier) handleAadhaar(ctx context.Context, ev Event) error {
	if c.alreadyReplied(ctx, ev.From, FlowAadhaar) {
		return nil
	}
	v, err := c.vendors.GetByPhone(ctx, ev.From)
	if err != nil {
		return fmt.Errorf("vendor lookup: %w", err)
	}
	if v == nil {
		c.log.Warn("aadhaar confirmation from unregistered number", zap.String("from", ev.From))
		return nil
	}
	if err := c.vendors.MarkAadhaarVerified(ctx, ev.From); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	text := "Your Aadhaar verification is confirmed. Thank you!"
	return c.reply(ctx, ev.From, text, FlowAadhaar, tmplAadhaar)
}

func (c *Classifier) handleLocation(ctx context.Context, ev Event) error {
	v, err := c.vendors.GetByPhone(ctx, ev.From)
	if err != nil {
		return fmt.Errorf("vendor lookup: %w", err)
	}
	if v != nil {
		if err := c.vendors.UpdateLocation(ctx, ev.From, ev.Location.Latitude, ev.Location.Longitude); err != nil {
			return fmt.Errorf("update location: %w", err)
		}
	}
	if c.alreadyReplied(ctx, ev.From, FlowLocation) {
		return nil
	}
	text := "Location received, thanks! Customers can now find your stall."
	return c.reply(ctx, ev.From, text, FlowLocation, tmplLocationAck)
}

func (c *Classifier) handleOnboarding(ctx context.Context, ev Event) error {
	if c.alreadyReplied(ctx, ev.From, FlowOnboarding) {
		return nil
	}
	extID, err := c.sender.SendInteractiveButtons(ctx, ev.From,
		"Welcome aboard! To finish registration, please verify your Aadhaar.",
		[]whatsapp.Button{
			{ID: "yes_verify_aadhar", Title: "Verify Aadhaar"},
			{ID: "need_support", Title: "Talk to support"},
		})
	if err != nil {
		c.recordSendError(ctx, ev.From, FlowOnboarding, err)
		return fmt.Errorf("send onboarding: %w", err)
	}
	c.recordOutbound(ctx, ev.From, "Welcome aboard! To finish registration, please verify your Aadhaar.", extID, FlowOnboarding, tmplOnboarding)
	return nil
}

// reply sends a text response and records it with flow-tagged meta.
func (c *Classifier) reply(ctx context.Context, phone, text, flowName, template string) error {
	extID, err := c.sender.SendText(ctx, phone, text)
	if err != nil {
		c.recordSendError(ctx, phone, flowName, err)
		return fmt.Errorf("send %s reply: %w", flowName, err)
	}
	c.recordOutbound(ctx, phone, text, extID, flowName, template)
	return nil
}

func (c *Classifier) recordOutbound(ctx context.Context, phone, body, externalID, flowName, template string) {
	m := model.Message{
		ID:         util.New(),
		ExternalID: externalID,
		FromPhone:  c.self,
		ToPhone:    phone,
		Body:       body,
		Direction:  model.DirectionOutbound,
		Status:     model.StatusSent,
		Meta:       model.Meta{Kind: model.MetaFlow, Flow: flowName, Template: template},
	}
	if err := c.messages.Insert(ctx, m); err != nil {
		c.log.Error("record outbound failed", zap.String("flow", flowName), zap.Error(err))
		return
	}
	if c.archive != nil {
		if err := c.archive.Insert(ctx, m); err != nil {
			c.log.Warn("archive outbound failed", zap.Error(err))
		}
	}
}

// recordSendError writes an error-kind message row so operators can audit
// failed sends from the same log they audit deliveries.
func (c *Classifier) recordSendError(ctx context.Context, phone, flowName string, sendErr error) {
	m := model.Message{
		ID:        util.New(),
		FromPhone: c.self,
		ToPhone:   phone,
		Direction: model.DirectionOutbound,
		Status:    model.StatusFailed,
		Meta:      model.Meta{Kind: model.MetaError, Flow: flowName, ErrorText: sendErr.Error()},
	}
	if err := c.messages.Insert(ctx, m); err != nil {
		c.log.Error("record send error failed", zap.Error(err))
	}
}
