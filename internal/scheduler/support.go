package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/model"
)

// RunSupportTick sends the inactivity support prompt to vendors whose contact
// has been silent longer than the configured threshold. Cadence is coarse;
// the 24h reminder-log gate is the only dedup needed.
func (s *Scheduler) RunSupportTick(ctx context.Context) Summary {
	var sum Summary

	now := s.localNow()
	cutoff := now.AddDate(0, 0, -s.cfg.InactiveDays)

	contacts, err := s.contacts.ListInactiveSince(ctx, cutoff)
	if err != nil {
		s.log.Error("inactive contact list failed", zap.Error(err))
		sum.Errors++
		return sum
	}

	for _, contact := range contacts {
		if ctx.Err() != nil {
			return sum
		}

		// A contact with no registered, consented vendor is never messaged.
		v, err := s.vendors.GetByPhone(ctx, contact.Phone)
		if err != nil {
			s.log.Error("vendor lookup failed", zap.String("phone", contact.Phone), zap.Error(err))
			sum.Errors++
			continue
		}
		if v == nil || !v.WhatsAppConsent {
			sum.Skipped++
			continue
		}

		sent, err := s.reminders.SentSince(ctx, contact.Phone, model.ReminderSupport, now.Add(-24*time.Hour))
		if err != nil {
			s.log.Error("reminder log lookup failed", zap.String("phone", contact.Phone), zap.Error(err))
			sum.Errors++
			continue
		}
		if sent {
			sum.Skipped++
			continue
		}

		extID, err := s.sender.SendTemplate(ctx, contact.Phone, s.templates.SupportPrompt)
		if err != nil {
			s.log.Warn("support prompt send failed", zap.String("phone", contact.Phone), zap.Error(err))
			s.recordError(ctx, contact.Phone, model.ReminderSupport, err)
			sum.Errors++
			continue
		}

		s.recordReminder(ctx, contact.Phone, model.ReminderSupport, s.templates.SupportPrompt, extID, now)
		metrics.RemindersTotal.WithLabelValues(model.ReminderSupport.String(), "sent").Inc()
		sum.Sent++

		if s.cfg.SendGap > 0 {
			s.sleep(s.cfg.SendGap)
		}
	}

	return sum
}
