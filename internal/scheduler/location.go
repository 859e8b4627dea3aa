package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/model"
)

// RunLocationTick scans all consented vendors once and sends any pre-open or
// at-open reminder whose window the current minute falls into. One bad vendor
// record or one failed send never aborts the batch.
func (s *Scheduler) RunLocationTick(ctx context.Context) Summary {
	var sum Summary

	now := s.localNow()
	vendors, err := s.vendors.ListConsented(ctx)
	if err != nil {
		s.log.Error("vendor list failed", zap.Error(err))
		sum.Errors++
		return sum
	}

	for _, v := range vendors {
		if ctx.Err() != nil {
			return sum
		}
		if !v.OpensOn(now.Weekday()) {
			sum.Skipped++
			continue
		}

		openMin, err := model.ParseClock(v.OpenTime)
		if err != nil {
			// One malformed record must not block the batch.
			s.log.Warn("skipping vendor with bad open time",
				zap.Int64("vendor_id", v.ID), zap.String("open_time", v.OpenTime))
			sum.Skipped++
			continue
		}

		diff := openMin - model.MinutesOfDay(now)
		typ, match := s.matchWindow(diff)
		if !match {
			sum.Skipped++
			continue
		}

		s.deliverLocationReminder(ctx, v, typ, now, &sum)
	}

	return sum
}

// matchWindow maps minutes-until-open onto a reminder window. Bands are
// half-open below the target so one calendar event matches exactly one band,
// and at least as wide as the tick interval so no event falls between ticks.
func (s *Scheduler) matchWindow(diffMin int) (model.DispatchType, bool) {
	tol := s.cfg.ToleranceMin
	switch {
	case diffMin <= s.cfg.PreOpenOffsetMin && diffMin > s.cfg.PreOpenOffsetMin-tol:
		return model.DispatchPreOpen, true
	case diffMin <= 0 && diffMin > -tol:
		return model.DispatchOpen, true
	}
	return "", false
}

// deliverLocationReminder claims the (vendor, date, type) slot, sends, and
// records. The claim happens before the send so overlapping ticks cannot
// both dispatch; a failed send releases the claim for the catch-up pass.
func (s *Scheduler) deliverLocationReminder(ctx context.Context, v model.Vendor, typ model.DispatchType, now time.Time, sum *Summary) {
	// The at-open reminder exists to prompt a location share; skip vendors
	// who already shared one since local midnight.
	if typ == model.DispatchOpen {
		shared, err := s.messages.HasInboundLocationSince(ctx, v.Phone, localMidnight(now))
		if err != nil {
			s.log.Warn("location lookup failed", zap.Int64("vendor_id", v.ID), zap.Error(err))
		} else if shared {
			sum.Skipped++
			return
		}
	}

	date := now.Format("2006-01-02")
	claimed, err := s.dispatch.TryClaim(ctx, v.ID, date, typ)
	if err != nil {
		s.log.Error("dispatch claim failed", zap.Int64("vendor_id", v.ID), zap.Error(err))
		sum.Errors++
		return
	}
	if !claimed {
		sum.Skipped++
		return
	}

	template := s.templates.PreOpenReminder
	reminderType := model.ReminderPreOpen
	if typ == model.DispatchOpen {
		template = s.templates.OpenReminder
		reminderType = model.ReminderOpen
	}

	extID, err := s.sender.SendTemplate(ctx, v.Phone, template)
	if err != nil {
		if relErr := s.dispatch.Release(ctx, v.ID, date, typ); relErr != nil {
			s.log.Error("dispatch release failed", zap.Int64("vendor_id", v.ID), zap.Error(relErr))
		}
		s.log.Warn("location reminder send failed",
			zap.Int64("vendor_id", v.ID), zap.String("type", typ.String()), zap.Error(err))
		s.recordError(ctx, v.Phone, reminderType, err)
		sum.Errors++
		return
	}

	s.recordReminder(ctx, v.Phone, reminderType, template, extID, now)
	metrics.RemindersTotal.WithLabelValues(reminderType.String(), "sent").Inc()
	sum.Sent++

	if s.cfg.SendGap > 0 {
		s.sleep(s.cfg.SendGap)
	}
}

// RunCatchupPass is the compensating daily batch: late in the local morning
// it re-covers vendors whose regular tick was missed (restart, clock skew).
// It is idempotent per day per vendor via the same dispatch log.
func (s *Scheduler) RunCatchupPass(ctx context.Context) Summary {
	var sum Summary

	now := s.localNow()
	if now.Hour() != s.cfg.CatchupHour {
		return sum
	}

	vendors, err := s.vendors.ListConsented(ctx)
	if err != nil {
		s.log.Error("vendor list failed", zap.Error(err))
		sum.Errors++
		return sum
	}

	date := now.Format("2006-01-02")
	for _, v := range vendors {
		if ctx.Err() != nil {
			return sum
		}
		if !v.OpensOn(now.Weekday()) {
			sum.Skipped++
			continue
		}
		covered, err := s.dispatch.ExistsAny(ctx, v.ID, date)
		if err != nil {
			s.log.Error("dispatch lookup failed", zap.Int64("vendor_id", v.ID), zap.Error(err))
			sum.Errors++
			continue
		}
		if covered {
			sum.Skipped++
			continue
		}
		shared, err := s.messages.HasInboundLocationSince(ctx, v.Phone, localMidnight(now))
		if err == nil && shared {
			sum.Skipped++
			continue
		}

		// Claim the pre-open slot: the catch-up re-issues the day's first
		// missed reminder.
		s.deliverCatchup(ctx, v, date, now, &sum)
	}

	return sum
}

func (s *Scheduler) deliverCatchup(ctx context.Context, v model.Vendor, date string, now time.Time, sum *Summary) {
	claimed, err := s.dispatch.TryClaim(ctx, v.ID, date, model.DispatchPreOpen)
	if err != nil {
		sum.Errors++
		s.log.Error("catchup claim failed", zap.Int64("vendor_id", v.ID), zap.Error(err))
		return
	}
	if !claimed {
		sum.Skipped++
		return
	}

	extID, err := s.sender.SendTemplate(ctx, v.Phone, s.templates.PreOpenReminder)
	if err != nil {
		if relErr := s.dispatch.Release(ctx, v.ID, date, model.DispatchPreOpen); relErr != nil {
			s.log.Error("catchup release failed", zap.Int64("vendor_id", v.ID), zap.Error(relErr))
		}
		s.recordError(ctx, v.Phone, model.ReminderPreOpen, err)
		sum.Errors++
		return
	}

	s.recordReminder(ctx, v.Phone, model.ReminderPreOpen, s.templates.PreOpenReminder, extID, now)
	metrics.RemindersTotal.WithLabelValues(model.ReminderPreOpen.String(), "sent").Inc()
	sum.Sent++

	if s.cfg.SendGap > 0 {
		s.sleep(s.cfg.SendGap)
	}
}
