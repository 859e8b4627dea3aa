// Package scheduler emits time-windowed reminders to consented vendors:
// location prompts around opening time, a daily catch-up pass, and
// inactivity support prompts. All sends are gated by durable dispatch and
// reminder logs so a coarse polling interval never causes double-sends.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/metrics"
	"github.com/vendorhub/vendor-engage/internal/model"
	"github.com/vendorhub/vendor-engage/internal/repository"
	"github.com/vendorhub/vendor-engage/internal/util"
	"github.com/vendorhub/vendor-engage/internal/whatsapp"
)

type Scheduler struct {
	vendors   repository.VendorsRepository
	contacts  repository.ContactsRepository
	messages  repository.MessagesRepository
	reminders repository.ReminderLogRepository
	dispatch  repository.DispatchLogRepository
	archive   repository.ArchiveRepository // optional
	sender    whatsapp.Sender

	cfg       config.SchedulerConfig
	templates config.TemplatesConfig
	loc       *time.Location
	self      string // business phone number id
	log       *zap.Logger

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func New(
	vendors repository.VendorsRepository,
	contacts repository.ContactsRepository,
	messages repository.MessagesRepository,
	reminders repository.ReminderLogRepository,
	dispatch repository.DispatchLogRepository,
	archive repository.ArchiveRepository,
	sender whatsapp.Sender,
	cfg config.SchedulerConfig,
	templates config.TemplatesConfig,
	selfPhone string,
	log *zap.Logger,
) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	if cfg.PreOpenOffsetMin <= 0 {
		cfg.PreOpenOffsetMin = 15
	}
	if cfg.InactiveDays <= 0 {
		cfg.InactiveDays = 4
	}
	// The tolerance band must be at least as wide as the polling interval,
	// otherwise a window can fall entirely between two ticks.
	intervalMin := int(cfg.LocationInterval.Round(time.Minute) / time.Minute)
	if intervalMin < 1 {
		intervalMin = 1
	}
	if cfg.ToleranceMin < intervalMin {
		cfg.ToleranceMin = intervalMin
	}
	// It must also stay within the pre-open offset: a wider band would make
	// the pre-open and at-open windows overlap around the opening minute.
	if cfg.ToleranceMin > cfg.PreOpenOffsetMin {
		cfg.ToleranceMin = cfg.PreOpenOffsetMin
	}

	return &Scheduler{
		vendors:   vendors,
		contacts:  contacts,
		messages:  messages,
		reminders: reminders,
		dispatch:  dispatch,
		archive:   archive,
		sender:    sender,
		cfg:       cfg,
		templates: templates,
		loc:       loc,
		self:      selfPhone,
		log:       log,
		now:       time.Now,
		sleep:     time.Sleep,
	}, nil
}

// Summary is the per-run observability record.
type Summary struct {
	Sent    int
	Skipped int
	Errors  int
}

// Run blocks until ctx is cancelled, driving the three reminder loops.
func (s *Scheduler) Run(ctx context.Context) error {
	locTick := time.NewTicker(s.cfg.LocationInterval)
	supTick := time.NewTicker(s.cfg.SupportInterval)
	catchTick := time.NewTicker(s.cfg.CatchupInterval)
	defer locTick.Stop()
	defer supTick.Stop()
	defer catchTick.Stop()

	// First pass immediately; a restart should not wait a full interval.
	s.logSummary("location", s.RunLocationTick(ctx))
	s.logSummary("support", s.RunSupportTick(ctx))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-locTick.C:
			s.logSummary("location", s.RunLocationTick(ctx))
		case <-supTick.C:
			s.logSummary("support", s.RunSupportTick(ctx))
		case <-catchTick.C:
			s.logSummary("catchup", s.RunCatchupPass(ctx))
		}
	}
}

func (s *Scheduler) logSummary(run string, sum Summary) {
	s.log.Info("reminder run complete",
		zap.String("run", run),
		zap.Int("sent", sum.Sent),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
	)
}

// localNow returns the wall clock in the vendors' fixed timezone.
func (s *Scheduler) localNow() time.Time {
	return s.now().In(s.loc)
}

func localMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// recordReminder writes the outbound message row and the reminder-log receipt.
func (s *Scheduler) recordReminder(ctx context.Context, phone string, typ model.ReminderType, template, externalID string, at time.Time) {
	m := model.Message{
		ID:         util.New(),
		ExternalID: externalID,
		FromPhone:  s.self,
		ToPhone:    phone,
		Body:       template,
		Direction:  model.DirectionOutbound,
		Status:     model.StatusSent,
		Meta:       model.Meta{Kind: model.MetaReminder, ReminderType: typ, Template: template},
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		s.log.Error("record reminder message failed", zap.Error(err))
	} else if s.archive != nil {
		if err := s.archive.Insert(ctx, m); err != nil {
			s.log.Warn("archive reminder failed", zap.Error(err))
		}
	}
	if err := s.reminders.Insert(ctx, phone, typ, at); err != nil {
		s.log.Error("reminder log insert failed", zap.Error(err))
	}
}

// recordError writes an error-kind message row so failed reminders surface in
// the same audit log.
func (s *Scheduler) recordError(ctx context.Context, phone string, typ model.ReminderType, sendErr error) {
	m := model.Message{
		ID:        util.New(),
		FromPhone: s.self,
		ToPhone:   phone,
		Direction: model.DirectionOutbound,
		Status:    model.StatusFailed,
		Meta:      model.Meta{Kind: model.MetaError, ReminderType: typ, ErrorText: sendErr.Error()},
	}
	if err := s.messages.Insert(ctx, m); err != nil {
		s.log.Error("record reminder error failed", zap.Error(err))
	}
	metrics.RemindersTotal.WithLabelValues(typ.String(), "error").Inc()
}
