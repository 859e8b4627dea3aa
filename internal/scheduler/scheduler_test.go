package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vendorhub/vendor-engage/internal/config"
	"github.com/vendorhub/vendor-engage/internal/model"
	"github.com/vendorhub/vendor-engage/internal/whatsapp"
)

// ---- fakes ----

type fakeVendors struct {
	consented []model.Vendor
	byPhone   map[string]*model.Vendor
}

func (f *fakeVendors) ListConsented(ctx context.Context) ([]model.Vendor, error) {
	return f.consented, nil
}
func (f *fakeVendors) GetByPhone(ctx context.Context, phone string) (*model.Vendor, error) {
	return f.byPhone[phone], nil
}
func (f *fakeVendors) UpdateLocation(ctx context.Context, phone string, lat, lng float64) error {
	return nil
}
func (f *fakeVendors) MarkAadhaarVerified(ctx context.Context, phone string) error { return nil }

type fakeContacts struct {
	inactive []model.Contact
}

func (f *fakeContacts) UpsertSeen(ctx context.Context, phone string, at time.Time) error { return nil }
func (f *fakeContacts) ListInactiveSince(ctx context.Context, cutoff time.Time) ([]model.Contact, error) {
	return f.inactive, nil
}

type fakeMessages struct {
	inserted       []model.Message
	locationShared map[string]bool
}

func (f *fakeMessages) Insert(ctx context.Context, m model.Message) error {
	f.inserted = append(f.inserted, m)
	return nil
}
func (f *fakeMessages) UpdateStatusByExternalID(ctx context.Context, externalID string, status model.DeliveryStatus) error {
	return nil
}
func (f *fakeMessages) LastOutboundReminder(ctx context.Context, phone string, typ model.ReminderType, since time.Time) (*model.Message, error) {
	return nil, nil
}
func (f *fakeMessages) LastOutboundFlow(ctx context.Context, phone string, flow string, since time.Time) (*model.Message, error) {
	return nil, nil
}
func (f *fakeMessages) HasInboundLocationSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	return f.locationShared[phone], nil
}

func (f *fakeMessages) errorRows() int {
	n := 0
	for _, m := range f.inserted {
		if m.Meta.Kind == model.MetaError {
			n++
		}
	}
	return n
}

type reminderEntry struct {
	phone string
	typ   model.ReminderType
	at    time.Time
}

type fakeReminderLog struct {
	entries []reminderEntry
}

func (f *fakeReminderLog) Insert(ctx context.Context, phone string, typ model.ReminderType, at time.Time) error {
	f.entries = append(f.entries, reminderEntry{phone, typ, at})
	return nil
}
func (f *fakeReminderLog) SentSince(ctx context.Context, phone string, typ model.ReminderType, since time.Time) (bool, error) {
	for _, e := range f.entries {
		if e.phone == phone && e.typ == typ && !e.at.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type fakeDispatch struct {
	claims map[string]bool
}

func slotKey(vendorID int64, date string, typ model.DispatchType) string {
	return fmt.Sprintf("%d|%s|%s", vendorID, date, typ)
}

func (f *fakeDispatch) TryClaim(ctx context.Context, vendorID int64, date string, typ model.DispatchType) (bool, error) {
	key := slotKey(vendorID, date, typ)
	if f.claims[key] {
		return false, nil
	}
	if f.claims == nil {
		f.claims = map[string]bool{}
	}
	f.claims[key] = true
	return true, nil
}
func (f *fakeDispatch) Release(ctx context.Context, vendorID int64, date string, typ model.DispatchType) error {
	delete(f.claims, slotKey(vendorID, date, typ))
	return nil
}
func (f *fakeDispatch) ExistsAny(ctx context.Context, vendorID int64, date string) (bool, error) {
	prefix := fmt.Sprintf("%d|%s|", vendorID, date)
	for key := range f.claims {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			return true, nil
		}
	}
	return false, nil
}

type templateCall struct {
	phone    string
	template string
}

type fakeSender struct {
	fail  bool
	calls []templateCall
}

func (f *fakeSender) SendTemplate(ctx context.Context, phone, name string) (string, error) {
	if f.fail {
		return "", errors.New("upstream 500")
	}
	f.calls = append(f.calls, templateCall{phone, name})
	return "wamid.OUT", nil
}
func (f *fakeSender) SendText(ctx context.Context, phone, text string) (string, error) {
	return "wamid.OUT", nil
}
func (f *fakeSender) SendInteractiveButtons(ctx context.Context, phone, body string, buttons []whatsapp.Button) (string, error) {
	return "wamid.OUT", nil
}

// ---- harness ----

// Monday in the test timezone.
var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type harness struct {
	vendors   *fakeVendors
	contacts  *fakeContacts
	messages  *fakeMessages
	reminders *fakeReminderLog
	dispatch  *fakeDispatch
	sender    *fakeSender
	s         *Scheduler
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		vendors:   &fakeVendors{byPhone: map[string]*model.Vendor{}},
		contacts:  &fakeContacts{},
		messages:  &fakeMessages{locationShared: map[string]bool{}},
		reminders: &fakeReminderLog{},
		dispatch:  &fakeDispatch{claims: map[string]bool{}},
		sender:    &fakeSender{},
	}

	cfg := config.SchedulerConfig{
		Timezone:         "UTC",
		LocationInterval: 90 * time.Second,
		SupportInterval:  time.Hour,
		CatchupInterval:  30 * time.Minute,
		PreOpenOffsetMin: 15,
		ToleranceMin:     4,
		CatchupHour:      11,
		InactiveDays:     4,
	}
	templates := config.TemplatesConfig{
		PreOpenReminder: "share_location_pre_open",
		OpenReminder:    "share_location_open",
		SupportPrompt:   "vendor_support_checkin",
	}

	s, err := New(h.vendors, h.contacts, h.messages, h.reminders, h.dispatch, nil,
		h.sender, cfg, templates, "5550001", zap.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.now = func() time.Time { return h.now }
	s.sleep = func(time.Duration) {}
	h.s = s
	return h
}

func (h *harness) addVendor(id int64, phone, openTime, days string) {
	v := model.Vendor{ID: id, Phone: phone, WhatsAppConsent: true, OpenTime: openTime, OpenDays: days}
	h.vendors.consented = append(h.vendors.consented, v)
	h.vendors.byPhone[phone] = &v
}

func (h *harness) at(hour, min int) {
	h.now = baseDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

// ---- location tick ----

func TestLocationTickPreOpenOnce(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1,2,3,4,5,6")
	h.at(9, 47) // 13 minutes before open

	sum := h.s.RunLocationTick(context.Background())
	if sum.Sent != 1 || sum.Errors != 0 {
		t.Fatalf("first tick: %+v", sum)
	}
	if len(h.sender.calls) != 1 || h.sender.calls[0].template != "share_location_pre_open" {
		t.Fatalf("calls = %+v", h.sender.calls)
	}
	if len(h.reminders.entries) != 1 || h.reminders.entries[0].typ != model.ReminderPreOpen {
		t.Fatalf("reminder log = %+v", h.reminders.entries)
	}

	// Same window, next tick: slot already claimed.
	h.at(9, 48)
	sum = h.s.RunLocationTick(context.Background())
	if sum.Sent != 0 {
		t.Errorf("second tick resent: %+v", sum)
	}
	if len(h.sender.calls) != 1 {
		t.Errorf("expected one send total, got %d", len(h.sender.calls))
	}
}

func TestLocationTickOpenWindow(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")
	h.at(10, 1) // one minute past open

	sum := h.s.RunLocationTick(context.Background())
	if sum.Sent != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if h.sender.calls[0].template != "share_location_open" {
		t.Errorf("template = %s, want share_location_open", h.sender.calls[0].template)
	}
}

func TestLocationTickOpenSuppressedByShare(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")
	h.messages.locationShared["+919800000001"] = true
	h.at(10, 1)

	sum := h.s.RunLocationTick(context.Background())
	if sum.Sent != 0 || sum.Skipped != 1 {
		t.Errorf("shared location should suppress at-open reminder: %+v", sum)
	}
	if len(h.sender.calls) != 0 {
		t.Errorf("no send expected, got %+v", h.sender.calls)
	}
}

func TestLocationTickOutsideWindow(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")

	for _, tc := range []struct{ hour, min int }{
		{9, 20},  // too early
		{9, 44},  // just before the pre-open band opens
		{10, 5},  // past the at-open band
		{14, 0},  // mid-day
	} {
		h.at(tc.hour, tc.min)
		sum := h.s.RunLocationTick(context.Background())
		if sum.Sent != 0 {
			t.Errorf("%02d:%02d: unexpected send: %+v", tc.hour, tc.min, sum)
		}
	}
}

func TestLocationTickBadOpenTime(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "whenever", "1")
	h.addVendor(2, "+919800000002", "10:00", "1")
	h.at(9, 47)

	sum := h.s.RunLocationTick(context.Background())
	if sum.Errors != 0 {
		t.Errorf("malformed open_time is a skip, not an error: %+v", sum)
	}
	if sum.Sent != 1 || sum.Skipped != 1 {
		t.Errorf("bad record must not block the batch: %+v", sum)
	}
	if len(h.sender.calls) != 1 || h.sender.calls[0].phone != "+919800000002" {
		t.Errorf("calls = %+v", h.sender.calls)
	}
}

func TestLocationTickClosedDay(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "2,4") // closed Mondays
	h.at(9, 47)

	sum := h.s.RunLocationTick(context.Background())
	if sum.Sent != 0 || sum.Skipped != 1 {
		t.Errorf("closed day should skip: %+v", sum)
	}
}

func TestSendFailureReleasesClaim(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")
	h.sender.fail = true
	h.at(9, 47)

	sum := h.s.RunLocationTick(context.Background())
	if sum.Errors != 1 || sum.Sent != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(h.dispatch.claims) != 0 {
		t.Fatalf("failed send must release the slot, claims = %v", h.dispatch.claims)
	}
	if h.messages.errorRows() != 1 {
		t.Errorf("expected an error audit row, got %d", h.messages.errorRows())
	}

	// The catch-up pass later the same day re-covers the vendor.
	h.sender.fail = false
	h.at(11, 5)
	sum = h.s.RunCatchupPass(context.Background())
	if sum.Sent != 1 {
		t.Errorf("catchup should resend after released claim: %+v", sum)
	}
}

// ---- catch-up pass ----

func TestCatchupOnlyAtConfiguredHour(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")
	h.at(10, 30)

	sum := h.s.RunCatchupPass(context.Background())
	if sum.Sent != 0 || len(h.sender.calls) != 0 {
		t.Errorf("catchup outside its hour must be a no-op: %+v", sum)
	}
}

func TestCatchupIdempotent(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")
	h.at(11, 5)

	sum := h.s.RunCatchupPass(context.Background())
	if sum.Sent != 1 {
		t.Fatalf("first catchup: %+v", sum)
	}

	sum = h.s.RunCatchupPass(context.Background())
	if sum.Sent != 0 || sum.Skipped != 1 {
		t.Errorf("second catchup must skip the covered vendor: %+v", sum)
	}
	if len(h.sender.calls) != 1 {
		t.Errorf("expected one send total, got %d", len(h.sender.calls))
	}
}

func TestCatchupSkipsCoveredAndShared(t *testing.T) {
	h := newHarness(t)
	h.addVendor(1, "+919800000001", "10:00", "1")
	h.addVendor(2, "+919800000002", "10:00", "1")

	// Vendor 1 was covered by the regular tick; vendor 2 shared a location.
	h.at(9, 47)
	h.s.RunLocationTick(context.Background())
	h.messages.locationShared["+919800000002"] = true

	h.at(11, 5)
	sum := h.s.RunCatchupPass(context.Background())
	if sum.Sent != 0 || sum.Skipped != 2 {
		t.Errorf("catchup should skip both vendors: %+v", sum)
	}
}

// ---- support tick ----

func TestSupportTick(t *testing.T) {
	h := newHarness(t)
	h.at(12, 0)

	h.vendors.byPhone["+919800000001"] = &model.Vendor{ID: 1, Phone: "+919800000001", WhatsAppConsent: true}
	h.vendors.byPhone["+919800000003"] = &model.Vendor{ID: 3, Phone: "+919800000003", WhatsAppConsent: false}
	h.contacts.inactive = []model.Contact{
		{Phone: "+919800000001"},
		{Phone: "+919800000002"}, // no vendor record
		{Phone: "+919800000003"}, // consent withdrawn
	}

	sum := h.s.RunSupportTick(context.Background())
	if sum.Sent != 1 || sum.Skipped != 2 || sum.Errors != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(h.sender.calls) != 1 || h.sender.calls[0].phone != "+919800000001" {
		t.Fatalf("calls = %+v", h.sender.calls)
	}
	if h.sender.calls[0].template != "vendor_support_checkin" {
		t.Errorf("template = %s", h.sender.calls[0].template)
	}

	// Within 24h the reminder-log gate holds.
	h.at(18, 0)
	sum = h.s.RunSupportTick(context.Background())
	if sum.Sent != 0 {
		t.Errorf("second run within 24h resent: %+v", sum)
	}

	// Past the gate the prompt goes out again.
	h.now = baseDay.AddDate(0, 0, 1).Add(13 * time.Hour)
	sum = h.s.RunSupportTick(context.Background())
	if sum.Sent != 1 {
		t.Errorf("prompt should repeat after 24h: %+v", sum)
	}
}

// ---- window math ----

func TestMatchWindow(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		diff  int
		typ   model.DispatchType
		match bool
	}{
		{15, model.DispatchPreOpen, true},
		{13, model.DispatchPreOpen, true},
		{12, model.DispatchPreOpen, true},
		{11, "", false}, // below the pre-open band
		{16, "", false}, // above it
		{0, model.DispatchOpen, true},
		{-3, model.DispatchOpen, true},
		{-4, "", false}, // past the at-open band
	}
	for _, tc := range cases {
		typ, match := h.s.matchWindow(tc.diff)
		if match != tc.match || typ != tc.typ {
			t.Errorf("matchWindow(%d) = (%q, %v), want (%q, %v)", tc.diff, typ, match, tc.typ, tc.match)
		}
	}
}

func TestToleranceClampedToOffset(t *testing.T) {
	// A coarse tick interval widens the tolerance, but never past the
	// pre-open offset: the two bands must stay disjoint.
	cfg := config.SchedulerConfig{
		Timezone:         "UTC",
		LocationInterval: 20 * time.Minute,
		PreOpenOffsetMin: 15,
		ToleranceMin:     4,
	}
	s, err := New(&fakeVendors{}, &fakeContacts{}, &fakeMessages{}, &fakeReminderLog{},
		&fakeDispatch{}, nil, &fakeSender{}, cfg, config.TemplatesConfig{}, "5550001", zap.NewNop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if s.cfg.ToleranceMin != 15 {
		t.Fatalf("tolerance = %d, want 15", s.cfg.ToleranceMin)
	}

	// The opening minute belongs to exactly one band.
	typ, match := s.matchWindow(0)
	if !match || typ != model.DispatchOpen {
		t.Errorf("matchWindow(0) = (%q, %v), want at-open", typ, match)
	}
	typ, match = s.matchWindow(1)
	if !match || typ != model.DispatchPreOpen {
		t.Errorf("matchWindow(1) = (%q, %v), want pre-open", typ, match)
	}
}
