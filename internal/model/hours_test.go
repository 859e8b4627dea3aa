package model

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"9:30 AM", 9*60 + 30, false},
		{"12:00 PM", 12 * 60, false},
		{"12:15 AM", 15, false},
		{"3:04PM", 15*60 + 4, false},
		{"  6:45 pm ", 18*60 + 45, false},
		{"09:30", 9*60 + 30, false},
		{"15:04", 15*60 + 4, false},
		{"7:05", 7*60 + 5, false},
		{"", 0, true},
		{"whenever", 0, true},
		{"25:00", 0, true},
	}

	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestVendorOpensOn(t *testing.T) {
	v := Vendor{OpenDays: "1,3, 5"}

	if !v.OpensOn(time.Monday) {
		t.Error("expected open on Monday")
	}
	if !v.OpensOn(time.Friday) {
		t.Error("expected open on Friday (whitespace in list)")
	}
	if v.OpensOn(time.Sunday) {
		t.Error("expected closed on Sunday")
	}

	malformed := Vendor{OpenDays: "x,,2"}
	if !malformed.OpensOn(time.Tuesday) {
		t.Error("malformed entries should be ignored, valid ones honored")
	}
	if malformed.OpensOn(time.Monday) {
		t.Error("expected closed on Monday")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	in := Meta{Kind: MetaReminder, ReminderType: ReminderPreOpen, Template: "share_location_pre_open"}

	raw, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out Meta
	if err := out.Scan(raw); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out.Kind != MetaReminder || out.ReminderType != ReminderPreOpen {
		t.Errorf("round trip lost fields: %+v", out)
	}

	var empty Meta
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if empty.Kind != "" {
		t.Errorf("Scan(nil) should clear meta, got %+v", empty)
	}
}
