package model

import (
	"testing"
	"time"
)

// 2026-03-02 is a Monday.
func monday(hour, minute int, loc *time.Location) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, loc)
}

func TestWindowValidate(t *testing.T) {
	cases := []struct {
		name    string
		w       MaintenanceWindow
		wantErr bool
	}{
		{
			name: "valid overnight",
			w: MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "UTC",
				AllowedDays: []time.Weekday{time.Monday, time.Wednesday}},
		},
		{
			name: "valid daytime",
			w: MaintenanceWindow{Start: "09:00", End: "17:00", Timezone: "America/New_York",
				AllowedDays: []time.Weekday{time.Saturday, time.Sunday}},
		},
		{
			name: "bad start",
			w: MaintenanceWindow{Start: "24:00", End: "04:00", Timezone: "UTC",
				AllowedDays: []time.Weekday{time.Monday}},
			wantErr: true,
		},
		{
			name: "bad end",
			w: MaintenanceWindow{Start: "22:00", End: "4", Timezone: "UTC",
				AllowedDays: []time.Weekday{time.Monday}},
			wantErr: true,
		},
		{
			name: "unknown timezone",
			w: MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "Mars/Olympus",
				AllowedDays: []time.Weekday{time.Monday}},
			wantErr: true,
		},
		{
			name:    "no allowed days",
			w:       MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "UTC"},
			wantErr: true,
		},
		{
			name: "duplicate day",
			w: MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "UTC",
				AllowedDays: []time.Weekday{time.Monday, time.Monday}},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.w.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWindowContainsDaytime(t *testing.T) {
	w := MaintenanceWindow{Start: "09:00", End: "17:00", Timezone: "UTC",
		AllowedDays: []time.Weekday{time.Monday}}

	if w.Contains(monday(8, 59, time.UTC)) {
		t.Fatal("before opening should be closed")
	}
	if !w.Contains(monday(9, 0, time.UTC)) {
		t.Fatal("opening instant should be open")
	}
	if !w.Contains(monday(16, 59, time.UTC)) {
		t.Fatal("just before close should be open")
	}
	if w.Contains(monday(17, 0, time.UTC)) {
		t.Fatal("closing instant should be closed")
	}
	// Tuesday is not an allowed day.
	if w.Contains(monday(12, 0, time.UTC).AddDate(0, 0, 1)) {
		t.Fatal("disallowed day should be closed")
	}
}

func TestWindowContainsCrossesMidnight(t *testing.T) {
	w := MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "UTC",
		AllowedDays: []time.Weekday{time.Monday}}

	if w.Contains(monday(21, 59, time.UTC)) {
		t.Fatal("before opening should be closed")
	}
	if !w.Contains(monday(23, 30, time.UTC)) {
		t.Fatal("late Monday evening should be open")
	}
	// The window started Monday, so it stays open into Tuesday morning
	// even though Tuesday is not an allowed day.
	tuesday := monday(0, 0, time.UTC).AddDate(0, 0, 1)
	if !w.Contains(tuesday.Add(3 * time.Hour)) {
		t.Fatal("early Tuesday morning should still be open")
	}
	if w.Contains(tuesday.Add(4 * time.Hour)) {
		t.Fatal("Tuesday 04:00 should be closed")
	}
	// A crossing window never opens at the start of a disallowed day.
	if w.Contains(tuesday.Add(23 * time.Hour)) {
		t.Fatal("Tuesday 23:00 should be closed")
	}
}

func TestWindowContainsHonorsTimezone(t *testing.T) {
	w := MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "America/New_York",
		AllowedDays: []time.Weekday{time.Monday}}

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	inside := monday(23, 0, ny)
	if !w.Contains(inside) {
		t.Fatal("23:00 New York on Monday should be open")
	}
	// The same UTC instant expressed differently still matches.
	if !w.Contains(inside.UTC()) {
		t.Fatal("window membership must not depend on the input location")
	}
	// 23:00 UTC on Monday is 18:00 or 19:00 in New York, outside the window.
	if w.Contains(monday(23, 0, time.UTC)) {
		t.Fatal("23:00 UTC should be outside a New York evening window")
	}
}

func TestWindowNextOpen(t *testing.T) {
	w := MaintenanceWindow{Start: "22:00", End: "04:00", Timezone: "UTC",
		AllowedDays: []time.Weekday{time.Monday, time.Thursday}}

	inside := monday(23, 0, time.UTC)
	if got := w.NextOpen(inside); !got.Equal(inside) {
		t.Fatalf("NextOpen inside window = %v, want unchanged", got)
	}

	if got := w.NextOpen(monday(10, 0, time.UTC)); !got.Equal(monday(22, 0, time.UTC)) {
		t.Fatalf("NextOpen same day = %v, want Monday 22:00", got)
	}

	// Tuesday noon skips ahead to Thursday's opening.
	tuesdayNoon := monday(12, 0, time.UTC).AddDate(0, 0, 1)
	thursdayOpen := monday(22, 0, time.UTC).AddDate(0, 0, 3)
	if got := w.NextOpen(tuesdayNoon); !got.Equal(thursdayOpen) {
		t.Fatalf("NextOpen across days = %v, want Thursday 22:00", got)
	}
}
