package hours

import (
	"strings"
	"testing"
	"time"

	"github.com/covehq/cove/internal/models"
)

// sydneyTime builds a Sydney-local time on day N of a known week.
// Day 1 is Monday 2026-01-05.
func sydneyTime(t *testing.T, day, hour int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Sydney")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	return time.Date(2026, 1, 5+day-1, hour, 30, 0, 0, loc)
}

func TestWithin_NoHoursConfigured(t *testing.T) {
	business := &models.Business{ID: "b"}
	if !Within(business, time.Now()) {
		t.Error("business without hours must always be open")
	}
}

func TestWithin_DisabledHours(t *testing.T) {
	business := &models.Business{
		ID:             "b",
		OperatingHours: &models.OperatingHours{Enabled: false, OpenHour: 9, CloseHour: 10},
	}
	if !Within(business, sydneyTime(t, 1, 3)) {
		t.Error("disabled hours must leave the business always open")
	}
}

func TestWithin_OpenAndClosedHours(t *testing.T) {
	business := &models.Business{
		ID: "b",
		OperatingHours: &models.OperatingHours{
			Enabled:   true,
			Timezone:  "Australia/Sydney",
			OpenHour:  9,
			CloseHour: 17,
		},
	}

	if !Within(business, sydneyTime(t, 1, 10)) {
		t.Error("10:30 should be within 9-17")
	}
	if !Within(business, sydneyTime(t, 1, 9)) {
		t.Error("open hour is inclusive")
	}
	if Within(business, sydneyTime(t, 1, 17)) {
		t.Error("close hour is exclusive")
	}
	if Within(business, sydneyTime(t, 1, 7)) {
		t.Error("7:30 is before opening")
	}
	if Within(business, sydneyTime(t, 1, 22)) {
		t.Error("22:30 is after closing")
	}
}

func TestWithin_ClosedDays(t *testing.T) {
	business := &models.Business{
		ID: "b",
		OperatingHours: &models.OperatingHours{
			Enabled:    true,
			Timezone:   "Australia/Sydney",
			OpenHour:   9,
			CloseHour:  17,
			ClosedDays: []int{int(time.Sunday)},
		},
	}
	// Day 7 from Monday 2026-01-05 is Sunday 2026-01-11.
	if Within(business, sydneyTime(t, 7, 10)) {
		t.Error("expected closed on Sunday even during open hours")
	}
	if !Within(business, sydneyTime(t, 1, 10)) {
		t.Error("expected open on Monday")
	}
}

func TestWithin_DefaultHoursWhenUnset(t *testing.T) {
	business := &models.Business{
		ID:             "b",
		OperatingHours: &models.OperatingHours{Enabled: true, Timezone: "Australia/Sydney"},
	}
	if !Within(business, sydneyTime(t, 1, 10)) {
		t.Error("expected default 8-18 window to cover 10:30")
	}
	if Within(business, sydneyTime(t, 1, 19)) {
		t.Error("expected default window to exclude 19:30")
	}
}

func TestWithin_InvalidTimezoneFailsOpen(t *testing.T) {
	business := &models.Business{
		ID: "b",
		OperatingHours: &models.OperatingHours{
			Enabled: true, Timezone: "Mars/Olympus", OpenHour: 9, CloseHour: 10,
		},
	}
	if !Within(business, time.Now()) {
		t.Error("unloadable timezone must fail open")
	}
}

func TestAfterHoursMessage_Custom(t *testing.T) {
	business := &models.Business{
		Name: "Smile Dental",
		OperatingHours: &models.OperatingHours{
			AfterHoursMessage: "We're closed, back tomorrow!",
		},
	}
	if got := AfterHoursMessage(business); got != "We're closed, back tomorrow!" {
		t.Errorf("expected custom message, got %q", got)
	}
}

func TestAfterHoursMessage_Generic(t *testing.T) {
	business := &models.Business{
		Name:           "Smile Dental",
		OperatingHours: &models.OperatingHours{Enabled: true, OpenHour: 9},
	}
	got := AfterHoursMessage(business)
	if !strings.Contains(got, "Smile Dental") {
		t.Errorf("expected business name, got %q", got)
	}
	if !strings.Contains(got, "9am") {
		t.Errorf("expected opening hour, got %q", got)
	}
}

func TestAfterHoursMessage_AfternoonOpenHour(t *testing.T) {
	business := &models.Business{
		Name:           "Night Clinic",
		OperatingHours: &models.OperatingHours{Enabled: true, OpenHour: 14},
	}
	if got := AfterHoursMessage(business); !strings.Contains(got, "2pm") {
		t.Errorf("expected 12h conversion, got %q", got)
	}
}

func TestAfterHoursMessage_Defaults(t *testing.T) {
	business := &models.Business{}
	got := AfterHoursMessage(business)
	if !strings.Contains(got, "8am") {
		t.Errorf("expected default opening hour, got %q", got)
	}
	if !strings.Contains(got, "us") {
		t.Errorf("expected name fallback, got %q", got)
	}
}
