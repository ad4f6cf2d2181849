// Package hours decides whether a business is currently open for new
// conversations and renders the after-hours auto-reply.
package hours

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/covehq/cove/internal/models"
)

// DefaultTimezone is used when a business configures hours without one.
const DefaultTimezone = "Australia/Sydney"

// Default open/close hours when the business leaves them unset.
const (
	DefaultOpenHour  = 8
	DefaultCloseHour = 18
)

// Within reports whether now falls inside the business's operating hours.
// Businesses without hours configured, or with them disabled, are always
// open. An unloadable timezone fails open: the lead still gets a reply.
func Within(business *models.Business, now time.Time) bool {
	h := business.OperatingHours
	if h == nil || !h.Enabled {
		return true
	}

	tz := h.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		slog.Warn("hours.Within invalid timezone, treating business as open",
			"businessID", business.ID, "timezone", tz, "error", err)
		return true
	}
	local := now.In(loc)

	day := int(local.Weekday())
	for _, closed := range h.ClosedDays {
		if closed == day {
			return false
		}
	}

	open := h.OpenHour
	closeHour := h.CloseHour
	if open == 0 && closeHour == 0 {
		open, closeHour = DefaultOpenHour, DefaultCloseHour
	}
	return local.Hour() >= open && local.Hour() < closeHour
}

// AfterHoursMessage renders the reply sent when a new lead arrives outside
// operating hours. A configured custom message wins; otherwise a generic
// one naming the next opening hour.
func AfterHoursMessage(business *models.Business) string {
	h := business.OperatingHours
	if h != nil && h.AfterHoursMessage != "" {
		return h.AfterHoursMessage
	}

	openHour := DefaultOpenHour
	if h != nil && h.OpenHour != 0 {
		openHour = h.OpenHour
	}
	ampm := fmt.Sprintf("%dam", openHour)
	if openHour > 12 {
		ampm = fmt.Sprintf("%dpm", openHour-12)
	}

	name := business.Name
	if name == "" {
		name = "us"
	}
	return fmt.Sprintf("Thanks for reaching out to %s! We're currently closed. We'll text you back at %s when we open. If this is urgent, please call us directly.", name, ampm)
}
