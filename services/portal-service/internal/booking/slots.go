package booking

import (
	"fmt"
	"time"

	"github.com/healthband/portal/services/portal-service/internal/model"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the display format for slot labels, e.g. "09:00 AM".
	TimeLayout = "03:04 PM"
)

// defaultSlotTimes is the fixed clinic day: a morning and an afternoon
// block in half-hour increments. Materialized lazily per doctor+date.
var defaultSlotTimes = []string{
	"09:00 AM",
	"09:30 AM",
	"10:00 AM",
	"10:30 AM",
	"11:00 AM",
	"11:30 AM",
	"02:00 PM",
	"02:30 PM",
	"03:00 PM",
	"03:30 PM",
	"04:00 PM",
	"04:30 PM",
	"05:00 PM",
}

// SlotID derives the deterministic identifier for a doctor's nth slot of a
// day. Derivation keeps repeated materialization idempotent.
func SlotID(doctorID string, date time.Time, index int) string {
	return fmt.Sprintf("%s_%s_%d", doctorID, date.Format(DateLayout), index)
}

func defaultSlots(doctorID string, date time.Time) []model.TimeSlot {
	slots := make([]model.TimeSlot, 0, len(defaultSlotTimes))
	for i, label := range defaultSlotTimes {
		slots = append(slots, model.TimeSlot{
			SlotID:    SlotID(doctorID, date, i),
			DoctorID:  doctorID,
			Date:      date,
			TimeLabel: label,
			SlotIndex: i,
		})
	}
	return slots
}

// startTime resolves an appointment's wall-clock start from its calendar
// date and display label. An unparsable label falls back to midnight.
func startTime(date time.Time, label string) time.Time {
	clock, err := time.Parse(TimeLayout, label)
	if err != nil {
		return date
	}
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, date.Location())
}

// cancelBlocked reports whether a cancellation request falls inside the
// blocked window: strictly less than one hour before start, but only for
// appointments that have not started yet. Appointments already in the past
// remain cancellable.
func cancelBlocked(start, now time.Time) bool {
	until := start.Sub(now)
	return until > 0 && until < time.Hour
}
