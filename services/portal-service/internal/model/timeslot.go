package model

import "time"

// TimeSlot is a bookable (doctor, date, time) unit. BookedBy and
// AppointmentID are back-references for lookup convenience; the booked
// state itself is owned by the slot row.
type TimeSlot struct {
	SlotID        string
	DoctorID      string
	Date          time.Time
	TimeLabel     string
	SlotIndex     int
	IsBooked      bool
	BookedBy      string
	AppointmentID string
	CreatedAt     time.Time
}
