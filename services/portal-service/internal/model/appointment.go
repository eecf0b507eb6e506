package model

import "time"

const (
	StatusConfirmed   = "confirmed"
	StatusRescheduled = "rescheduled"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	RefundNone       = "none"
	RefundProcessing = "processing"
	RefundCompleted  = "completed"
)

type Appointment struct {
	ID                 string
	PatientID          string
	DoctorID           string
	Date               time.Time
	TimeLabel          string
	SlotID             string
	Reason             string
	PatientNotes       string
	Status             string
	Fees               float64
	Currency           string
	PaymentStatus      string
	PaymentRef         string
	Location           string
	Duration           string
	Instructions       string
	CancellationReason string
	RefundAmount       float64
	RefundStatus       string
	BookingDate        time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Reschedule is one entry in an appointment's prior-schedule history.
type Reschedule struct {
	Date       time.Time
	TimeLabel  string
	ModifiedAt time.Time
}
