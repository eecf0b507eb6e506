package booking

import (
	"context"
	"time"

	"github.com/healthband/portal/services/portal-service/internal/model"
	"github.com/healthband/portal/services/portal-service/internal/outbox"
)

// Tx is the transaction handle threaded through transition steps.
// pgx.Tx satisfies it directly.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// ListFilter narrows a patient's appointment listing. Zero values mean
// unfiltered.
type ListFilter struct {
	Statuses []string
	From     time.Time
	To       time.Time
}

// AppointmentWithDoctor joins an appointment with its doctor's display
// fields for listing.
type AppointmentWithDoctor struct {
	Appointment model.Appointment
	Doctor      model.Doctor
}

// Detail is the full ownership-checked appointment view.
type Detail struct {
	Appointment model.Appointment
	Doctor      model.Doctor
	History     []model.Reschedule
}

// Store is the persistence surface the booking service runs on. The pg
// implementation lives in internal/storage; tests use an in-memory fake.
//
// ClaimSlot must be a conditional update keyed on the slot identifier,
// succeeding only if the slot was unbooked: two concurrent claims of one
// slot must yield exactly one success and one ErrSlotTaken, regardless of
// any earlier availability read.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	GetDoctor(ctx context.Context, doctorID string) (model.Doctor, error)

	// EnsureSlots inserts any of the given slots that do not exist yet and
	// returns all slots for the doctor+date, ordered by slot index.
	EnsureSlots(ctx context.Context, doctorID string, date time.Time, slots []model.TimeSlot) ([]model.TimeSlot, error)

	// ClaimSlot atomically books a free slot for a patient. Returns
	// ErrNotFound if no such slot, ErrSlotTaken if already booked.
	ClaimSlot(ctx context.Context, tx Tx, slotID, patientID string) (model.TimeSlot, error)
	// ReleaseSlot clears the booked flag and both back-references.
	ReleaseSlot(ctx context.Context, tx Tx, slotID string) error
	// LinkSlot sets the slot's appointment back-reference.
	LinkSlot(ctx context.Context, tx Tx, slotID, appointmentID string) error

	// HasActiveBooking reports whether the patient already holds a
	// confirmed or rescheduled appointment with the doctor on the date.
	HasActiveBooking(ctx context.Context, tx Tx, patientID, doctorID string, date time.Time) (bool, error)
	// InsertAppointment persists a new appointment; ErrDuplicateBooking if
	// the active-booking uniqueness fence trips.
	InsertAppointment(ctx context.Context, tx Tx, appt *model.Appointment) error
	// GetAppointmentForUpdate loads and row-locks an appointment owned by
	// the patient; ErrNotFound covers both absence and ownership mismatch.
	GetAppointmentForUpdate(ctx context.Context, tx Tx, appointmentID, patientID string) (model.Appointment, error)
	UpdateCancelled(ctx context.Context, tx Tx, appt model.Appointment) error
	// UpdateRescheduled writes the new schedule and appends prev to the
	// appointment's history.
	UpdateRescheduled(ctx context.Context, tx Tx, appt model.Appointment, prev model.Reschedule) error

	InsertEvent(ctx context.Context, tx Tx, evt outbox.Event) error

	ListAppointments(ctx context.Context, patientID string, f ListFilter) ([]AppointmentWithDoctor, error)
	GetDetail(ctx context.Context, appointmentID, patientID string) (Detail, error)
}
