package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthband/portal/services/portal-service/internal/model"
	"github.com/healthband/portal/services/portal-service/internal/outbox"
)

const (
	defaultDuration     = "30 minutes"
	defaultInstructions = "Please arrive 15 minutes early. Bring any previous medical records."
)

// Service coordinates slot and appointment state transitions. Every call
// takes the caller's patient ID explicitly; there is no ambient identity.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type Availability struct {
	Doctor model.Doctor
	Date   string
	Slots  []SlotStatus
}

type SlotStatus struct {
	Time      string
	SlotID    string
	Available bool
}

// Availability returns the slot grid for a doctor+date, materializing the
// default slots on first access. Requesting the same date repeatedly yields
// the same slot identifiers.
func (s *Service) Availability(ctx context.Context, doctorID, dateStr string) (Availability, error) {
	if strings.TrimSpace(dateStr) == "" {
		return Availability{}, validationError("Date parameter is required")
	}
	date, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
	if err != nil {
		return Availability{}, validationError("Date must be in YYYY-MM-DD format")
	}

	today := s.today()
	if date.Before(today) {
		return Availability{}, &Error{
			Code:    CodeInvalidDate,
			Message: "Cannot book appointments in the past",
			Details: "Selected date is in the past",
			Status:  400,
		}
	}

	doctor, err := s.store.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Availability{}, notFoundError("Doctor not found", "")
		}
		return Availability{}, err
	}
	if !doctor.IsAvailable {
		return Availability{}, conflictError(CodeDoctorNotAvailable,
			"Doctor is not available for appointments",
			"This doctor is currently not accepting appointments")
	}

	slots, err := s.store.EnsureSlots(ctx, doctorID, date, defaultSlots(doctorID, date))
	if err != nil {
		return Availability{}, err
	}

	out := Availability{Doctor: doctor, Date: dateStr, Slots: make([]SlotStatus, 0, len(slots))}
	for _, slot := range slots {
		out.Slots = append(out.Slots, SlotStatus{
			Time:      slot.TimeLabel,
			SlotID:    slot.SlotID,
			Available: !slot.IsBooked,
		})
	}
	return out, nil
}

type BookRequest struct {
	DoctorID     string
	Date         string
	Time         string
	SlotID       string
	Reason       string
	PatientNotes string
}

type BookingResult struct {
	Appointment model.Appointment
	Doctor      model.Doctor
}

// Book creates a confirmed appointment and claims its slot in one
// transaction. Preconditions are checked in order, each with a distinct
// failure; the slot claim itself is a conditional update, so a concurrent
// booking of the same slot fails with SLOT_NOT_AVAILABLE even when an
// earlier availability read said otherwise.
func (s *Service) Book(ctx context.Context, patientID string, req BookRequest) (BookingResult, error) {
	if patientID == "" {
		return BookingResult{}, validationError("Patient identity is required")
	}
	if req.DoctorID == "" || req.Date == "" || req.Time == "" || req.SlotID == "" || strings.TrimSpace(req.Reason) == "" {
		return BookingResult{}, validationError("Please provide all required fields")
	}
	date, err := time.ParseInLocation(DateLayout, req.Date, time.UTC)
	if err != nil {
		return BookingResult{}, validationError("Date must be in YYYY-MM-DD format")
	}

	doctor, err := s.store.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return BookingResult{}, notFoundError("Doctor not found", "")
		}
		return BookingResult{}, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return BookingResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := s.store.ClaimSlot(ctx, tx, req.SlotID, patientID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return BookingResult{}, notFoundError("Time slot not found", "")
		case errors.Is(err, ErrSlotTaken):
			return BookingResult{}, conflictError(CodeSlotNotAvailable,
				"This time slot has been booked by another patient",
				"Please select another time slot")
		default:
			return BookingResult{}, err
		}
	}

	exists, err := s.store.HasActiveBooking(ctx, tx, patientID, req.DoctorID, date)
	if err != nil {
		return BookingResult{}, err
	}
	if exists {
		return BookingResult{}, alreadyBookedError()
	}

	now := s.now()
	appt := model.Appointment{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		DoctorID:      doctor.ID,
		Date:          date,
		TimeLabel:     req.Time,
		SlotID:        req.SlotID,
		Reason:        strings.TrimSpace(req.Reason),
		PatientNotes:  strings.TrimSpace(req.PatientNotes),
		Status:        model.StatusConfirmed,
		Fees:          doctor.Fees,
		Currency:      doctor.Currency,
		PaymentStatus: model.PaymentPaid,
		Location:      fmt.Sprintf("Clinic Room %d, 2nd Floor", rand.Intn(10)+1),
		Duration:      defaultDuration,
		Instructions:  defaultInstructions,
		RefundStatus:  model.RefundNone,
		BookingDate:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.InsertAppointment(ctx, tx, &appt); err != nil {
		// The partial unique index closes the race two pre-checks can miss.
		if errors.Is(err, ErrDuplicateBooking) {
			return BookingResult{}, alreadyBookedError()
		}
		return BookingResult{}, err
	}
	if err := s.store.LinkSlot(ctx, tx, req.SlotID, appt.ID); err != nil {
		return BookingResult{}, err
	}

	if err := s.insertEvent(ctx, tx, outbox.TopicAppointmentBooked, appt, map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"slot_id":        appt.SlotID,
		"date":           appt.Date.Format(DateLayout),
		"time":           appt.TimeLabel,
	}); err != nil {
		return BookingResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return BookingResult{}, err
	}
	return BookingResult{Appointment: appt, Doctor: doctor}, nil
}

type CancelResult struct {
	AppointmentID string
	Status        string
	RefundAmount  float64
	RefundStatus  string
}

// Cancel transitions an appointment to cancelled, snapshots the refund and
// releases the slot unconditionally. Cancellation is blocked only when the
// start time lies within the next hour; appointments already started or in
// the past stay cancellable.
func (s *Service) Cancel(ctx context.Context, patientID, appointmentID, reason string) (CancelResult, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return CancelResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.GetAppointmentForUpdate(ctx, tx, appointmentID, patientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CancelResult{}, appointmentNotFoundError()
		}
		return CancelResult{}, err
	}

	switch appt.Status {
	case model.StatusCancelled:
		return CancelResult{}, conflictError(CodeAlreadyCancelled, "Appointment is already cancelled", "")
	case model.StatusCompleted:
		return CancelResult{}, conflictError(CodeCannotCancel,
			"Cannot cancel completed appointment",
			"This appointment has already been completed")
	}

	if cancelBlocked(startTime(appt.Date, appt.TimeLabel), s.now()) {
		return CancelResult{}, conflictError(CodeCannotCancel,
			"Cannot cancel appointment less than 1 hour before scheduled time",
			"Please contact clinic directly for last-minute cancellations")
	}

	appt.Status = model.StatusCancelled
	appt.CancellationReason = strings.TrimSpace(reason)
	appt.RefundAmount = appt.Fees
	appt.RefundStatus = model.RefundProcessing
	appt.PaymentStatus = model.PaymentRefunded
	appt.UpdatedAt = s.now()

	if err := s.store.UpdateCancelled(ctx, tx, appt); err != nil {
		return CancelResult{}, err
	}
	if err := s.store.ReleaseSlot(ctx, tx, appt.SlotID); err != nil {
		return CancelResult{}, err
	}

	if err := s.insertEvent(ctx, tx, outbox.TopicAppointmentCancelled, appt, map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"slot_id":        appt.SlotID,
		"refund_amount":  appt.RefundAmount,
		"currency":       appt.Currency,
		"reason":         appt.CancellationReason,
	}); err != nil {
		return CancelResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, err
	}
	return CancelResult{
		AppointmentID: appt.ID,
		Status:        appt.Status,
		RefundAmount:  appt.RefundAmount,
		RefundStatus:  appt.RefundStatus,
	}, nil
}

type RescheduleRequest struct {
	NewDate   string
	NewTime   string
	NewSlotID string
}

type RescheduleResult struct {
	Appointment model.Appointment
	Doctor      model.Doctor
	OldDate     time.Time
	OldTime     string
}

// Reschedule moves an appointment to a new slot: the current schedule is
// appended to its history, the old slot released and the new one claimed,
// all in one transaction.
func (s *Service) Reschedule(ctx context.Context, patientID, appointmentID string, req RescheduleRequest) (RescheduleResult, error) {
	if req.NewDate == "" || req.NewTime == "" || req.NewSlotID == "" {
		return RescheduleResult{}, validationError("Please provide new date, time, and slot ID")
	}
	newDate, err := time.ParseInLocation(DateLayout, req.NewDate, time.UTC)
	if err != nil {
		return RescheduleResult{}, validationError("Date must be in YYYY-MM-DD format")
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return RescheduleResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := s.store.GetAppointmentForUpdate(ctx, tx, appointmentID, patientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RescheduleResult{}, appointmentNotFoundError()
		}
		return RescheduleResult{}, err
	}

	switch appt.Status {
	case model.StatusCancelled:
		return RescheduleResult{}, conflictError(CodeCannotReschedule, "Cannot reschedule cancelled appointment", "")
	case model.StatusCompleted:
		return RescheduleResult{}, conflictError(CodeCannotReschedule, "Cannot reschedule completed appointment", "")
	}

	if _, err := s.store.ClaimSlot(ctx, tx, req.NewSlotID, patientID); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return RescheduleResult{}, notFoundError("New time slot not found", "")
		case errors.Is(err, ErrSlotTaken):
			return RescheduleResult{}, conflictError(CodeSlotNotAvailable,
				"Selected time slot is not available",
				"Please select another time slot")
		default:
			return RescheduleResult{}, err
		}
	}

	oldDate := appt.Date
	oldTime := appt.TimeLabel
	oldSlotID := appt.SlotID

	prev := model.Reschedule{Date: oldDate, TimeLabel: oldTime, ModifiedAt: s.now()}
	appt.Date = newDate
	appt.TimeLabel = req.NewTime
	appt.SlotID = req.NewSlotID
	appt.Status = model.StatusRescheduled
	appt.UpdatedAt = s.now()

	if err := s.store.UpdateRescheduled(ctx, tx, appt, prev); err != nil {
		return RescheduleResult{}, err
	}
	if err := s.store.ReleaseSlot(ctx, tx, oldSlotID); err != nil {
		return RescheduleResult{}, err
	}
	if err := s.store.LinkSlot(ctx, tx, req.NewSlotID, appt.ID); err != nil {
		return RescheduleResult{}, err
	}

	if err := s.insertEvent(ctx, tx, outbox.TopicAppointmentRescheduled, appt, map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"old_slot_id":    oldSlotID,
		"new_slot_id":    appt.SlotID,
		"new_date":       appt.Date.Format(DateLayout),
		"new_time":       appt.TimeLabel,
	}); err != nil {
		return RescheduleResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RescheduleResult{}, err
	}
	doctor, err := s.store.GetDoctor(ctx, appt.DoctorID)
	if err != nil {
		s.logger.Warn("doctor lookup after reschedule failed", "err", err, "doctor_id", appt.DoctorID)
		doctor = model.Doctor{ID: appt.DoctorID}
	}
	return RescheduleResult{Appointment: appt, Doctor: doctor, OldDate: oldDate, OldTime: oldTime}, nil
}

// ListEntry is a listed appointment plus the affordances the caller may
// act on.
type ListEntry struct {
	AppointmentWithDoctor
	CanCancel     bool
	CanReschedule bool
	CanReview     bool
}

type Partitioned struct {
	Upcoming []ListEntry
	Past     []ListEntry
}

// ListQuery is the raw listing filter as it arrives on the wire.
type ListQuery struct {
	Status   string
	FromDate string
	ToDate   string
}

// List returns the patient's appointments split into upcoming and past.
// status=upcoming narrows to active statuses from today onward; completed
// and cancelled select that status; a fromDate+toDate pair bounds the
// date range.
func (s *Service) List(ctx context.Context, patientID string, q ListQuery) (Partitioned, error) {
	var f ListFilter
	switch q.Status {
	case "upcoming":
		f.Statuses = []string{model.StatusConfirmed, model.StatusRescheduled}
		f.From = s.today()
	case model.StatusCompleted:
		f.Statuses = []string{model.StatusCompleted}
	case model.StatusCancelled:
		f.Statuses = []string{model.StatusCancelled}
	}
	if q.FromDate != "" && q.ToDate != "" {
		from, err := time.ParseInLocation(DateLayout, q.FromDate, time.UTC)
		if err != nil {
			return Partitioned{}, validationError("Date must be in YYYY-MM-DD format")
		}
		to, err := time.ParseInLocation(DateLayout, q.ToDate, time.UTC)
		if err != nil {
			return Partitioned{}, validationError("Date must be in YYYY-MM-DD format")
		}
		f.From = from
		f.To = to
	}

	appts, err := s.store.ListAppointments(ctx, patientID, f)
	if err != nil {
		return Partitioned{}, err
	}
	return partition(appts, s.now()), nil
}

// partition splits appointments the way the portal presents them: an
// appointment is upcoming while its date has not passed and it is not
// completed; everything else is past, with completed visits reviewable.
func partition(appts []AppointmentWithDoctor, now time.Time) Partitioned {
	out := Partitioned{Upcoming: []ListEntry{}, Past: []ListEntry{}}
	for _, a := range appts {
		entry := ListEntry{AppointmentWithDoctor: a}
		if !a.Appointment.Date.Before(now) && a.Appointment.Status != model.StatusCompleted {
			entry.CanCancel = true
			entry.CanReschedule = true
			out.Upcoming = append(out.Upcoming, entry)
			continue
		}
		if a.Appointment.Status == model.StatusCompleted {
			entry.CanReview = true
		}
		out.Past = append(out.Past, entry)
	}
	return out
}

// Detail returns the full appointment view, enforcing ownership: a
// mismatch is indistinguishable from absence.
func (s *Service) Detail(ctx context.Context, patientID, appointmentID string) (Detail, error) {
	detail, err := s.store.GetDetail(ctx, appointmentID, patientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Detail{}, appointmentNotFoundError()
		}
		return Detail{}, err
	}
	return detail, nil
}

func (s *Service) insertEvent(ctx context.Context, tx Tx, topic string, appt model.Appointment, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.store.InsertEvent(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     topic,
		Payload:       body,
	})
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func alreadyBookedError() *Error {
	return conflictError(CodeAlreadyBooked,
		"You already have an appointment with this doctor on this date",
		"Please choose a different date or cancel existing appointment")
}

func appointmentNotFoundError() *Error {
	return notFoundError("Appointment not found",
		"The appointment does not exist or you don't have access to it")
}
