package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/model"
)

const appointmentColumns = `id, patient_id, doctor_id, date, time_label, slot_id, reason,
	COALESCE(patient_notes, ''), status, fees, currency, payment_status, COALESCE(payment_ref, ''),
	location, duration, instructions, COALESCE(cancellation_reason, ''),
	refund_amount, refund_status, booking_date, created_at, updated_at`

func scanAppointment(row pgx.Row, a *model.Appointment) error {
	return row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.TimeLabel,
		&a.SlotID,
		&a.Reason,
		&a.PatientNotes,
		&a.Status,
		&a.Fees,
		&a.Currency,
		&a.PaymentStatus,
		&a.PaymentRef,
		&a.Location,
		&a.Duration,
		&a.Instructions,
		&a.CancellationReason,
		&a.RefundAmount,
		&a.RefundStatus,
		&a.BookingDate,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
}

func (r *Repository) HasActiveBooking(ctx context.Context, tx booking.Tx, patientID, doctorID string, date time.Time) (bool, error) {
	var exists bool
	err := pgtx(tx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND doctor_id = $2 AND date = $3
				AND status IN ('confirmed', 'rescheduled')
		)
	`, patientID, doctorID, date).Scan(&exists)
	return exists, err
}

func (r *Repository) InsertAppointment(ctx context.Context, tx booking.Tx, a *model.Appointment) error {
	_, err := pgtx(tx).Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, date, time_label, slot_id, reason, patient_notes,
			 status, fees, currency, payment_status, location, duration, instructions,
			 refund_amount, refund_status, booking_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, a.ID, a.PatientID, a.DoctorID, a.Date, a.TimeLabel, a.SlotID, a.Reason, a.PatientNotes,
		a.Status, a.Fees, a.Currency, a.PaymentStatus, a.Location, a.Duration, a.Instructions,
		a.RefundAmount, a.RefundStatus, a.BookingDate, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		// The partial unique index on (patient_id, doctor_id, date) for
		// active statuses fences the duplicate-booking race.
		if IsUniqueViolation(err) {
			return booking.ErrDuplicateBooking
		}
		return err
	}
	return nil
}

func (r *Repository) GetAppointmentForUpdate(ctx context.Context, tx booking.Tx, appointmentID, patientID string) (model.Appointment, error) {
	var a model.Appointment
	err := scanAppointment(pgtx(tx).QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND patient_id = $2
		FOR UPDATE
	`, appointmentID, patientID), &a)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, booking.ErrNotFound
		}
		return model.Appointment{}, err
	}
	return a, nil
}

func (r *Repository) UpdateCancelled(ctx context.Context, tx booking.Tx, a model.Appointment) error {
	_, err := pgtx(tx).Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			cancellation_reason = $3,
			refund_amount = $4,
			refund_status = $5,
			payment_status = $6,
			updated_at = now()
		WHERE id = $1
	`, a.ID, a.Status, a.CancellationReason, a.RefundAmount, a.RefundStatus, a.PaymentStatus)
	return err
}

func (r *Repository) UpdateRescheduled(ctx context.Context, tx booking.Tx, a model.Appointment, prev model.Reschedule) error {
	if _, err := pgtx(tx).Exec(ctx, `
		UPDATE appointments
		SET date = $2,
			time_label = $3,
			slot_id = $4,
			status = $5,
			updated_at = now()
		WHERE id = $1
	`, a.ID, a.Date, a.TimeLabel, a.SlotID, a.Status); err != nil {
		return err
	}
	_, err := pgtx(tx).Exec(ctx, `
		INSERT INTO appointment_reschedules (appointment_id, date, time_label, modified_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID, prev.Date, prev.TimeLabel, prev.ModifiedAt)
	return err
}

func (r *Repository) ListAppointments(ctx context.Context, patientID string, f booking.ListFilter) ([]booking.AppointmentWithDoctor, error) {
	query := `
		SELECT a.id, a.patient_id, a.doctor_id, a.date, a.time_label, a.slot_id, a.reason,
			COALESCE(a.patient_notes, ''), a.status, a.fees, a.currency, a.payment_status,
			COALESCE(a.payment_ref, ''), a.location, a.duration, a.instructions,
			COALESCE(a.cancellation_reason, ''), a.refund_amount, a.refund_status,
			a.booking_date, a.created_at, a.updated_at,
			d.id, d.name, d.specialty, COALESCE(d.experience, ''), d.rating, d.total_reviews,
			COALESCE(d.image, ''), d.fees, d.currency, d.qualifications, d.languages,
			COALESCE(d.about, ''), COALESCE(d.email, ''), COALESCE(d.phone, ''),
			COALESCE(d.address, ''), d.is_available, d.created_at
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1`
	args := []any{patientID}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		query += fmt.Sprintf(` AND a.status = ANY($%d)`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(` AND a.date >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(` AND a.date <= $%d`, len(args))
	}
	query += ` ORDER BY a.date, a.time_label`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.AppointmentWithDoctor
	for rows.Next() {
		var item booking.AppointmentWithDoctor
		a := &item.Appointment
		d := &item.Doctor
		if err := rows.Scan(
			&a.ID, &a.PatientID, &a.DoctorID, &a.Date, &a.TimeLabel, &a.SlotID, &a.Reason,
			&a.PatientNotes, &a.Status, &a.Fees, &a.Currency, &a.PaymentStatus, &a.PaymentRef,
			&a.Location, &a.Duration, &a.Instructions, &a.CancellationReason,
			&a.RefundAmount, &a.RefundStatus, &a.BookingDate, &a.CreatedAt, &a.UpdatedAt,
			&d.ID, &d.Name, &d.Specialty, &d.Experience, &d.Rating, &d.TotalReviews,
			&d.Image, &d.Fees, &d.Currency, &d.Qualifications, &d.Languages, &d.About,
			&d.Email, &d.Phone, &d.Address, &d.IsAvailable, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) GetDetail(ctx context.Context, appointmentID, patientID string) (booking.Detail, error) {
	var detail booking.Detail
	err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND patient_id = $2
	`, appointmentID, patientID), &detail.Appointment)
	if err != nil {
		if IsNotFound(err) {
			return booking.Detail{}, booking.ErrNotFound
		}
		return booking.Detail{}, err
	}

	detail.Doctor, err = r.GetDoctor(ctx, detail.Appointment.DoctorID)
	if err != nil {
		return booking.Detail{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT date, time_label, modified_at
		FROM appointment_reschedules
		WHERE appointment_id = $1
		ORDER BY modified_at
	`, appointmentID)
	if err != nil {
		return booking.Detail{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var h model.Reschedule
		if err := rows.Scan(&h.Date, &h.TimeLabel, &h.ModifiedAt); err != nil {
			return booking.Detail{}, err
		}
		detail.History = append(detail.History, h)
	}
	if rows.Err() != nil {
		return booking.Detail{}, rows.Err()
	}
	return detail, nil
}

// MarkCompleted flips a confirmed or rescheduled appointment to completed.
// Returns false when the appointment is unknown or not in a completable
// state, which the consumer treats as already handled.
func (r *Repository) MarkCompleted(ctx context.Context, tx booking.Tx, appointmentID string) (bool, error) {
	tag, err := pgtx(tx).Exec(ctx, `
		UPDATE appointments
		SET status = 'completed',
			updated_at = now()
		WHERE id = $1 AND status IN ('confirmed', 'rescheduled')
	`, appointmentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PendingRefund is a cancelled appointment whose refund is still open.
type PendingRefund struct {
	AppointmentID string
	PaymentRef    string
	RefundAmount  float64
	Currency      string
}

func (r *Repository) ListPendingRefunds(ctx context.Context, limit int) ([]PendingRefund, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(payment_ref, ''), refund_amount, currency
		FROM appointments
		WHERE status = 'cancelled' AND refund_status = 'processing'
		ORDER BY updated_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PendingRefund
	for rows.Next() {
		var p PendingRefund
		if err := rows.Scan(&p.AppointmentID, &p.PaymentRef, &p.RefundAmount, &p.Currency); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) MarkRefundCompleted(ctx context.Context, appointmentID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET refund_status = 'completed',
			updated_at = now()
		WHERE id = $1 AND refund_status = 'processing'
	`, appointmentID)
	return err
}
