package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/model"
)

const slotColumns = `slot_id, doctor_id, date, time_label, slot_index, is_booked,
	COALESCE(booked_by, ''), COALESCE(appointment_id, ''), created_at`

// EnsureSlots materializes the default grid for a doctor+date. Concurrent
// first requests race benignly: ON CONFLICT DO NOTHING keeps the insert
// idempotent and the follow-up select returns one consistent grid.
func (r *Repository) EnsureSlots(ctx context.Context, doctorID string, date time.Time, slots []model.TimeSlot) ([]model.TimeSlot, error) {
	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO time_slots (slot_id, doctor_id, date, time_label, slot_index)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (slot_id) DO NOTHING
		`, s.SlotID, s.DoctorID, s.Date, s.TimeLabel, s.SlotIndex)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM time_slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY slot_index
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeSlot
	for rows.Next() {
		var s model.TimeSlot
		if err := rows.Scan(&s.SlotID, &s.DoctorID, &s.Date, &s.TimeLabel, &s.SlotIndex,
			&s.IsBooked, &s.BookedBy, &s.AppointmentID, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ClaimSlot is the conditional update that makes booking safe under
// concurrency: only the transaction that flips is_booked wins.
func (r *Repository) ClaimSlot(ctx context.Context, tx booking.Tx, slotID, patientID string) (model.TimeSlot, error) {
	var s model.TimeSlot
	err := pgtx(tx).QueryRow(ctx, `
		UPDATE time_slots
		SET is_booked = TRUE,
			booked_by = $2
		WHERE slot_id = $1 AND is_booked = FALSE
		RETURNING `+slotColumns+`
	`, slotID, patientID).Scan(&s.SlotID, &s.DoctorID, &s.Date, &s.TimeLabel, &s.SlotIndex,
		&s.IsBooked, &s.BookedBy, &s.AppointmentID, &s.CreatedAt)
	if err == nil {
		return s, nil
	}
	if !IsNotFound(err) {
		return model.TimeSlot{}, err
	}

	var exists bool
	if err := pgtx(tx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM time_slots WHERE slot_id = $1)`, slotID).Scan(&exists); err != nil {
		return model.TimeSlot{}, err
	}
	if !exists {
		return model.TimeSlot{}, booking.ErrNotFound
	}
	return model.TimeSlot{}, booking.ErrSlotTaken
}

func (r *Repository) ReleaseSlot(ctx context.Context, tx booking.Tx, slotID string) error {
	_, err := pgtx(tx).Exec(ctx, `
		UPDATE time_slots
		SET is_booked = FALSE,
			booked_by = NULL,
			appointment_id = NULL
		WHERE slot_id = $1
	`, slotID)
	return err
}

func (r *Repository) LinkSlot(ctx context.Context, tx booking.Tx, slotID, appointmentID string) error {
	_, err := pgtx(tx).Exec(ctx, `
		UPDATE time_slots
		SET appointment_id = $2
		WHERE slot_id = $1
	`, slotID, appointmentID)
	return err
}
