package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/healthband/portal/services/portal-service/internal/model"
	"github.com/healthband/portal/services/portal-service/internal/outbox"
)

// fakeStore applies writes immediately; Rollback is a no-op, so tests only
// assert state after flows that commit or fail before mutating anything
// they later inspect.
type fakeStore struct {
	mu      sync.Mutex
	doctors map[string]model.Doctor
	slots   map[string]*model.TimeSlot
	appts   map[string]*model.Appointment
	history map[string][]model.Reschedule
	events  []outbox.Event
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		doctors: map[string]model.Doctor{},
		slots:   map[string]*model.TimeSlot{},
		appts:   map[string]*model.Appointment{},
		history: map[string][]model.Reschedule{},
	}
}

type fakeTx struct{}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

func (f *fakeStore) Begin(context.Context) (Tx, error) { return fakeTx{}, nil }

func (f *fakeStore) GetDoctor(_ context.Context, doctorID string) (model.Doctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.doctors[doctorID]
	if !ok {
		return model.Doctor{}, ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) EnsureSlots(_ context.Context, doctorID string, date time.Time, slots []model.TimeSlot) ([]model.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range slots {
		if _, ok := f.slots[slots[i].SlotID]; !ok {
			s := slots[i]
			f.slots[s.SlotID] = &s
		}
	}
	var out []model.TimeSlot
	for _, s := range f.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) {
			out = append(out, *s)
		}
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j].SlotIndex < out[i].SlotIndex {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ClaimSlot(_ context.Context, _ Tx, slotID, patientID string) (model.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return model.TimeSlot{}, ErrNotFound
	}
	if s.IsBooked {
		return model.TimeSlot{}, ErrSlotTaken
	}
	s.IsBooked = true
	s.BookedBy = patientID
	return *s, nil
}

func (f *fakeStore) ReleaseSlot(_ context.Context, _ Tx, slotID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[slotID]; ok {
		s.IsBooked = false
		s.BookedBy = ""
		s.AppointmentID = ""
	}
	return nil
}

func (f *fakeStore) LinkSlot(_ context.Context, _ Tx, slotID, appointmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.slots[slotID]; ok {
		s.AppointmentID = appointmentID
	}
	return nil
}

func (f *fakeStore) HasActiveBooking(_ context.Context, _ Tx, patientID, doctorID string, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.PatientID == patientID && a.DoctorID == doctorID && a.Date.Equal(date) &&
			(a.Status == model.StatusConfirmed || a.Status == model.StatusRescheduled) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) InsertAppointment(_ context.Context, _ Tx, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appts {
		if a.PatientID == appt.PatientID && a.DoctorID == appt.DoctorID && a.Date.Equal(appt.Date) &&
			(a.Status == model.StatusConfirmed || a.Status == model.StatusRescheduled) {
			return ErrDuplicateBooking
		}
	}
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeStore) GetAppointmentForUpdate(_ context.Context, _ Tx, appointmentID, patientID string) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[appointmentID]
	if !ok || a.PatientID != patientID {
		return model.Appointment{}, ErrNotFound
	}
	return *a, nil
}

func (f *fakeStore) UpdateCancelled(_ context.Context, _ Tx, appt model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateRescheduled(_ context.Context, _ Tx, appt model.Appointment, prev model.Reschedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := appt
	f.appts[appt.ID] = &cp
	f.history[appt.ID] = append(f.history[appt.ID], prev)
	return nil
}

func (f *fakeStore) InsertEvent(_ context.Context, _ Tx, evt outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeStore) ListAppointments(_ context.Context, patientID string, flt ListFilter) ([]AppointmentWithDoctor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AppointmentWithDoctor
	for _, a := range f.appts {
		if a.PatientID != patientID {
			continue
		}
		if len(flt.Statuses) > 0 {
			match := false
			for _, s := range flt.Statuses {
				if a.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		if !flt.From.IsZero() && a.Date.Before(flt.From) {
			continue
		}
		if !flt.To.IsZero() && a.Date.After(flt.To) {
			continue
		}
		out = append(out, AppointmentWithDoctor{Appointment: *a, Doctor: f.doctors[a.DoctorID]})
	}
	return out, nil
}

func (f *fakeStore) GetDetail(_ context.Context, appointmentID, patientID string) (Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[appointmentID]
	if !ok || a.PatientID != patientID {
		return Detail{}, ErrNotFound
	}
	return Detail{Appointment: *a, Doctor: f.doctors[a.DoctorID], History: f.history[appointmentID]}, nil
}

func (f *fakeStore) slot(t *testing.T, slotID string) model.TimeSlot {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		t.Fatalf("slot %s not found", slotID)
	}
	return *s
}

func testService(store Store, now time.Time) *Service {
	s := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return now }
	return s
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func seedDoctor(f *fakeStore, id string) model.Doctor {
	d := model.Doctor{
		ID:          id,
		Name:        "Dr. Sarah Johnson",
		Specialty:   "Cardiologist",
		Fees:        150,
		Currency:    "USD",
		IsAvailable: true,
	}
	f.doctors[id] = d
	return d
}

func bookOne(t *testing.T, svc *Service, store *fakeStore, patientID, doctorID, dateStr string) BookingResult {
	t.Helper()
	ctx := context.Background()
	avail, err := svc.Availability(ctx, doctorID, dateStr)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	var free SlotStatus
	for _, s := range avail.Slots {
		if s.Available {
			free = s
			break
		}
	}
	if free.SlotID == "" {
		t.Fatal("no free slot")
	}
	res, err := svc.Book(ctx, patientID, BookRequest{
		DoctorID: doctorID,
		Date:     dateStr,
		Time:     free.Time,
		SlotID:   free.SlotID,
		Reason:   "Routine checkup",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return res
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("want *Error with code %s, got %v", code, err)
	}
	if be.Code != code {
		t.Fatalf("want code %s, got %s (%s)", code, be.Code, be.Message)
	}
}

func TestAvailabilityMaterializesOnce(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	now := mustDate(t, "2026-03-01")
	svc := testService(store, now)

	first, err := svc.Availability(context.Background(), "doc-1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Slots) != len(defaultSlotTimes) {
		t.Fatalf("want %d slots, got %d", len(defaultSlotTimes), len(first.Slots))
	}
	if first.Slots[0].SlotID != "doc-1_2026-03-10_0" {
		t.Fatalf("unexpected slot id %s", first.Slots[0].SlotID)
	}

	second, err := svc.Availability(context.Background(), "doc-1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Slots) != len(first.Slots) {
		t.Fatalf("repeat materialized extra slots: %d vs %d", len(second.Slots), len(first.Slots))
	}
	for i := range first.Slots {
		if first.Slots[i].SlotID != second.Slots[i].SlotID {
			t.Fatalf("slot ids drifted at %d: %s vs %s", i, first.Slots[i].SlotID, second.Slots[i].SlotID)
		}
	}
}

func TestAvailabilityPastDate(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-10"))

	_, err := svc.Availability(context.Background(), "doc-1", "2026-03-09")
	wantCode(t, err, CodeInvalidDate)
}

func TestAvailabilityUnavailableDoctor(t *testing.T) {
	store := newFakeStore()
	d := seedDoctor(store, "doc-1")
	d.IsAvailable = false
	store.doctors["doc-1"] = d
	svc := testService(store, mustDate(t, "2026-03-01"))

	_, err := svc.Availability(context.Background(), "doc-1", "2026-03-10")
	wantCode(t, err, CodeDoctorNotAvailable)
}

func TestBookMarksSlotTaken(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	res := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	if res.Appointment.Status != model.StatusConfirmed {
		t.Fatalf("want confirmed, got %s", res.Appointment.Status)
	}
	if res.Appointment.Fees != 150 || res.Appointment.Currency != "USD" {
		t.Fatalf("fees not snapshotted: %v %s", res.Appointment.Fees, res.Appointment.Currency)
	}
	slot := store.slot(t, res.Appointment.SlotID)
	if !slot.IsBooked || slot.BookedBy != "pat-1" || slot.AppointmentID != res.Appointment.ID {
		t.Fatalf("slot not linked: %+v", slot)
	}

	avail, err := svc.Availability(context.Background(), "doc-1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range avail.Slots {
		if s.SlotID == res.Appointment.SlotID && s.Available {
			t.Fatal("booked slot still reported available")
		}
	}
	if len(store.events) != 1 || store.events[0].EventType != outbox.TopicAppointmentBooked {
		t.Fatalf("want one booked event, got %+v", store.events)
	}
}

func TestBookSameSlotConcurrently(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	avail, err := svc.Availability(context.Background(), "doc-1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	slot := avail.Slots[0]

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(context.Background(), fmt.Sprintf("pat-%d", i), BookRequest{
				DoctorID: "doc-1",
				Date:     "2026-03-10",
				Time:     slot.Time,
				SlotID:   slot.SlotID,
				Reason:   "Checkup",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		wantCode(t, err, CodeSlotNotAvailable)
	}
	if wins != 1 {
		t.Fatalf("want exactly one winner, got %d", wins)
	}
}

func TestBookDuplicateSameDoctorSameDate(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")

	avail, err := svc.Availability(context.Background(), "doc-1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	var free SlotStatus
	for _, s := range avail.Slots {
		if s.Available {
			free = s
			break
		}
	}
	_, err = svc.Book(context.Background(), "pat-1", BookRequest{
		DoctorID: "doc-1",
		Date:     "2026-03-10",
		Time:     free.Time,
		SlotID:   free.SlotID,
		Reason:   "Second opinion on myself",
	})
	wantCode(t, err, CodeAlreadyBooked)
}

func TestBookValidation(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	_, err := svc.Book(context.Background(), "pat-1", BookRequest{DoctorID: "doc-1", Date: "2026-03-10"})
	wantCode(t, err, CodeValidation)

	_, err = svc.Book(context.Background(), "pat-1", BookRequest{
		DoctorID: "doc-9", Date: "2026-03-10", Time: "09:00 AM", SlotID: "doc-9_2026-03-10_0", Reason: "x",
	})
	wantCode(t, err, CodeNotFound)
}

func TestCancelReleasesSlot(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	res := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	out, err := svc.Cancel(context.Background(), "pat-1", res.Appointment.ID, "Feeling better")
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != model.StatusCancelled {
		t.Fatalf("want cancelled, got %s", out.Status)
	}
	if out.RefundAmount != 150 || out.RefundStatus != model.RefundProcessing {
		t.Fatalf("refund not snapshotted: %+v", out)
	}
	if slot := store.slot(t, res.Appointment.SlotID); slot.IsBooked {
		t.Fatal("slot not released after cancel")
	}

	_, err = svc.Cancel(context.Background(), "pat-1", res.Appointment.ID, "again")
	wantCode(t, err, CodeAlreadyCancelled)
}

func TestCancelOwnership(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	res := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	_, err := svc.Cancel(context.Background(), "pat-2", res.Appointment.ID, "not mine")
	wantCode(t, err, CodeNotFound)
}

func TestCancelWindow(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	booked := testService(store, mustDate(t, "2026-03-01"))
	res := bookOne(t, booked, store, "pat-1", "doc-1", "2026-03-10")

	start := startTime(mustDate(t, "2026-03-10"), res.Appointment.TimeLabel)

	// 30 minutes before start: blocked.
	svc := testService(store, start.Add(-30*time.Minute))
	_, err := svc.Cancel(context.Background(), "pat-1", res.Appointment.ID, "late")
	wantCode(t, err, CodeCannotCancel)

	// 2 hours before start: allowed.
	svc = testService(store, start.Add(-2*time.Hour))
	if _, err := svc.Cancel(context.Background(), "pat-1", res.Appointment.ID, "early enough"); err != nil {
		t.Fatalf("cancel 2h before start: %v", err)
	}

	// Appointment already started or past: the window check does not
	// apply, cancellation goes through.
	res2 := bookOne(t, booked, store, "pat-2", "doc-1", "2026-03-10")
	svc = testService(store, start.Add(3*time.Hour))
	if _, err := svc.Cancel(context.Background(), "pat-2", res2.Appointment.ID, "no-show"); err != nil {
		t.Fatalf("cancel after start: %v", err)
	}
}

func TestRescheduleMovesSlot(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	res := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	oldSlotID := res.Appointment.SlotID

	avail, err := svc.Availability(context.Background(), "doc-1", "2026-03-11")
	if err != nil {
		t.Fatal(err)
	}
	target := avail.Slots[3]

	out, err := svc.Reschedule(context.Background(), "pat-1", res.Appointment.ID, RescheduleRequest{
		NewDate:   "2026-03-11",
		NewTime:   target.Time,
		NewSlotID: target.SlotID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Appointment.Status != model.StatusRescheduled {
		t.Fatalf("want rescheduled, got %s", out.Appointment.Status)
	}
	if out.Appointment.SlotID != target.SlotID {
		t.Fatalf("slot not moved: %s", out.Appointment.SlotID)
	}
	if slot := store.slot(t, oldSlotID); slot.IsBooked {
		t.Fatal("old slot not released")
	}
	if slot := store.slot(t, target.SlotID); !slot.IsBooked || slot.AppointmentID != res.Appointment.ID {
		t.Fatalf("new slot not claimed: %+v", slot)
	}

	detail, err := svc.Detail(context.Background(), "pat-1", res.Appointment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(detail.History) != 1 {
		t.Fatalf("want one history entry, got %d", len(detail.History))
	}
	if !detail.History[0].Date.Equal(mustDate(t, "2026-03-10")) || detail.History[0].TimeLabel != res.Appointment.TimeLabel {
		t.Fatalf("history does not record prior schedule: %+v", detail.History[0])
	}
}

func TestRescheduleToTakenSlot(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	mine := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	theirs := bookOne(t, svc, store, "pat-2", "doc-1", "2026-03-10")

	_, err := svc.Reschedule(context.Background(), "pat-1", mine.Appointment.ID, RescheduleRequest{
		NewDate:   "2026-03-10",
		NewTime:   theirs.Appointment.TimeLabel,
		NewSlotID: theirs.Appointment.SlotID,
	})
	wantCode(t, err, CodeSlotNotAvailable)
}

func TestRescheduleCancelled(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	res := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	if _, err := svc.Cancel(context.Background(), "pat-1", res.Appointment.ID, "done"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Reschedule(context.Background(), "pat-1", res.Appointment.ID, RescheduleRequest{
		NewDate: "2026-03-11", NewTime: "09:00 AM", NewSlotID: "doc-1_2026-03-11_0",
	})
	wantCode(t, err, CodeCannotReschedule)
}

func TestListPartition(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	now := mustDate(t, "2026-03-05")
	svc := testService(store, now)

	upcoming := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")

	past := model.Appointment{
		ID: "appt-past", PatientID: "pat-1", DoctorID: "doc-1",
		Date: mustDate(t, "2026-03-01"), TimeLabel: "09:00 AM",
		Status: model.StatusCompleted,
	}
	store.appts[past.ID] = &past
	cancelled := model.Appointment{
		ID: "appt-cancelled", PatientID: "pat-1", DoctorID: "doc-1",
		Date: mustDate(t, "2026-03-02"), TimeLabel: "10:00 AM",
		Status: model.StatusCancelled,
	}
	store.appts[cancelled.ID] = &cancelled

	out, err := svc.List(context.Background(), "pat-1", ListQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Upcoming) != 1 || out.Upcoming[0].Appointment.ID != upcoming.Appointment.ID {
		t.Fatalf("unexpected upcoming set: %+v", out.Upcoming)
	}
	if !out.Upcoming[0].CanCancel || !out.Upcoming[0].CanReschedule {
		t.Fatal("upcoming entry missing action flags")
	}
	if len(out.Past) != 2 {
		t.Fatalf("want 2 past, got %d", len(out.Past))
	}
	for _, e := range out.Past {
		if e.Appointment.ID == "appt-past" && !e.CanReview {
			t.Fatal("completed visit not reviewable")
		}
		if e.Appointment.ID == "appt-cancelled" && e.CanReview {
			t.Fatal("cancelled visit should not be reviewable")
		}
	}

	// status=upcoming narrows to active statuses from today onward.
	filtered, err := svc.List(context.Background(), "pat-1", ListQuery{Status: "upcoming"})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered.Upcoming) != 1 || len(filtered.Past) != 0 {
		t.Fatalf("upcoming filter leaked past entries: %+v", filtered)
	}

	// A fromDate+toDate pair bounds the listing by calendar date.
	ranged, err := svc.List(context.Background(), "pat-1", ListQuery{
		FromDate: "2026-03-01", ToDate: "2026-03-02",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged.Upcoming) != 0 || len(ranged.Past) != 2 {
		t.Fatalf("date range filter wrong: %+v", ranged)
	}
}

func TestDetailOwnership(t *testing.T) {
	store := newFakeStore()
	seedDoctor(store, "doc-1")
	svc := testService(store, mustDate(t, "2026-03-01"))

	res := bookOne(t, svc, store, "pat-1", "doc-1", "2026-03-10")
	if _, err := svc.Detail(context.Background(), "pat-1", res.Appointment.ID); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Detail(context.Background(), "pat-2", res.Appointment.ID)
	wantCode(t, err, CodeNotFound)
}
