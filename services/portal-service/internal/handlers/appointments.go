package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/model"
	"github.com/healthband/portal/services/portal-service/internal/storage"
)

// DoctorCatalog is the read side of the doctor listing.
type DoctorCatalog interface {
	SearchDoctors(ctx context.Context, f storage.DoctorFilter) ([]model.Doctor, error)
}

type AppointmentHandler struct {
	svc     *booking.Service
	catalog DoctorCatalog
	logger  *slog.Logger
}

func NewAppointmentHandler(svc *booking.Service, catalog DoctorCatalog, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, catalog: catalog, logger: logger}
}

const routePrefix = "/api/v1/appointments/"

// Register wires the appointment surface onto the mux. Fixed paths get
// their own entries; everything else under the prefix is dispatched by
// path shape in route.
func (h *AppointmentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/appointments/doctors", h.Doctors)
	mux.HandleFunc("/api/v1/appointments/book", h.Book)
	mux.HandleFunc("/api/v1/appointments/my-appointments", h.List)
	mux.HandleFunc(routePrefix, h.route)
}

// route handles the parameterized paths:
//
//	GET /doctors/{doctorId}/availability
//	GET /{appointmentId}
//	PUT /{appointmentId}/cancel
//	PUT /{appointmentId}/reschedule
func (h *AppointmentHandler) route(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, routePrefix), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 3 && parts[0] == "doctors" && parts[2] == "availability":
		h.availability(w, r, parts[1])
	case len(parts) == 1 && parts[0] != "":
		h.detail(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "cancel":
		h.cancel(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "reschedule":
		h.reschedule(w, r, parts[0])
	default:
		respondFailure(w, http.StatusNotFound, booking.CodeNotFound, "Route not found")
	}
}

func (h *AppointmentHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	q := r.URL.Query()
	filter := storage.DoctorFilter{
		Specialty:     strings.TrimSpace(q.Get("specialty")),
		Search:        strings.TrimSpace(q.Get("search")),
		AvailableOnly: q.Get("available") == "true",
	}

	doctors, err := h.catalog.SearchDoctors(r.Context(), filter)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	cards := make([]doctorCard, 0, len(doctors))
	for _, d := range doctors {
		cards = append(cards, toDoctorCard(d))
	}
	respondData(w, http.StatusOK, map[string]any{
		"doctors": cards,
		"total":   len(cards),
	})
}

func (h *AppointmentHandler) availability(w http.ResponseWriter, r *http.Request, doctorID string) {
	if r.Method != http.MethodGet {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	avail, err := h.svc.Availability(r.Context(), doctorID, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondData(w, http.StatusOK, toAvailabilityView(avail))
}

type bookRequest struct {
	DoctorID     string `json:"doctorId"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	SlotID       string `json:"slotId"`
	Reason       string `json:"reason"`
	PatientNotes string `json:"patientNotes"`
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, http.StatusBadRequest, booking.CodeValidation, "Invalid JSON body")
		return
	}

	res, err := h.svc.Book(r.Context(), PatientIDFromContext(r.Context()), booking.BookRequest{
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Time:         req.Time,
		SlotID:       req.SlotID,
		Reason:       req.Reason,
		PatientNotes: req.PatientNotes,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	h.logger.Info("appointment booked",
		"appointment_id", res.Appointment.ID,
		"doctor_id", res.Appointment.DoctorID,
		"slot_id", res.Appointment.SlotID)
	respondMessage(w, http.StatusCreated, "Appointment booked successfully",
		toAppointmentView(res.Appointment, res.Doctor))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	q := r.URL.Query()
	out, err := h.svc.List(r.Context(), PatientIDFromContext(r.Context()), booking.ListQuery{
		Status:   strings.TrimSpace(q.Get("status")),
		FromDate: strings.TrimSpace(q.Get("fromDate")),
		ToDate:   strings.TrimSpace(q.Get("toDate")),
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondData(w, http.StatusOK, toListView(out))
}

func (h *AppointmentHandler) detail(w http.ResponseWriter, r *http.Request, appointmentID string) {
	if r.Method != http.MethodGet {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	detail, err := h.svc.Detail(r.Context(), PatientIDFromContext(r.Context()), appointmentID)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}
	respondData(w, http.StatusOK, toDetailView(detail))
}

type cancelRequest struct {
	CancellationReason string `json:"cancellationReason"`
}

func (h *AppointmentHandler) cancel(w http.ResponseWriter, r *http.Request, appointmentID string) {
	if r.Method != http.MethodPut {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	var req cancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	out, err := h.svc.Cancel(r.Context(), PatientIDFromContext(r.Context()), appointmentID, req.CancellationReason)
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	h.logger.Info("appointment cancelled", "appointment_id", out.AppointmentID)
	respondMessage(w, http.StatusOK, "Appointment cancelled successfully", map[string]any{
		"appointmentId": out.AppointmentID,
		"status":        out.Status,
		"refundAmount":  out.RefundAmount,
		"refundStatus":  out.RefundStatus,
	})
}

type rescheduleRequest struct {
	NewDate   string `json:"newDate"`
	NewTime   string `json:"newTime"`
	NewSlotID string `json:"newSlotId"`
}

func (h *AppointmentHandler) reschedule(w http.ResponseWriter, r *http.Request, appointmentID string) {
	if r.Method != http.MethodPut {
		respondFailure(w, http.StatusMethodNotAllowed, booking.CodeValidation, "Method not allowed")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondFailure(w, http.StatusBadRequest, booking.CodeValidation, "Invalid JSON body")
		return
	}

	out, err := h.svc.Reschedule(r.Context(), PatientIDFromContext(r.Context()), appointmentID, booking.RescheduleRequest{
		NewDate:   req.NewDate,
		NewTime:   req.NewTime,
		NewSlotID: req.NewSlotID,
	})
	if err != nil {
		respondError(w, h.logger, r, err)
		return
	}

	h.logger.Info("appointment rescheduled",
		"appointment_id", out.Appointment.ID,
		"new_slot_id", out.Appointment.SlotID)
	respondMessage(w, http.StatusOK, "Appointment rescheduled successfully", map[string]any{
		"appointment": toAppointmentView(out.Appointment, out.Doctor),
		"previous": map[string]string{
			"date": out.OldDate.Format(booking.DateLayout),
			"time": out.OldTime,
		},
	})
}
