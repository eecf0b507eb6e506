package handlers

import (
	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/model"
)

type doctorCard struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	Experience     string   `json:"experience,omitempty"`
	Rating         float64  `json:"rating"`
	TotalReviews   int      `json:"totalReviews"`
	Image          string   `json:"image,omitempty"`
	Fees           float64  `json:"fees"`
	Currency       string   `json:"currency"`
	Qualifications []string `json:"qualifications,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	About          string   `json:"about,omitempty"`
	Email          string   `json:"email,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Address        string   `json:"address,omitempty"`
	IsAvailable    bool     `json:"isAvailable"`
}

func toDoctorCard(d model.Doctor) doctorCard {
	return doctorCard{
		ID:             d.ID,
		Name:           d.Name,
		Specialty:      d.Specialty,
		Experience:     d.Experience,
		Rating:         d.Rating,
		TotalReviews:   d.TotalReviews,
		Image:          d.Image,
		Fees:           d.Fees,
		Currency:       d.Currency,
		Qualifications: d.Qualifications,
		Languages:      d.Languages,
		About:          d.About,
		Email:          d.Email,
		Phone:          d.Phone,
		Address:        d.Address,
		IsAvailable:    d.IsAvailable,
	}
}

type doctorSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Specialty string  `json:"specialty"`
	Image     string  `json:"image,omitempty"`
	Fees      float64 `json:"fees"`
	Currency  string  `json:"currency"`
}

func toDoctorSummary(d model.Doctor) doctorSummary {
	return doctorSummary{
		ID:        d.ID,
		Name:      d.Name,
		Specialty: d.Specialty,
		Image:     d.Image,
		Fees:      d.Fees,
		Currency:  d.Currency,
	}
}

type slotView struct {
	Time      string `json:"time"`
	SlotID    string `json:"slotId"`
	Available bool   `json:"available"`
}

type availabilityView struct {
	DoctorID   string     `json:"doctorId"`
	DoctorName string     `json:"doctorName"`
	Date       string     `json:"date"`
	Slots      []slotView `json:"availableSlots"`
}

func toAvailabilityView(a booking.Availability) availabilityView {
	out := availabilityView{
		DoctorID:   a.Doctor.ID,
		DoctorName: a.Doctor.Name,
		Date:       a.Date,
		Slots:      make([]slotView, 0, len(a.Slots)),
	}
	for _, s := range a.Slots {
		out.Slots = append(out.Slots, slotView{Time: s.Time, SlotID: s.SlotID, Available: s.Available})
	}
	return out
}

type appointmentView struct {
	ID                 string        `json:"id"`
	Doctor             doctorSummary `json:"doctor"`
	Date               string        `json:"date"`
	Time               string        `json:"time"`
	SlotID             string        `json:"slotId"`
	Reason             string        `json:"reason"`
	PatientNotes       string        `json:"patientNotes,omitempty"`
	Status             string        `json:"status"`
	Fees               float64       `json:"fees"`
	Currency           string        `json:"currency"`
	PaymentStatus      string        `json:"paymentStatus"`
	Location           string        `json:"location"`
	Duration           string        `json:"duration"`
	Instructions       string        `json:"instructions"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	RefundAmount       float64       `json:"refundAmount,omitempty"`
	RefundStatus       string        `json:"refundStatus,omitempty"`
	BookingDate        string        `json:"bookingDate"`
}

func toAppointmentView(a model.Appointment, d model.Doctor) appointmentView {
	refundStatus := a.RefundStatus
	if refundStatus == model.RefundNone {
		refundStatus = ""
	}
	return appointmentView{
		ID:                 a.ID,
		Doctor:             toDoctorSummary(d),
		Date:               a.Date.Format(booking.DateLayout),
		Time:               a.TimeLabel,
		SlotID:             a.SlotID,
		Reason:             a.Reason,
		PatientNotes:       a.PatientNotes,
		Status:             a.Status,
		Fees:               a.Fees,
		Currency:           a.Currency,
		PaymentStatus:      a.PaymentStatus,
		Location:           a.Location,
		Duration:           a.Duration,
		Instructions:       a.Instructions,
		CancellationReason: a.CancellationReason,
		RefundAmount:       a.RefundAmount,
		RefundStatus:       refundStatus,
		BookingDate:        a.BookingDate.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type listEntryView struct {
	appointmentView
	CanCancel     bool `json:"canCancel"`
	CanReschedule bool `json:"canReschedule"`
	CanReview     bool `json:"canReview"`
}

type listView struct {
	Upcoming []listEntryView `json:"upcoming"`
	Past     []listEntryView `json:"past"`
	Total    int             `json:"total"`
}

func toListView(p booking.Partitioned) listView {
	out := listView{
		Upcoming: make([]listEntryView, 0, len(p.Upcoming)),
		Past:     make([]listEntryView, 0, len(p.Past)),
	}
	for _, e := range p.Upcoming {
		out.Upcoming = append(out.Upcoming, listEntryView{
			appointmentView: toAppointmentView(e.Appointment, e.Doctor),
			CanCancel:       e.CanCancel,
			CanReschedule:   e.CanReschedule,
		})
	}
	for _, e := range p.Past {
		out.Past = append(out.Past, listEntryView{
			appointmentView: toAppointmentView(e.Appointment, e.Doctor),
			CanReview:       e.CanReview,
		})
	}
	out.Total = len(out.Upcoming) + len(out.Past)
	return out
}

type rescheduleEntryView struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	ModifiedAt string `json:"modifiedAt"`
}

type detailView struct {
	appointmentView
	Doctor  doctorCard            `json:"doctor"`
	History []rescheduleEntryView `json:"rescheduleHistory,omitempty"`
}

func toDetailView(d booking.Detail) detailView {
	out := detailView{
		appointmentView: toAppointmentView(d.Appointment, d.Doctor),
		Doctor:          toDoctorCard(d.Doctor),
	}
	for _, h := range d.History {
		out.History = append(out.History, rescheduleEntryView{
			Date:       h.Date.Format(booking.DateLayout),
			Time:       h.TimeLabel,
			ModifiedAt: h.ModifiedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}
