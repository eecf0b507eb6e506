package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/healthband/portal/services/portal-service/internal/booking"
	"github.com/healthband/portal/services/portal-service/internal/model"
)

const doctorColumns = `id, name, specialty, COALESCE(experience, ''), rating, total_reviews,
	COALESCE(image, ''), fees, currency, qualifications, languages, COALESCE(about, ''),
	COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, ''), is_available, created_at`

func (r *Repository) GetDoctor(ctx context.Context, doctorID string) (model.Doctor, error) {
	var d model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, doctorID).Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.Experience,
		&d.Rating,
		&d.TotalReviews,
		&d.Image,
		&d.Fees,
		&d.Currency,
		&d.Qualifications,
		&d.Languages,
		&d.About,
		&d.Email,
		&d.Phone,
		&d.Address,
		&d.IsAvailable,
		&d.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Doctor{}, booking.ErrNotFound
		}
		return model.Doctor{}, err
	}
	return d, nil
}

// DoctorFilter narrows the catalog listing. Search matches name or
// specialty case-insensitively.
type DoctorFilter struct {
	Specialty     string
	Search        string
	AvailableOnly bool
}

func (r *Repository) SearchDoctors(ctx context.Context, f DoctorFilter) ([]model.Doctor, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Specialty != "" {
		args = append(args, f.Specialty)
		where = append(where, fmt.Sprintf("LOWER(specialty) = LOWER($%d)", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR specialty ILIKE $%d)", len(args), len(args)))
	}
	if f.AvailableOnly {
		where = append(where, "is_available = TRUE")
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY rating DESC, total_reviews DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []model.Doctor
	for rows.Next() {
		var d model.Doctor
		if err := rows.Scan(
			&d.ID,
			&d.Name,
			&d.Specialty,
			&d.Experience,
			&d.Rating,
			&d.TotalReviews,
			&d.Image,
			&d.Fees,
			&d.Currency,
			&d.Qualifications,
			&d.Languages,
			&d.About,
			&d.Email,
			&d.Phone,
			&d.Address,
			&d.IsAvailable,
			&d.CreatedAt,
		); err != nil {
			return nil, err
		}
		doctors = append(doctors, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return doctors, nil
}

func (r *Repository) UpsertDoctor(ctx context.Context, d model.Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors
			(id, name, specialty, experience, rating, total_reviews, image, fees, currency,
			 qualifications, languages, about, email, phone, address, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			specialty = EXCLUDED.specialty,
			experience = EXCLUDED.experience,
			rating = EXCLUDED.rating,
			total_reviews = EXCLUDED.total_reviews,
			image = EXCLUDED.image,
			fees = EXCLUDED.fees,
			currency = EXCLUDED.currency,
			qualifications = EXCLUDED.qualifications,
			languages = EXCLUDED.languages,
			about = EXCLUDED.about,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			is_available = EXCLUDED.is_available
	`, d.ID, d.Name, d.Specialty, d.Experience, d.Rating, d.TotalReviews, d.Image, d.Fees, d.Currency,
		d.Qualifications, d.Languages, d.About, d.Email, d.Phone, d.Address, d.IsAvailable)
	return err
}
