// Command seed-doctors loads the development doctor catalog into
// Postgres. Safe to re-run; rows are upserted by ID.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/healthband/portal/libs/config"
	"github.com/healthband/portal/libs/db"
	"github.com/healthband/portal/services/portal-service/internal/model"
	"github.com/healthband/portal/services/portal-service/internal/storage"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db connection failed:", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := storage.NewRepository(pool)
	for _, d := range catalog {
		if err := repo.UpsertDoctor(ctx, d); err != nil {
			fmt.Fprintf(os.Stderr, "seed %s failed: %v\n", d.ID, err)
			os.Exit(1)
		}
		fmt.Printf("seeded %s: %s - %s (%s)\n", d.ID, d.Name, d.Specialty, d.Experience)
	}
	fmt.Printf("seeded %d doctors\n", len(catalog))
}

var catalog = []model.Doctor{
	{
		ID:             "doc-1",
		Name:           "Dr. Sarah Johnson",
		Specialty:      "Cardiologist",
		Experience:     "15 years",
		Rating:         4.8,
		TotalReviews:   234,
		Image:          "https://images.unsplash.com/photo-1559839734-2b71ea197ec2?w=300",
		Fees:           150,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Cardiology", "FACC"},
		Languages:      []string{"English", "Spanish"},
		About:          "Experienced cardiologist specializing in preventive cardiology and heart disease management. Committed to providing comprehensive cardiovascular care with a focus on patient education and lifestyle modifications.",
		Email:          "dr.sarah.johnson@healthband.com",
		Phone:          "+1-555-0101",
		Address:        "123 Medical Center, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-2",
		Name:           "Dr. Michael Chen",
		Specialty:      "General Physician",
		Experience:     "10 years",
		Rating:         4.7,
		TotalReviews:   189,
		Image:          "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?w=300",
		Fees:           100,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Internal Medicine"},
		Languages:      []string{"English", "Mandarin", "Cantonese"},
		About:          "Dedicated general physician with expertise in primary care, preventive medicine, and chronic disease management. Provides comprehensive healthcare for patients of all ages.",
		Email:          "dr.michael.chen@healthband.com",
		Phone:          "+1-555-0102",
		Address:        "456 Primary Care Clinic, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-3",
		Name:           "Dr. Emily Rodriguez",
		Specialty:      "Pediatrician",
		Experience:     "12 years",
		Rating:         4.9,
		TotalReviews:   312,
		Image:          "https://images.unsplash.com/photo-1594824476967-48c8b964273f?w=300",
		Fees:           120,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Pediatrics", "FAAP"},
		Languages:      []string{"English", "Spanish", "Portuguese"},
		About:          "Compassionate pediatrician specializing in child health and development. Expert in newborn care, vaccinations, and childhood illnesses with a gentle approach that puts children at ease.",
		Email:          "dr.emily.rodriguez@healthband.com",
		Phone:          "+1-555-0103",
		Address:        "789 Children's Medical Center, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-4",
		Name:           "Dr. James Williams",
		Specialty:      "Orthopedic Surgeon",
		Experience:     "18 years",
		Rating:         4.6,
		TotalReviews:   156,
		Image:          "https://images.unsplash.com/photo-1622253692010-333f2da6031d?w=300",
		Fees:           200,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MS Orthopedics", "FAAOS"},
		Languages:      []string{"English"},
		About:          "Highly skilled orthopedic surgeon specializing in joint replacement, sports injuries, and trauma care. Uses advanced surgical techniques for optimal patient outcomes.",
		Email:          "dr.james.williams@healthband.com",
		Phone:          "+1-555-0104",
		Address:        "321 Orthopedic Center, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-5",
		Name:           "Dr. Priya Patel",
		Specialty:      "Dermatologist",
		Experience:     "8 years",
		Rating:         4.8,
		TotalReviews:   201,
		Image:          "https://images.unsplash.com/photo-1651008376811-b90baee60c1f?w=300",
		Fees:           130,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Dermatology"},
		Languages:      []string{"English", "Hindi", "Gujarati"},
		About:          "Board-certified dermatologist with expertise in medical, surgical, and cosmetic dermatology. Specializes in acne treatment, skin cancer screening, and anti-aging procedures.",
		Email:          "dr.priya.patel@healthband.com",
		Phone:          "+1-555-0105",
		Address:        "654 Skin Care Clinic, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-6",
		Name:           "Dr. Robert Taylor",
		Specialty:      "Neurologist",
		Experience:     "20 years",
		Rating:         4.9,
		TotalReviews:   278,
		Image:          "https://images.unsplash.com/photo-1537368910025-700350fe46c7?w=300",
		Fees:           180,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Neurology", "FAAN"},
		Languages:      []string{"English", "French"},
		About:          "Renowned neurologist specializing in stroke care, epilepsy, and movement disorders. Pioneer in advanced neurological diagnostics and treatment protocols.",
		Email:          "dr.robert.taylor@healthband.com",
		Phone:          "+1-555-0106",
		Address:        "987 Neurology Institute, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-7",
		Name:           "Dr. Lisa Anderson",
		Specialty:      "Psychiatrist",
		Experience:     "14 years",
		Rating:         4.7,
		TotalReviews:   165,
		Image:          "https://images.unsplash.com/photo-1638202993928-7267aad84c31?w=300",
		Fees:           140,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Psychiatry"},
		Languages:      []string{"English", "German"},
		About:          "Compassionate psychiatrist specializing in anxiety disorders, depression, and cognitive behavioral therapy. Provides holistic mental health care in a supportive environment.",
		Email:          "dr.lisa.anderson@healthband.com",
		Phone:          "+1-555-0107",
		Address:        "147 Mental Health Center, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-8",
		Name:           "Dr. David Kim",
		Specialty:      "Ophthalmologist",
		Experience:     "11 years",
		Rating:         4.8,
		TotalReviews:   223,
		Image:          "https://images.unsplash.com/photo-1582750433449-648ed127bb54?w=300",
		Fees:           160,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MS Ophthalmology"},
		Languages:      []string{"English", "Korean"},
		About:          "Expert ophthalmologist specializing in cataract surgery, LASIK, and retinal diseases. Uses state-of-the-art technology for precise diagnosis and treatment.",
		Email:          "dr.david.kim@healthband.com",
		Phone:          "+1-555-0108",
		Address:        "258 Eye Care Center, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-9",
		Name:           "Dr. Amanda Martinez",
		Specialty:      "Endocrinologist",
		Experience:     "9 years",
		Rating:         4.6,
		TotalReviews:   142,
		Image:          "https://images.unsplash.com/photo-1527613426441-4da17471b66d?w=300",
		Fees:           145,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Endocrinology"},
		Languages:      []string{"English", "Spanish"},
		About:          "Dedicated endocrinologist specializing in diabetes management, thyroid disorders, and hormonal imbalances. Focuses on personalized treatment plans for optimal metabolic health.",
		Email:          "dr.amanda.martinez@healthband.com",
		Phone:          "+1-555-0109",
		Address:        "369 Endocrine Clinic, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
	{
		ID:             "doc-10",
		Name:           "Dr. Thomas Brown",
		Specialty:      "Gastroenterologist",
		Experience:     "16 years",
		Rating:         4.7,
		TotalReviews:   198,
		Image:          "https://images.unsplash.com/photo-1643297654416-05795d62e39c?w=300",
		Fees:           170,
		Currency:       "USD",
		Qualifications: []string{"MBBS", "MD Gastroenterology", "FACG"},
		Languages:      []string{"English"},
		About:          "Board-certified gastroenterologist with expertise in digestive disorders, liver diseases, and advanced endoscopic procedures. Committed to evidence-based care.",
		Email:          "dr.thomas.brown@healthband.com",
		Phone:          "+1-555-0110",
		Address:        "741 Digestive Health Center, Healthcare City, HC 12345",
		IsAvailable:    true,
	},
}
