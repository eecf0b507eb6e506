package model

import "time"

type Doctor struct {
	ID             string
	Name           string
	Specialty      string
	Experience     string
	Rating         float64
	TotalReviews   int
	Image          string
	Fees           float64
	Currency       string
	Qualifications []string
	Languages      []string
	About          string
	Email          string
	Phone          string
	Address        string
	IsAvailable    bool
	CreatedAt      time.Time
}
