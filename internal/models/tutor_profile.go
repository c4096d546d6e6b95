package models

import (
	"time"

	"github.com/lib/pq"
)

// TutorProfile is the public listing of a tutor and the source of the hourly
// rate used to price bookings.
type TutorProfile struct {
	UserID      string         `db:"user_id" json:"user_id"`
	DisplayName string         `db:"display_name" json:"display_name"`
	Bio         string         `db:"bio" json:"bio"`
	Subjects    pq.StringArray `db:"subjects" json:"subjects"`
	HourlyRate  Money          `db:"hourly_rate_cents" json:"hourly_rate"`
	TimeZone    string         `db:"time_zone" json:"time_zone"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Bookable reports whether learners may book the tutor.
func (p TutorProfile) Bookable() bool {
	return p.Active && p.HourlyRate > 0
}

// UpsertTutorProfileRequest creates or updates the caller's profile.
type UpsertTutorProfileRequest struct {
	DisplayName string   `json:"display_name" validate:"required,max=120"`
	Bio         string   `json:"bio" validate:"max=2000"`
	Subjects    []string `json:"subjects" validate:"max=20,dive,max=60"`
	HourlyRate  Money    `json:"hourly_rate" validate:"gt=0"`
	TimeZone    string   `json:"time_zone" validate:"omitempty,max=64"`
	Active      *bool    `json:"active"`
}

// TutorFilter captures listing criteria for public tutor search.
type TutorFilter struct {
	Search   string
	Subject  string
	Page     int
	PageSize int
}
