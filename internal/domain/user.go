package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleUser     UserRole = "user"
	RoleDonor    UserRole = "donor"
	RoleHospital UserRole = "hospital"
	RoleAdmin    UserRole = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Role         UserRole  `json:"role"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	ProfileImage string    `json:"profile_image,omitempty"`

	// Health profile
	BloodGroup       string `json:"blood_group,omitempty"`
	MedicalHistory   string `json:"medical_history,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`

	FalseAlarmCount int       `json:"false_alarm_count"`
	IsSuspended     bool      `json:"is_suspended"`
	CreatedAt       time.Time `json:"created_at"`
}

// ResponderCandidate is the locator projection of a hospital/donor user.
// It is never persisted.
type ResponderCandidate struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Role       UserRole  `json:"role"`
	BloodGroup string    `json:"blood_group,omitempty"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	DistanceKM float64   `json:"distance_km"`
}
