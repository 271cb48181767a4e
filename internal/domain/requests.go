package domain

import "github.com/google/uuid"

type CreateIncidentRequest struct {
	Type        IncidentType `json:"type" validate:"required,oneof=accident surgery disaster other blood_request"`
	Description string       `json:"description" validate:"max=2000"`
	// Zero values are legal coordinates (equator, prime meridian), so
	// presence is not enforced here; range checks still apply.
	Lat float64 `json:"latitude" validate:"lat"`
	Lng float64 `json:"longitude" validate:"lng"`
	BloodGroup  string       `json:"blood_group" validate:"omitempty,blood_group"`
}

type CancelIncidentRequest struct {
	FalseAlarm bool   `json:"false_alarm"`
	Details    string `json:"details" validate:"max=500"`
}

type NearbyRespondersRequest struct {
	Lat        float64 `json:"lat" validate:"lat"`
	Lng        float64 `json:"lng" validate:"lng"`
	RadiusKM   float64 `json:"radius_km" validate:"omitempty,radius_km"`
	BloodGroup string  `json:"blood_group" validate:"omitempty,blood_group"`
}

type RegisterRequest struct {
	Name     string   `json:"name" validate:"required,min=2,max=100"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Phone    string   `json:"phone" validate:"required,min=5,max=20"`
	Role     UserRole `json:"role" validate:"omitempty,oneof=user donor hospital admin"`
	Lat      float64  `json:"latitude" validate:"omitempty,lat"`
	Lng      float64  `json:"longitude" validate:"omitempty,lng"`

	BloodGroup string `json:"blood_group" validate:"omitempty,blood_group"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type UpdateProfileRequest struct {
	Name             *string  `json:"name" validate:"omitempty,min=2,max=100"`
	Phone            *string  `json:"phone" validate:"omitempty,min=5,max=20"`
	Lat              *float64 `json:"latitude" validate:"omitempty,lat"`
	Lng              *float64 `json:"longitude" validate:"omitempty,lng"`
	BloodGroup       *string  `json:"blood_group" validate:"omitempty,blood_group"`
	MedicalHistory   *string  `json:"medical_history" validate:"omitempty,max=5000"`
	EmergencyContact *string  `json:"emergency_contact" validate:"omitempty,max=20"`
	ProfileImage     *string  `json:"profile_image"`
}

type HeatPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"` // priority score normalized to [0,1]
}

type AdminStats struct {
	TotalSOS      int64            `json:"total_sos"`
	AvgPriority   float64          `json:"avg_priority"`
	ResolvedCount int64            `json:"resolved_count"`
	BloodDemand   map[string]int64 `json:"blood_demand"`
}

type AlertPayload struct {
	IncidentID uuid.UUID `json:"incident_id"`
	Contact    string    `json:"contact"`
	Patient    string    `json:"patient"`
	Type       string    `json:"type"`
	TrackLink  string    `json:"track_link"`
}
