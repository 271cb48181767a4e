package domain

import (
	"time"

	"github.com/google/uuid"
)

type IncidentStatus string

const (
	IncidentActive    IncidentStatus = "active"
	IncidentResolved  IncidentStatus = "resolved"
	IncidentCancelled IncidentStatus = "cancelled"
)

type IncidentType string

const (
	IncidentAccident     IncidentType = "accident"
	IncidentSurgery      IncidentType = "surgery"
	IncidentDisaster     IncidentType = "disaster"
	IncidentBloodRequest IncidentType = "blood_request"
	IncidentOther        IncidentType = "other"
)

type ResponderStatus string

const (
	ResponderAccepted ResponderStatus = "accepted"
	ResponderOnWay    ResponderStatus = "on_way"
	ResponderArrived  ResponderStatus = "arrived"
)

type Incident struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Type          IncidentType    `json:"type"`
	BloodGroup    string          `json:"blood_group,omitempty"`
	ContactNumber string          `json:"contact_number,omitempty"`
	Description   string          `json:"description,omitempty"`
	Lat           float64         `json:"lat" validate:"required,lat"` // -90..90
	Lng           float64         `json:"lng" validate:"required,lng"` // -180..180
	Status        IncidentStatus  `json:"status"`
	PriorityScore int             `json:"priority_score"`
	IsFalseAlarm  bool            `json:"is_false_alarm"`
	Timeline      []TimelineEvent `json:"timeline,omitempty"`
	Responders    []Responder     `json:"responders,omitempty"`
	Reporter      *PublicProfile  `json:"reporter,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TimelineEvent rows are append-only; ordering is by CreatedAt ascending.
type TimelineEvent struct {
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Responder struct {
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name,omitempty"`
	Role      UserRole        `json:"role,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Status    ResponderStatus `json:"status"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PublicProfile is the reporter projection joined into a populated incident.
type PublicProfile struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	ProfileImage string    `json:"profile_image,omitempty"`
}

func (t IncidentType) Valid() bool {
	switch t {
	case IncidentAccident, IncidentSurgery, IncidentDisaster, IncidentBloodRequest, IncidentOther:
		return true
	}
	return false
}
