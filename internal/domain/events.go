package domain

import "github.com/google/uuid"

// Realtime event names pushed to connected clients.
const (
	EventNewSOS         = "new_sos"
	EventSOSResponse    = "sos_response"
	EventTimelineUpdate = "timeline_update"
)

type SOSResponseEvent struct {
	IncidentID uuid.UUID `json:"incident_id"`
	Responder  string    `json:"responder"`
}

type TimelineUpdateEvent struct {
	IncidentID uuid.UUID       `json:"incident_id"`
	Timeline   []TimelineEvent `json:"timeline"`
}
