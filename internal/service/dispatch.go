package service

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"

	"github.com/google/uuid"
)

type dispatchService struct {
	incidents IncidentRepository
	users     UserRepository
	alerts    AlertQueue
	bus       Broadcaster
	logger    *slog.Logger

	dispatchRadiusKm float64
	defaultRadiusKm  float64
	trackBaseURL     string
}

func NewDispatchService(
	incidents IncidentRepository,
	users UserRepository,
	alerts AlertQueue,
	bus Broadcaster,
	logger *slog.Logger,
	dispatchRadiusKm, defaultRadiusKm float64,
	trackBaseURL string,
) DispatchService {
	if dispatchRadiusKm <= 0 {
		dispatchRadiusKm = 10
	}
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = 5
	}
	return &dispatchService{
		incidents:        incidents,
		users:            users,
		alerts:           alerts,
		bus:              bus,
		logger:           logger,
		dispatchRadiusKm: dispatchRadiusKm,
		defaultRadiusKm:  defaultRadiusKm,
		trackBaseURL:     trackBaseURL,
	}
}

// CreateIncident runs the dispatch pipeline: score, persist, locate and
// filter responders, alert the emergency contact, broadcast. Only the
// persistence step is fatal; an SOS must go through even when every
// downstream integration is degraded.
func (s *dispatchService) CreateIncident(ctx context.Context, userID uuid.UUID, req domain.CreateIncidentRequest) (*domain.Incident, error) {
	reporter, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if reporter.IsSuspended {
		return nil, fmt.Errorf("dispatch.CreateIncident: %w", e.ErrSuspended)
	}

	score := CalculatePriority(req.Type, req.BloodGroup, reporter.MedicalHistory)

	inc := &domain.Incident{
		UserID:        userID,
		Type:          req.Type,
		BloodGroup:    req.BloodGroup,
		ContactNumber: reporter.Phone,
		Description:   req.Description,
		Lat:           req.Lat,
		Lng:           req.Lng,
		Status:        domain.IncidentActive,
		PriorityScore: score,
	}
	if err := s.incidents.Create(ctx, inc); err != nil {
		s.logger.Error("incident persist failed", slog.Any("error", err))
		return nil, err
	}

	s.logger.Info("incident created",
		slog.String("id", inc.ID.String()),
		slog.String("type", string(inc.Type)),
		slog.Int("priority", score),
	)

	// Responder lookup is best-effort: a dead geo index must not kill
	// the alert.
	if candidates, err := s.users.FindNearby(ctx, req.Lat, req.Lng, s.dispatchRadiusKm); err != nil {
		s.logger.Error("responder lookup failed (non-fatal)", slog.Any("error", err),
			slog.String("incident_id", inc.ID.String()))
	} else {
		eligible := FilterEligible(candidates, req.BloodGroup)
		s.logger.Info("responders located",
			slog.String("incident_id", inc.ID.String()),
			slog.Int("nearby", len(candidates)),
			slog.Int("eligible", len(eligible)),
		)
	}

	if reporter.EmergencyContact != "" {
		payload := domain.AlertPayload{
			IncidentID: inc.ID,
			Contact:    reporter.EmergencyContact,
			Patient:    reporter.Name,
			Type:       string(inc.Type),
			TrackLink:  fmt.Sprintf("%s/%s", s.trackBaseURL, inc.ID),
		}
		if err := s.alerts.Enqueue(ctx, payload); err != nil {
			s.logger.Error("alert enqueue failed (non-fatal)", slog.Any("error", err))
		}
	}

	populated, err := s.incidents.GetPopulated(ctx, inc.ID)
	if err != nil {
		// The incident is durable; reading it back is only needed for
		// the broadcast payload.
		s.logger.Error("populate after create failed (non-fatal)", slog.Any("error", err))
		return inc, nil
	}

	s.bus.Publish(domain.EventNewSOS, populated)

	return populated, nil
}

func (s *dispatchService) ListActive(ctx context.Context) ([]*domain.Incident, error) {
	return s.incidents.ListActive(ctx)
}

// Respond appends the acknowledging user to the incident. The append is
// atomic at the storage layer, so repeat calls from the same user are
// no-ops and concurrent calls from different users both land.
func (s *dispatchService) Respond(ctx context.Context, incidentID, userID uuid.UUID) (*domain.Incident, error) {
	added, err := s.incidents.AddResponder(ctx, incidentID, userID)
	if err != nil {
		return nil, err
	}

	var responderName string
	if added {
		responder, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		responderName = responder.Name

		details := fmt.Sprintf("%s (%s) accepted the request.", responder.Name, responder.Role)
		if err := s.incidents.AppendTimeline(ctx, incidentID, "acknowledged", details); err != nil {
			s.logger.Error("timeline append failed (non-fatal)", slog.Any("error", err),
				slog.String("incident_id", incidentID.String()))
		}
	}

	populated, err := s.incidents.GetPopulated(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	if added {
		s.bus.Publish(domain.EventSOSResponse, domain.SOSResponseEvent{
			IncidentID: incidentID,
			Responder:  responderName,
		})
		s.bus.Publish(domain.EventTimelineUpdate, domain.TimelineUpdateEvent{
			IncidentID: incidentID,
			Timeline:   populated.Timeline,
		})
	}

	return populated, nil
}

func (s *dispatchService) Resolve(ctx context.Context, incidentID, userID uuid.UUID) (*domain.Incident, error) {
	return s.transition(ctx, incidentID, userID, domain.IncidentResolved, "resolved", "Incident marked resolved.", nil)
}

func (s *dispatchService) Cancel(ctx context.Context, incidentID, userID uuid.UUID, req domain.CancelIncidentRequest) (*domain.Incident, error) {
	details := req.Details
	if details == "" {
		details = "Incident cancelled by reporter."
	}
	var after func(context.Context, *domain.Incident) error
	if req.FalseAlarm {
		after = func(ctx context.Context, inc *domain.Incident) error {
			if err := s.incidents.SetFalseAlarm(ctx, inc.ID); err != nil {
				return err
			}
			return s.users.FlagFalseAlarm(ctx, inc.UserID)
		}
	}
	return s.transition(ctx, incidentID, userID, domain.IncidentCancelled, "cancelled", details, after)
}

// transition applies active -> terminal. Any other move reports conflict
// from the storage layer.
func (s *dispatchService) transition(
	ctx context.Context,
	incidentID, userID uuid.UUID,
	to domain.IncidentStatus,
	status, details string,
	after func(context.Context, *domain.Incident) error,
) (*domain.Incident, error) {
	if err := s.incidents.UpdateStatus(ctx, incidentID, domain.IncidentActive, to); err != nil {
		return nil, err
	}
	if err := s.incidents.AppendTimeline(ctx, incidentID, status, details); err != nil {
		s.logger.Error("timeline append failed (non-fatal)", slog.Any("error", err),
			slog.String("incident_id", incidentID.String()))
	}

	populated, err := s.incidents.GetPopulated(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	if after != nil {
		if err := after(ctx, populated); err != nil {
			s.logger.Error("post-transition hook failed (non-fatal)", slog.Any("error", err),
				slog.String("incident_id", incidentID.String()))
		}
	}

	s.bus.Publish(domain.EventTimelineUpdate, domain.TimelineUpdateEvent{
		IncidentID: incidentID,
		Timeline:   populated.Timeline,
	})

	return populated, nil
}

func (s *dispatchService) FindResponders(ctx context.Context, req domain.NearbyRespondersRequest) ([]domain.ResponderCandidate, error) {
	radius := req.RadiusKM
	if radius <= 0 {
		radius = s.defaultRadiusKm
	}
	candidates, err := s.users.FindNearby(ctx, req.Lat, req.Lng, radius)
	if err != nil {
		return nil, err
	}
	return FilterEligible(candidates, req.BloodGroup), nil
}
