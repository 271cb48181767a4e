package service

import (
	"context"
	"time"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"

	"github.com/google/uuid"
)

//go:generate mockgen -source=service.go -destination=mocks/mock.go

type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetPopulated(ctx context.Context, id uuid.UUID) (*domain.Incident, error)
	ListActive(ctx context.Context) ([]*domain.Incident, error)
	AddResponder(ctx context.Context, incidentID, userID uuid.UUID) (bool, error)
	AppendTimeline(ctx context.Context, incidentID uuid.UUID, status, details string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.IncidentStatus) error
	SetFalseAlarm(ctx context.Context, id uuid.UUID) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req domain.UpdateProfileRequest) (*domain.User, error)
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.ResponderCandidate, error)
	FlagFalseAlarm(ctx context.Context, id uuid.UUID) error
}

type AnalyticsRepository interface {
	Heatmap(ctx context.Context) ([]domain.HeatPoint, error)
	Stats(ctx context.Context) (*domain.AdminStats, error)
}

// Broadcaster is the injected realtime channel. Publishing never blocks
// and never fails the caller.
type Broadcaster interface {
	Publish(event string, payload any)
}

type AlertQueue interface {
	Enqueue(ctx context.Context, payload domain.AlertPayload) error
}

type HeatmapCache interface {
	Get(ctx context.Context) ([]domain.HeatPoint, error)
	Set(ctx context.Context, points []domain.HeatPoint, ttl time.Duration) error
}

type DispatchService interface {
	CreateIncident(ctx context.Context, userID uuid.UUID, req domain.CreateIncidentRequest) (*domain.Incident, error)
	ListActive(ctx context.Context) ([]*domain.Incident, error)
	Respond(ctx context.Context, incidentID, userID uuid.UUID) (*domain.Incident, error)
	Resolve(ctx context.Context, incidentID, userID uuid.UUID) (*domain.Incident, error)
	Cancel(ctx context.Context, incidentID, userID uuid.UUID, req domain.CancelIncidentRequest) (*domain.Incident, error)
	FindResponders(ctx context.Context, req domain.NearbyRespondersRequest) ([]domain.ResponderCandidate, error)
}

type AuthService interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req domain.UpdateProfileRequest) (*domain.User, error)
}

type AnalyticsService interface {
	Heatmap(ctx context.Context) ([]domain.HeatPoint, error)
	Stats(ctx context.Context) (*domain.AdminStats, error)
}

type Service struct {
	Dispatch  DispatchService
	Auth      AuthService
	Analytics AnalyticsService
}

func NewService(dispatch DispatchService, auth AuthService, analytics AnalyticsService) *Service {
	return &Service{
		Dispatch:  dispatch,
		Auth:      auth,
		Analytics: analytics,
	}
}
