package postgres

import (
	"context"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"

	"github.com/google/uuid"
)

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

func (p *Postgres) Incidents() IncidentRepository  { return p.Incident }
func (p *Postgres) Users() UserRepository          { return p.User }
func (p *Postgres) Analytics() AnalyticsRepository { return p.Analytic }
