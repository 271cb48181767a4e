package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IncidentRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewIncidentRepo(pool *pgxpool.Pool, logger *slog.Logger) *IncidentRepo {
	return &IncidentRepo{pool: pool, logger: logger}
}

// Create persists the incident and its initial timeline entry in one
// transaction, so a half-created SOS never becomes visible.
func (p *IncidentRepo) Create(ctx context.Context, incident *domain.Incident) error {
	const op = "postgres.Incident.Create"

	if incident.Lat < -90 || incident.Lat > 90 || incident.Lng < -180 || incident.Lng > 180 {
		return fmt.Errorf("%s: %w", op, e.ErrInvalidCoordinates)
	}
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}
	if incident.Status == "" {
		incident.Status = domain.IncidentActive
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.logger.Error("tx begin failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	defer tx.Rollback(ctx)

	const insertIncident = `
		INSERT INTO incidents (id, user_id, type, blood_group, contact_number, description,
		                       geo_point, status, priority_score, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6,
		        ST_SetSRID(ST_MakePoint($7, $8), 4326), $9, $10, $11)
	`
	_, err = tx.Exec(ctx, insertIncident,
		incident.ID,
		incident.UserID,
		incident.Type,
		incident.BloodGroup,
		incident.ContactNumber,
		incident.Description,
		incident.Lng,
		incident.Lat,
		incident.Status,
		incident.PriorityScore,
		incident.CreatedAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}

	const insertTimeline = `
		INSERT INTO incident_timeline (incident_id, status, details, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, insertTimeline,
		incident.ID, "created", "Emergency Alert Raised", incident.CreatedAt,
	); err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		p.logger.Error("tx commit failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}

	incident.Timeline = []domain.TimelineEvent{
		{Status: "created", Details: "Emergency Alert Raised", CreatedAt: incident.CreatedAt},
	}
	return nil
}

// GetPopulated loads the incident together with the reporter's public
// fields, the full timeline and the responder roster.
func (p *IncidentRepo) GetPopulated(ctx context.Context, id uuid.UUID) (*domain.Incident, error) {
	const op = "postgres.Incident.GetPopulated"

	const query = `
		SELECT i.id, i.user_id, i.type,
		       COALESCE(i.blood_group, ''), COALESCE(i.contact_number, ''), COALESCE(i.description, ''),
		       ST_Y(i.geo_point::geometry) AS lat,
		       ST_X(i.geo_point::geometry) AS lng,
		       i.status, i.priority_score, i.is_false_alarm, i.created_at,
		       u.name, u.phone, COALESCE(u.profile_image, '')
		FROM incidents i
		JOIN users u ON u.id = i.user_id
		WHERE i.id = $1
	`

	var inc domain.Incident
	var reporter domain.PublicProfile
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&inc.ID,
		&inc.UserID,
		&inc.Type,
		&inc.BloodGroup,
		&inc.ContactNumber,
		&inc.Description,
		&inc.Lat,
		&inc.Lng,
		&inc.Status,
		&inc.PriorityScore,
		&inc.IsFalseAlarm,
		&inc.CreatedAt,
		&reporter.Name,
		&reporter.Phone,
		&reporter.ProfileImage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return nil, e.WrapError(ctx, op, err)
	}
	reporter.ID = inc.UserID
	inc.Reporter = &reporter

	timeline, err := p.timeline(ctx, id)
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	inc.Timeline = timeline

	responders, err := p.responders(ctx, id)
	if err != nil {
		return nil, e.WrapError(ctx, op, err)
	}
	inc.Responders = responders

	return &inc, nil
}

func (p *IncidentRepo) timeline(ctx context.Context, incidentID uuid.UUID) ([]domain.TimelineEvent, error) {
	const query = `
		SELECT status, COALESCE(details, ''), created_at
		FROM incident_timeline
		WHERE incident_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := p.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.TimelineEvent, 0, 4)
	for rows.Next() {
		var ev domain.TimelineEvent
		if err := rows.Scan(&ev.Status, &ev.Details, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (p *IncidentRepo) responders(ctx context.Context, incidentID uuid.UUID) ([]domain.Responder, error) {
	const query = `
		SELECT r.user_id, u.name, u.role, u.phone, r.status, r.updated_at
		FROM incident_responders r
		JOIN users u ON u.id = r.user_id
		WHERE r.incident_id = $1
		ORDER BY r.updated_at ASC
	`
	rows, err := p.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responders []domain.Responder
	for rows.Next() {
		var r domain.Responder
		if err := rows.Scan(&r.UserID, &r.Name, &r.Role, &r.Phone, &r.Status, &r.UpdatedAt); err != nil {
			return nil, err
		}
		responders = append(responders, r)
	}
	return responders, rows.Err()
}

func (p *IncidentRepo) ListActive(ctx context.Context) ([]*domain.Incident, error) {
	const op = "postgres.Incident.ListActive"

	const query = `
		SELECT i.id, i.user_id, i.type,
		       COALESCE(i.blood_group, ''), COALESCE(i.description, ''),
		       ST_Y(i.geo_point::geometry) AS lat,
		       ST_X(i.geo_point::geometry) AS lng,
		       i.status, i.priority_score, i.created_at,
		       u.name, u.phone, COALESCE(u.profile_image, '')
		FROM incidents i
		JOIN users u ON u.id = i.user_id
		WHERE i.status = 'active'
		ORDER BY i.created_at DESC
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	incidents := make([]*domain.Incident, 0, 8)
	for rows.Next() {
		var inc domain.Incident
		var reporter domain.PublicProfile
		if err := rows.Scan(
			&inc.ID,
			&inc.UserID,
			&inc.Type,
			&inc.BloodGroup,
			&inc.Description,
			&inc.Lat,
			&inc.Lng,
			&inc.Status,
			&inc.PriorityScore,
			&inc.CreatedAt,
			&reporter.Name,
			&reporter.Phone,
			&reporter.ProfileImage,
		); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		reporter.ID = inc.UserID
		inc.Reporter = &reporter
		incidents = append(incidents, &inc)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return incidents, nil
}

// AddResponder records the acknowledgement with a single conditional
// insert. Two concurrent acknowledgements from different users both land;
// a repeat from the same user is a no-op (returns false).
func (p *IncidentRepo) AddResponder(ctx context.Context, incidentID, userID uuid.UUID) (bool, error) {
	const op = "postgres.Incident.AddResponder"

	const exists = `SELECT 1 FROM incidents WHERE id = $1`
	var one int
	if err := p.pool.QueryRow(ctx, exists, incidentID).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow failed", slog.String("op", op), slog.Any("error", err))
		return false, e.WrapError(ctx, op, err)
	}

	const query = `
		INSERT INTO incident_responders (incident_id, user_id, status, updated_at)
		VALUES ($1, $2, 'accepted', $3)
		ON CONFLICT (incident_id, user_id) DO NOTHING
	`
	cmd, err := p.pool.Exec(ctx, query, incidentID, userID, time.Now().UTC())
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err),
			slog.String("incident_id", incidentID.String()),
			slog.String("user_id", userID.String()),
		)
		return false, e.WrapError(ctx, op, err)
	}

	return cmd.RowsAffected() > 0, nil
}

func (p *IncidentRepo) AppendTimeline(ctx context.Context, incidentID uuid.UUID, status, details string) error {
	const op = "postgres.Incident.AppendTimeline"

	const query = `
		INSERT INTO incident_timeline (incident_id, status, details, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := p.pool.Exec(ctx, query, incidentID, status, details, time.Now().UTC()); err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err),
			slog.String("incident_id", incidentID.String()))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

// UpdateStatus performs the guarded transition from -> to. Transitions out
// of a terminal state affect zero rows and report conflict.
func (p *IncidentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.IncidentStatus) error {
	const op = "postgres.Incident.UpdateStatus"

	const query = `
		UPDATE incidents
		SET status = $3
		WHERE id = $1 AND status = $2
	`
	cmd, err := p.pool.Exec(ctx, query, id, from, to)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		const exists = `SELECT 1 FROM incidents WHERE id = $1`
		var one int
		if err := p.pool.QueryRow(ctx, exists, id).Scan(&one); errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, e.ErrConflict)
	}
	return nil
}

func (p *IncidentRepo) SetFalseAlarm(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.Incident.SetFalseAlarm"

	const query = `UPDATE incidents SET is_false_alarm = TRUE WHERE id = $1`
	cmd, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return nil
}
