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

type UserRepo struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewUserRepo(pool *pgxpool.Pool, logger *slog.Logger) *UserRepo {
	return &UserRepo{pool: pool, logger: logger}
}

const userColumns = `
	id, name, email, password_hash, phone, role,
	ST_Y(geo_point::geometry) AS lat,
	ST_X(geo_point::geometry) AS lng,
	COALESCE(profile_image, ''),
	COALESCE(blood_group, ''),
	COALESCE(medical_history, ''),
	COALESCE(emergency_contact, ''),
	false_alarm_count, is_suspended, created_at
`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Phone,
		&u.Role,
		&u.Lat,
		&u.Lng,
		&u.ProfileImage,
		&u.BloodGroup,
		&u.MedicalHistory,
		&u.EmergencyContact,
		&u.FalseAlarmCount,
		&u.IsSuspended,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *UserRepo) Create(ctx context.Context, user *domain.User) error {
	const op = "postgres.User.Create"

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}

	const query = `
		INSERT INTO users (id, name, email, password_hash, phone, role, geo_point,
		                   profile_image, blood_group, created_at)
		VALUES ($1, $2, $3, $4, $5, $6,
		        ST_SetSRID(ST_MakePoint($7, $8), 4326),
		        $9, NULLIF($10, ''), $11)
	`
	_, err := p.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Phone,
		user.Role,
		user.Lng,
		user.Lat,
		user.ProfileImage,
		user.BloodGroup,
		user.CreatedAt,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err))
		return e.WrapError(ctx, op, err)
	}
	return nil
}

func (p *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "postgres.User.GetByID"

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return nil, e.WrapError(ctx, op, err)
	}
	return u, nil
}

func (p *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const op = "postgres.User.GetByEmail"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(p.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
		}
		p.logger.Error("db queryrow scan failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	return u, nil
}

func (p *UserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, req domain.UpdateProfileRequest) (*domain.User, error) {
	const op = "postgres.User.UpdateProfile"

	u, err := p.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Lat != nil {
		u.Lat = *req.Lat
	}
	if req.Lng != nil {
		u.Lng = *req.Lng
	}
	if req.BloodGroup != nil {
		u.BloodGroup = *req.BloodGroup
	}
	if req.MedicalHistory != nil {
		u.MedicalHistory = *req.MedicalHistory
	}
	if req.EmergencyContact != nil {
		u.EmergencyContact = *req.EmergencyContact
	}
	if req.ProfileImage != nil {
		u.ProfileImage = *req.ProfileImage
	}

	const query = `
		UPDATE users
		SET name = $2,
		    phone = $3,
		    geo_point = ST_SetSRID(ST_MakePoint($4, $5), 4326),
		    blood_group = NULLIF($6, ''),
		    medical_history = NULLIF($7, ''),
		    emergency_contact = NULLIF($8, ''),
		    profile_image = $9
		WHERE id = $1
	`
	cmd, err := p.pool.Exec(ctx, query,
		u.ID, u.Name, u.Phone, u.Lng, u.Lat,
		u.BloodGroup, u.MedicalHistory, u.EmergencyContact, u.ProfileImage,
	)
	if err != nil {
		p.logger.Error("db exec failed", slog.String("op", op), slog.Any("error", err), slog.String("id", id.String()))
		return nil, e.WrapError(ctx, op, err)
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	return u, nil
}

// FindNearby is the responder locator: hospital and donor users within
// radiusKm of the point, nearest first. Casting to geography keeps the
// distance in meters rather than degrees.
func (p *UserRepo) FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]domain.ResponderCandidate, error) {
	const op = "postgres.User.FindNearby"

	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || radiusKm <= 0 {
		return nil, fmt.Errorf("%s: %w", op, e.ErrInvalidInput)
	}

	const query = `
		SELECT id, name, phone, role, COALESCE(blood_group, ''),
		       ST_Y(geo_point::geometry) AS lat,
		       ST_X(geo_point::geometry) AS lng,
		       ST_Distance(
		         geo_point::geography,
		         ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography
		       ) / 1000.0 AS distance_km
		FROM users
		WHERE role IN ('hospital', 'donor')
		  AND NOT is_suspended
		  AND ST_DWithin(
		    geo_point::geography,
		    ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
		    $3 * 1000
		  )
		ORDER BY distance_km ASC
	`

	rows, err := p.pool.Query(ctx, query, lng, lat, radiusKm)
	if err != nil {
		p.logger.Error("db query failed", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}
	defer rows.Close()

	candidates := make([]domain.ResponderCandidate, 0, 8)
	for rows.Next() {
		var c domain.ResponderCandidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Role, &c.BloodGroup, &c.Lat, &c.Lng, &c.DistanceKM); err != nil {
			p.logger.Error("row scan failed", slog.String("op", op), slog.Any("error", err))
			return nil, e.WrapError(ctx, op, err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		p.logger.Error("rows err", slog.String("op", op), slog.Any("error", err))
		return nil, e.WrapError(ctx, op, err)
	}

	return candidates, nil
}

// FlagFalseAlarm bumps the reporter's false-alarm counter and suspends the
// account once it reaches three, in a single statement.
func (p *UserRepo) FlagFalseAlarm(ctx context.Context, id uuid.UUID) error {
	const op = "postgres.User.FlagFalseAlarm"

	const query = `
		UPDATE users
		SET false_alarm_count = false_alarm_count + 1,
		    is_suspended = (false_alarm_count + 1 >= 3)
		WHERE id = $1
	`
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
