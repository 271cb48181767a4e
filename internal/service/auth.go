package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"log/slog"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/domain"
	"github.com/ShibagniBhattacharjee06/lifelinex/pkg/e"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type authService struct {
	users     UserRepository
	logger    *slog.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewAuthService(users UserRepository, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) AuthService {
	return &authService{
		users:     users,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (s *authService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	const op = "service.Auth.Register"

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}

	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Phone:        req.Phone,
		Role:         role,
		Lat:          req.Lat,
		Lng:          req.Lng,
		BloodGroup:   req.BloodGroup,
		ProfileImage: defaultAvatar(req.Name),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, e.ErrUniqueViolation) {
			return nil, fmt.Errorf("%s: %w", op, e.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("id", user.ID.String()),
		slog.String("role", string(user.Role)),
	)

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	const op = "service.Auth.Login"

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			// Same failure as a bad password so emails cannot be probed.
			return nil, fmt.Errorf("%s: %w", op, e.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, e.ErrUnauthorized)
	}

	return s.issue(user)
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *authService) UpdateProfile(ctx context.Context, userID uuid.UUID, req domain.UpdateProfileRequest) (*domain.User, error) {
	return s.users.UpdateProfile(ctx, userID, req)
}

func (s *authService) issue(user *domain.User) (*domain.AuthResponse, error) {
	const op = "service.Auth.issue"

	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		UserID: user.ID.String(),
		Role:   string(user.Role),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &domain.AuthResponse{User: *user, Token: token}, nil
}

// ParseToken validates a signed token and returns the subject user id.
func ParseToken(tokenString, secret string) (uuid.UUID, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, e.ErrUnauthorized
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, e.ErrUnauthorized
	}
	return id, nil
}

func defaultAvatar(name string) string {
	return "https://ui-avatars.com/api/?background=E63946&color=fff&name=" + url.QueryEscape(name)
}
