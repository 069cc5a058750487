package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const refreshTokenSubject = "refresh"

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, user *models.User) error
	SetRefreshToken(ctx context.Context, userID string, token *string) error
	SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	SignupKey          string
	ResetTokenTTL      time.Duration
	ExposeResetToken   bool
}

// AuthService provides sign-up, login and password reset use cases.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config, now: func() time.Time { return time.Now().UTC() }}
}

// Signup registers a user. The first user must be an Admin; afterwards
// Admins can only be created by an authenticated Admin and other roles need
// the signup key. actor is nil for anonymous requests.
func (s *AuthService) Signup(ctx context.Context, req dto.SignupRequest, actor *models.JWTClaims) (*models.UserSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid signup payload")
	}
	role := models.UserRole(req.Role)

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to count users")
	}
	switch {
	case count == 0:
		if role != models.RoleAdmin {
			return nil, appErrors.WithField(appErrors.ErrInvalidInput, "role", "the first user must be an Admin")
		}
	case role == models.RoleAdmin:
		if actor == nil || actor.Role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only an Admin can create Admin accounts")
		}
	default:
		if s.config.SignupKey == "" || req.SignupKey != s.config.SignupKey {
			return nil, appErrors.WithField(appErrors.ErrUnauthorized, "signupKey", "invalid signup key")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, appErrors.WithField(appErrors.ErrConflict, "email", "email already in use")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	summary := user.Summary()
	return &summary, nil
}

// Login authenticates a user and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return pair, nil
}

// Refresh exchanges the stored refresh token for a new pair and rotates it.
func (s *AuthService) Refresh(ctx context.Context, req dto.RefreshRequest) (*models.TokenPair, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid refresh payload")
	}
	if _, err := s.parseToken(req.RefreshToken, refreshTokenSubject); err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
	}

	user, err := s.repo.FindByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
		}
		return nil, appErrors.Internal(err, "failed to fetch refresh token")
	}
	return s.issueTokens(ctx, user)
}

// RequestPasswordReset stores a one hour reset token for the user.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req dto.RequestResetRequest) (*dto.RequestResetResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidInput(err, "invalid reset request payload")
	}

	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("user")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}

	token, err := randomHex(10)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to generate reset token")
	}
	expiry := s.now().Add(s.config.ResetTokenTTL)
	if err := s.repo.SetResetToken(ctx, user.ID, token, expiry); err != nil {
		return nil, appErrors.Internal(err, "failed to store reset token")
	}

	s.logger.Info("password reset requested", zap.String("user_id", user.ID))
	resp := &dto.RequestResetResponse{Message: "password reset token issued"}
	if s.config.ExposeResetToken {
		resp.ResetToken = token
		resp.ExpiresAt = &expiry
	}
	return resp, nil
}

// ResetPassword consumes an unexpired reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return invalidInput(err, "invalid reset password payload")
	}

	invalid := appErrors.WithField(appErrors.ErrInvalidInput, "token", "invalid or expired reset token")
	user, err := s.repo.FindByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invalid
		}
		return appErrors.Internal(err, "failed to fetch reset token")
	}
	if user.ResetTokenExpiry == nil || !user.ResetTokenExpiry.After(s.now()) {
		return invalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Internal(err, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, nil); err != nil {
		s.logger.Warn("failed to revoke refresh token after password reset", zap.Error(err))
	}

	s.logger.Info("password reset completed", zap.String("user_id", user.ID))
	return nil
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	return findEntity(ctx, "user", userID, s.repo.FindByID)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims, err := s.parseToken(tokenString, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if claims.Subject == refreshTokenSubject {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh tokens cannot authenticate requests")
	}
	return claims, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	issuedAt := s.now()
	accessToken, err := s.sign(user, "", issuedAt, s.config.AccessTokenExpiry)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create access token")
	}
	refreshToken, err := s.sign(user, refreshTokenSubject, issuedAt, s.config.RefreshTokenExpiry)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create refresh token")
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, appErrors.Internal(err, "failed to persist refresh token")
	}
	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     issuedAt,
		User:         user.Summary(),
	}, nil
}

// sign issues an HS256 token. Access tokens use the user id as subject;
// refresh tokens use refreshTokenSubject and a unique id so every rotation
// differs.
func (s *AuthService) sign(user *models.User, subject string, issuedAt time.Time, ttl time.Duration) (string, error) {
	if subject == "" {
		subject = user.ID
	}
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func (s *AuthService) parseToken(tokenString, subject string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if subject != "" {
		opts = append(opts, jwt.WithSubject(subject))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
