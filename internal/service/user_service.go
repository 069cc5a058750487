package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type userLister interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
}

// UserService exposes directory listings.
type UserService struct {
	repo   userLister
	logger *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userLister, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns users, optionally restricted to one role.
func (s *UserService) List(ctx context.Context, role string) ([]models.User, error) {
	filter := models.UserFilter{}
	if role != "" {
		r := models.UserRole(role)
		if !r.Valid() {
			return nil, appErrors.WithField(appErrors.ErrInvalidInput, "role", "role must be Admin, Teacher or Student")
		}
		filter.Role = &r
	}
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list users")
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}
