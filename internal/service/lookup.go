package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type unitReader interface {
	FindByID(ctx context.Context, id string) (*models.Unit, error)
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// findEntity loads one record by id, reporting malformed or unknown ids as
// NOT_FOUND for entity and store failures as INTERNAL_ERROR.
func findEntity[T any](ctx context.Context, entity, id string, find func(context.Context, string) (*T, error)) (*T, error) {
	if !isUUID(id) {
		return nil, notFound(entity)
	}
	record, err := find(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(entity)
		}
		return nil, appErrors.Internal(err, "failed to load "+entity)
	}
	return record, nil
}

// findUserWithRole loads a user and checks its role; entity names both the
// missing record and the expected role in errors.
func findUserWithRole(ctx context.Context, users userReader, entity, id string, role models.UserRole) (*models.User, error) {
	user, err := findEntity(ctx, entity, id, users.FindByID)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, invalidRole(entity)
	}
	return user, nil
}
