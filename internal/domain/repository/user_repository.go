package repository

import (
	"context"

	"tutorlink/internal/domain/entity"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// GetMany skips ids that have no profile.
	GetMany(ctx context.Context, ids []string) ([]*entity.User, error)
}
