package repository

import (
	"context"

	"github.com/reshetovitsme/channel-posts/internal/modules/run/domain"
)

// Repository defines the interface for run history storage
type Repository interface {
	Save(ctx context.Context, run *domain.Run) error
	Recent(ctx context.Context, limit int) ([]domain.Run, error)
	Close() error
}
