package repository

import (
	"context"

	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
)

// Repository defines the interface for the persisted post collection.
// SavePosts replaces the whole collection; readers never see a partial write.
type Repository interface {
	SavePosts(ctx context.Context, posts []domain.Post) error
	GetPosts(ctx context.Context) ([]domain.Post, error)
}
