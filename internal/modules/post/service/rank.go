package service

import (
	"slices"

	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	"github.com/samber/lo"
)

// Rank orders posts most recent first, drops later duplicates of an id and
// caps the result at maxCount. Ties keep their input order, so the result is
// deterministic for a fixed input.
func Rank(posts []domain.Post, maxCount int) []domain.Post {
	sorted := slices.Clone(posts)
	slices.SortStableFunc(sorted, func(a, b domain.Post) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	ranked := lo.UniqBy(sorted, func(p domain.Post) string {
		return p.ID
	})

	if maxCount < 0 {
		maxCount = 0
	}
	if len(ranked) > maxCount {
		ranked = ranked[:maxCount]
	}
	return ranked
}
