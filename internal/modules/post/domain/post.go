package domain

import "time"

const (
	MaxContentLength = 1000
	MaxTitleLength   = 50
	DefaultMaxPosts  = 10
	UntitledPost     = "Untitled Post"
)

// Post is the normalized record persisted for the static site. Field order is
// the on-disk field order.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	MediaRef  string    `json:"media_ref"`
	MediaKind MediaKind `json:"media_kind"`
	Link      string    `json:"link"`
	Timestamp time.Time `json:"timestamp"`
}

// HasMedia reports whether the post references downloaded media rather than
// the placeholder.
func (p *Post) HasMedia() bool {
	return p.MediaKind == MediaKindImage || p.MediaKind == MediaKindVideo
}
