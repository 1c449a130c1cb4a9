//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// MediaKind represents the kind of media attached to a post
// ENUM(none,image,video)
type MediaKind string

// Extension returns the file extension used for stored media of this kind.
func (x MediaKind) Extension() string {
	switch x {
	case MediaKindImage:
		return "jpg"
	case MediaKindVideo:
		return "mp4"
	default:
		return ""
	}
}
