package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/lo"
)

// Fetcher downloads the media behind a reference and returns the path posts
// should reference it by.
type Fetcher interface {
	Fetch(ctx context.Context, ref domain.MediaRef, kind domain.MediaKind) (string, error)
}

// Normalizer converts raw channel messages into posts
type Normalizer struct {
	fetcher         Fetcher
	placeholder     string
	channelUsername string
	logger          *slog.Logger
}

// NewNormalizer creates a normalizer. channelUsername, when set, takes
// precedence over the username carried by each message for link building.
func NewNormalizer(fetcher Fetcher, placeholder, channelUsername string, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		fetcher:         fetcher,
		placeholder:     placeholder,
		channelUsername: strings.TrimPrefix(channelUsername, "@"),
		logger:          logger,
	}
}

// Normalize always returns a usable post. A non-nil error is a recoverable
// media fetch failure; the post already carries the placeholder in that case.
func (n *Normalizer) Normalize(ctx context.Context, msg domain.RawMessage) (domain.Post, error) {
	content := Sanitize(msg.Body(), domain.MaxContentLength)

	username := n.channelUsername
	if username == "" {
		username = msg.ChatUsername
	}

	post := domain.Post{
		ID:        strconv.FormatInt(msg.ID, 10),
		Title:     Title(content, msg.Date),
		Content:   content,
		MediaRef:  n.placeholder,
		MediaKind: domain.MediaKindNone,
		Link:      Link(username, msg.ChatID, msg.ID),
		Timestamp: msg.Date.UTC(),
	}

	ref, kind, ok := SelectMedia(msg)
	if !ok {
		return post, nil
	}
	if n.fetcher == nil {
		return post, apperrors.Mark(apperrors.ErrMediaFetch, apperrors.ErrNoMedia)
	}

	path, err := n.fetcher.Fetch(ctx, ref, kind)
	if err != nil {
		n.logger.Warn("Media fetch failed, using placeholder",
			"message_id", msg.ID, "file_id", ref.FileID, "kind", kind, "error", err)
		return post, apperrors.Mark(apperrors.ErrMediaFetch, err)
	}
	if path == "" {
		return post, apperrors.Mark(apperrors.ErrMediaFetch, apperrors.ErrNoMedia)
	}

	post.MediaRef = path
	post.MediaKind = kind
	return post, nil
}

// SelectMedia picks at most one attachment: the largest photo variant, then a
// video, then a document carrying a video.
func SelectMedia(msg domain.RawMessage) (domain.MediaRef, domain.MediaKind, bool) {
	photos := lo.Filter(msg.Photos, func(p domain.Photo, _ int) bool {
		return p.FileID != ""
	})
	if len(photos) > 0 {
		photo := lo.MaxBy(photos, func(a, b domain.Photo) bool {
			return a.Width*a.Height > b.Width*b.Height
		})
		return domain.MediaRef{FileID: photo.FileID, UniqueID: photo.FileUniqueID}, domain.MediaKindImage, true
	}

	if msg.Video != nil && msg.Video.FileID != "" {
		return domain.MediaRef{FileID: msg.Video.FileID, UniqueID: msg.Video.FileUniqueID}, domain.MediaKindVideo, true
	}

	if msg.Document.IsVideoDocument() && msg.Document.FileID != "" {
		return domain.MediaRef{FileID: msg.Document.FileID, UniqueID: msg.Document.FileUniqueID}, domain.MediaKindVideo, true
	}

	return domain.MediaRef{}, domain.MediaKindNone, false
}

// Link builds the public t.me link of a channel message. Channels without a
// username get the private /c/ form keyed by the internal chat id.
func Link(username string, chatID, messageID int64) string {
	username = strings.TrimPrefix(username, "@")
	if username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", username, messageID)
	}
	internalID := strings.TrimPrefix(strconv.FormatInt(chatID, 10), "-100")
	internalID = strings.TrimPrefix(internalID, "-")
	return fmt.Sprintf("https://t.me/c/%s/%d", internalID, messageID)
}
