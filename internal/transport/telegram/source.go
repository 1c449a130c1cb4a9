package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/goccy/go-json"
	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	updatesLimit = 100
	maxBodyBytes = 16 << 20
)

const allowedUpdates = `["channel_post","edited_channel_post"]`

// Config holds the Telegram connection settings
type Config struct {
	Token     string
	APIURL    string
	ChannelID int64
}

// Source reads channel posts through the Bot API
type Source struct {
	cfg    Config
	client *http.Client
	bot    *bot.Bot
	logger *slog.Logger
}

type updatesResponse struct {
	OK          bool            `json:"ok"`
	Result      []models.Update `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// NewSource creates a channel source. No request is made until the first call.
func NewSource(cfg Config, client *http.Client, logger *slog.Logger) (*Source, error) {
	if cfg.Token == "" {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, apperrors.ErrMissingBotToken)
	}
	if cfg.ChannelID == 0 {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, apperrors.ErrMissingChannelID)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	b, err := bot.New(cfg.Token, bot.WithServerURL(cfg.APIURL), bot.WithSkipGetMe())
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, oops.With("context", "failed to create telegram bot").Wrap(err))
	}

	return &Source{
		cfg:    cfg,
		client: client,
		bot:    b,
		logger: logger,
	}, nil
}

// ListMessages returns the pending channel posts of the configured chat dated
// at or after since. Updates are not acknowledged, so repeated calls see the
// same posts until Telegram expires them. An edited post replaces its earlier
// version.
//
// Only the oldest updatesLimit pending updates are read. Requesting the next
// page needs an offset, and Telegram drops every update below that offset.
func (s *Source) ListMessages(ctx context.Context, since time.Time) ([]domain.RawMessage, error) {
	updates, err := s.getUpdates(ctx)
	if err != nil {
		return nil, apperrors.Mark(apperrors.ErrSourceAccess, err)
	}
	if len(updates) >= updatesLimit {
		s.logger.Warn("Update queue truncated, newer posts are not visible",
			"limit", updatesLimit,
			"first_update_id", updates[0].ID,
			"last_update_id", updates[len(updates)-1].ID,
			"channel_id", s.cfg.ChannelID,
		)
	}

	messages := make([]domain.RawMessage, 0, len(updates))
	index := make(map[int64]int, len(updates))
	for _, u := range updates {
		m := u.ChannelPost
		if m == nil {
			m = u.EditedChannelPost
		}
		if m == nil || m.Chat.ID != s.cfg.ChannelID {
			continue
		}

		raw := toRawMessage(m)
		if raw.Date.Before(since) {
			continue
		}
		if i, ok := index[raw.ID]; ok {
			messages[i] = raw
			continue
		}
		index[raw.ID] = len(messages)
		messages = append(messages, raw)
	}

	s.logger.Debug("Channel updates fetched", "updates", len(updates), "messages", len(messages), "channel_id", s.cfg.ChannelID)
	return messages, nil
}

// ResolveFileURL resolves a file id into a download link
func (s *Source) ResolveFileURL(ctx context.Context, fileID string) (string, error) {
	f, err := s.bot.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", oops.With("file_id", fileID, "context", "getFile failed").Wrap(err)
	}
	if f == nil || f.FilePath == "" {
		return "", oops.With("file_id", fileID).Errorf("file has no download path")
	}
	return s.bot.FileDownloadLink(f), nil
}

func (s *Source) getUpdates(ctx context.Context) ([]models.Update, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprint(updatesLimit))
	query.Set("allowed_updates", allowedUpdates)
	endpoint := s.cfg.APIURL + "/bot" + s.cfg.Token + "/getUpdates?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, oops.With("context", "failed to build getUpdates request").Wrap(redact(err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, oops.With("context", "getUpdates request failed").Wrap(redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, oops.With("status", resp.StatusCode, "context", "failed to read getUpdates response").Wrap(err)
	}

	var payload updatesResponse
	decodeErr := json.Unmarshal(body, &payload)

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, oops.With("status", resp.StatusCode, "description", payload.Description).Errorf("telegram rejected the bot credentials")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, oops.With("status", resp.StatusCode, "description", payload.Description).Errorf("telegram rate limit exceeded")
	case resp.StatusCode != http.StatusOK:
		return nil, oops.With("status", resp.StatusCode, "description", payload.Description).Errorf("unexpected getUpdates status %d", resp.StatusCode)
	case decodeErr != nil:
		return nil, oops.With("context", "failed to decode getUpdates response").Wrap(decodeErr)
	case !payload.OK:
		return nil, oops.With("error_code", payload.ErrorCode, "description", payload.Description).Errorf("getUpdates returned an error")
	}

	return payload.Result, nil
}

func toRawMessage(m *models.Message) domain.RawMessage {
	raw := domain.RawMessage{
		ID:           int64(m.ID),
		Text:         m.Text,
		Caption:      m.Caption,
		Date:         time.Unix(int64(m.Date), 0).UTC(),
		ChatID:       m.Chat.ID,
		ChatUsername: m.Chat.Username,
		Photos: lo.Map(m.Photo, func(p models.PhotoSize, _ int) domain.Photo {
			return domain.Photo{
				FileID:       p.FileID,
				FileUniqueID: p.FileUniqueID,
				Width:        p.Width,
				Height:       p.Height,
				FileSize:     int(p.FileSize),
			}
		}),
	}
	if m.Video != nil {
		raw.Video = &domain.MediaFile{
			FileID:       m.Video.FileID,
			FileUniqueID: m.Video.FileUniqueID,
			MimeType:     m.Video.MimeType,
			FileSize:     int64(m.Video.FileSize),
		}
	}
	if m.Document != nil {
		raw.Document = &domain.MediaFile{
			FileID:       m.Document.FileID,
			FileUniqueID: m.Document.FileUniqueID,
			MimeType:     m.Document.MimeType,
			FileSize:     int64(m.Document.FileSize),
		}
	}
	return raw
}

// redact drops the request URL, which carries the bot token, from client errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
