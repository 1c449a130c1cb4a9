package service

import (
	"context"
	"fmt"
	"html"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/feeds"
	"github.com/reshetovitsme/channel-posts/internal/modules/feed/domain"
	postDomain "github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
	"github.com/samber/oops"
)

// Service handles RSS/Atom feed generation from the persisted posts
type Service struct {
	posts postRepo.Repository
	cfg   domain.FeedConfig
}

// New creates a new feed service
func New(posts postRepo.Repository, cfg domain.FeedConfig) *Service {
	if cfg.Title == "" {
		cfg.Title = "Channel Posts"
	}
	return &Service{
		posts: posts,
		cfg:   cfg,
	}
}

// GenerateFeed builds a feed of the persisted posts. baseURL is used when no
// site URL is configured.
func (s *Service) GenerateFeed(ctx context.Context, baseURL string) (*feeds.Feed, error) {
	posts, err := s.posts.GetPosts(ctx)
	if err != nil {
		return nil, oops.With("context", "failed to get posts").Wrap(err)
	}

	base := strings.TrimRight(s.cfg.SiteURL, "/")
	if base == "" {
		base = strings.TrimRight(baseURL, "/")
	}

	description := s.cfg.Description
	if description == "" {
		description = fmt.Sprintf("Latest posts from %s", s.cfg.Title)
	}

	feed := &feeds.Feed{
		Title:       s.cfg.Title,
		Link:        &feeds.Link{Href: base + "/"},
		Description: description,
		Id:          base + "/posts.json",
	}
	if len(posts) > 0 {
		feed.Created = posts[0].Timestamp
		feed.Updated = posts[0].Timestamp
	}

	feed.Items = make([]*feeds.Item, 0, len(posts))
	for _, post := range posts {
		feed.Items = append(feed.Items, s.postToFeedItem(post, base))
	}

	return feed, nil
}

// RSS renders the feed as RSS 2.0
func (s *Service) RSS(ctx context.Context, baseURL string) (string, error) {
	feed, err := s.GenerateFeed(ctx, baseURL)
	if err != nil {
		return "", err
	}
	out, err := feed.ToRss()
	if err != nil {
		return "", oops.With("context", "failed to render rss").Wrap(err)
	}
	return out, nil
}

// Atom renders the feed as Atom 1.0
func (s *Service) Atom(ctx context.Context, baseURL string) (string, error) {
	feed, err := s.GenerateFeed(ctx, baseURL)
	if err != nil {
		return "", err
	}
	out, err := feed.ToAtom()
	if err != nil {
		return "", oops.With("context", "failed to render atom").Wrap(err)
	}
	return out, nil
}

func (s *Service) postToFeedItem(post postDomain.Post, base string) *feeds.Item {
	// Post content is already escaped for HTML
	content := "<p>" + strings.ReplaceAll(post.Content, "\n", "<br>") + "</p>"

	item := &feeds.Item{
		Title:       html.UnescapeString(post.Title),
		Link:        &feeds.Link{Href: post.Link},
		Description: html.UnescapeString(post.Content),
		Content:     content,
		Created:     post.Timestamp,
		Id:          post.ID,
	}

	if post.HasMedia() && post.MediaRef != s.cfg.Placeholder {
		mediaURL := base + "/" + strings.TrimLeft(post.MediaRef, "/")
		item.Enclosure = &feeds.Enclosure{
			Url:    mediaURL,
			Type:   mimeType(post.MediaKind),
			Length: s.mediaLength(post.MediaRef),
		}
		if post.MediaKind == postDomain.MediaKindImage {
			item.Content = fmt.Sprintf(`<p><img src="%s" alt=""></p>`, html.EscapeString(mediaURL)) + content
		}
	}

	return item
}

func (s *Service) mediaLength(ref string) string {
	if s.cfg.MediaDir == "" {
		return "0"
	}
	info, err := os.Stat(filepath.Join(s.cfg.MediaDir, path.Base(ref)))
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(info.Size(), 10)
}

func mimeType(kind postDomain.MediaKind) string {
	switch kind {
	case postDomain.MediaKindImage:
		return "image/jpeg"
	case postDomain.MediaKindVideo:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
