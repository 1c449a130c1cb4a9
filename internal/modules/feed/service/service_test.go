package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/reshetovitsme/channel-posts/internal/modules/feed/domain"
	postDomain "github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
)

const placeholder = "images/placeholder.png"

func newService(t *testing.T, siteURL string) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	mediaDir := filepath.Join(dir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mediaDir, "AQAD.jpg"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := postRepo.NewFileStorage(filepath.Join(dir, "posts.json"))
	ts := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	posts := []postDomain.Post{
		{ID: "42", Title: "Rates &lt;up&gt;", Content: "Rates &lt;up&gt; today", MediaRef: "media/AQAD.jpg", MediaKind: postDomain.MediaKindImage, Link: "https://t.me/news/42", Timestamp: ts},
		{ID: "41", Title: "Plain", Content: "Plain text", MediaRef: placeholder, MediaKind: postDomain.MediaKindNone, Link: "https://t.me/news/41", Timestamp: ts.Add(-time.Hour)},
	}
	if err := repo.SavePosts(context.Background(), posts); err != nil {
		t.Fatalf("seed posts: %v", err)
	}

	return New(repo, domain.FeedConfig{
		Title:       "News",
		SiteURL:     siteURL,
		MediaDir:    mediaDir,
		Placeholder: placeholder,
	}), dir
}

func TestRSS(t *testing.T) {
	svc, _ := newService(t, "https://example.org/")

	out, err := svc.RSS(context.Background(), "http://ignored")
	if err != nil {
		t.Fatalf("rss: %v", err)
	}

	feed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("parse rss: %v\n%s", err, out)
	}
	if feed.Title != "News" {
		t.Errorf("title = %q", feed.Title)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(feed.Items))
	}

	first := feed.Items[0]
	if first.Title != "Rates <up>" || first.Link != "https://t.me/news/42" {
		t.Errorf("first item = %q %q", first.Title, first.Link)
	}
	if len(first.Enclosures) != 1 {
		t.Fatalf("got %d enclosures, want 1", len(first.Enclosures))
	}
	enc := first.Enclosures[0]
	if enc.URL != "https://example.org/media/AQAD.jpg" || enc.Type != "image/jpeg" || enc.Length != "5" {
		t.Errorf("enclosure = %+v", enc)
	}
	if len(feed.Items[1].Enclosures) != 0 {
		t.Errorf("placeholder post has enclosure: %+v", feed.Items[1].Enclosures[0])
	}
}

func TestAtom_UsesRequestBaseURL(t *testing.T) {
	svc, _ := newService(t, "")

	out, err := svc.Atom(context.Background(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("atom: %v", err)
	}

	feed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("parse atom: %v\n%s", err, out)
	}
	if feed.FeedType != "atom" {
		t.Errorf("feed type = %q", feed.FeedType)
	}
	if len(feed.Items) != 2 || feed.Items[1].Title != "Plain" {
		t.Fatalf("items = %+v", feed.Items)
	}
	if !strings.Contains(out, "http://localhost:8080/media/AQAD.jpg") {
		t.Errorf("media link not built from request base URL:\n%s", out)
	}
}

func TestGenerateFeed_Empty(t *testing.T) {
	repo := postRepo.NewFileStorage(filepath.Join(t.TempDir(), "posts.json"))
	svc := New(repo, domain.FeedConfig{})

	feed, err := svc.GenerateFeed(context.Background(), "http://localhost")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if feed.Title != "Channel Posts" || len(feed.Items) != 0 {
		t.Errorf("feed = %+v", feed)
	}
}
