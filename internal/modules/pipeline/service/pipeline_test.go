package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	postDomain "github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
	postService "github.com/reshetovitsme/channel-posts/internal/modules/post/service"
	runDomain "github.com/reshetovitsme/channel-posts/internal/modules/run/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
)

const placeholder = "images/placeholder.png"

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	messages []postDomain.RawMessage
	err      error
	since    time.Time
}

func (s *fakeSource) ListMessages(_ context.Context, since time.Time) ([]postDomain.RawMessage, error) {
	s.since = since
	return s.messages, s.err
}

type fakeFetcher struct {
	fail map[string]bool
}

func (f *fakeFetcher) Fetch(_ context.Context, ref postDomain.MediaRef, kind postDomain.MediaKind) (string, error) {
	if f.fail[ref.FileID] {
		return "", apperrors.Mark(apperrors.ErrMediaFetch, errors.New("download failed"))
	}
	return "media/" + ref.FileID + "." + kind.Extension(), nil
}

type failingRepo struct {
	saves int
}

func (r *failingRepo) SavePosts(context.Context, []postDomain.Post) error {
	r.saves++
	return apperrors.Mark(apperrors.ErrStorage, errors.New("disk full"))
}

func (r *failingRepo) GetPosts(context.Context) ([]postDomain.Post, error) {
	return nil, nil
}

type memoryHistory struct {
	mu     sync.Mutex
	states []runDomain.State
	last   runDomain.Run
}

func (h *memoryHistory) Save(_ context.Context, run *runDomain.Run) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, run.State)
	h.last = *run
	return nil
}

func (h *memoryHistory) Recent(context.Context, int) ([]runDomain.Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return []runDomain.Run{h.last}, nil
}

func (h *memoryHistory) Close() error { return nil }

func msg(id int64, age time.Duration, text string) postDomain.RawMessage {
	return postDomain.RawMessage{
		ID:           id,
		Text:         text,
		Date:         now.Add(-age),
		ChatID:       -1001234567890,
		ChatUsername: "newschannel",
	}
}

func defaultOptions() Options {
	return Options{
		Window:      48 * time.Hour,
		MaxPosts:    10,
		Concurrency: 4,
		Now:         func() time.Time { return now },
	}
}

func newPipeline(t *testing.T, source Source, repo postRepo.Repository, opts Options) (*Pipeline, *memoryHistory) {
	t.Helper()
	history := &memoryHistory{}
	normalizer := postService.NewNormalizer(&fakeFetcher{fail: map[string]bool{"broken": true}}, placeholder, "", nil)
	p, err := New(source, normalizer, repo, history, opts, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p, history
}

func TestRun_WindowAndOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	repo := postRepo.NewFileStorage(path)
	source := &fakeSource{messages: []postDomain.RawMessage{
		msg(1, 72*time.Hour, "too old"),
		msg(2, time.Hour, "an hour ago"),
		msg(3, 0, "just now"),
	}}
	p, history := newPipeline(t, source, repo, defaultOptions())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.State != runDomain.StateSucceeded {
		t.Errorf("state = %s", result.State)
	}
	if result.Fetched != 3 || result.Retained != 2 || result.Persisted != 2 {
		t.Errorf("counts = %+v", result)
	}
	if !source.since.Equal(now.Add(-48 * time.Hour)) {
		t.Errorf("since = %v", source.since)
	}

	posts, err := repo.GetPosts(context.Background())
	if err != nil {
		t.Fatalf("get posts: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "3" || posts[1].ID != "2" {
		t.Fatalf("posts = %+v", posts)
	}
	if posts[0].Link != "https://t.me/newschannel/3" || posts[0].MediaRef != placeholder {
		t.Errorf("post = %+v", posts[0])
	}

	want := []runDomain.State{runDomain.StateFetching, runDomain.StateNormalizing, runDomain.StatePersisting, runDomain.StateSucceeded}
	if len(history.states) != len(want) {
		t.Fatalf("recorded states = %v, want %v", history.states, want)
	}
	for i := range want {
		if history.states[i] != want[i] {
			t.Errorf("recorded states = %v, want %v", history.states, want)
			break
		}
	}
	if history.last.Persisted != 2 || history.last.FinishedAt.IsZero() {
		t.Errorf("recorded run = %+v", history.last)
	}
}

func TestRun_EmptySourcePersistsEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	p, _ := newPipeline(t, &fakeSource{}, postRepo.NewFileStorage(path), defaultOptions())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.State != runDomain.StateSucceeded || result.Persisted != 0 {
		t.Errorf("result = %+v", result)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("document = %q, want []", data)
	}
}

func TestRun_SanitizesLongMarkup(t *testing.T) {
	repo := postRepo.NewFileStorage(filepath.Join(t.TempDir(), "posts.json"))
	body := strings.Repeat("<script>", 1500/len("<script>")+1)[:1500]
	p, _ := newPipeline(t, &fakeSource{messages: []postDomain.RawMessage{msg(7, time.Minute, body)}}, repo, defaultOptions())

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	post := result.Posts[0]
	if n := utf8.RuneCountInString(post.Content); n != postDomain.MaxContentLength {
		t.Errorf("content length = %d, want %d", n, postDomain.MaxContentLength)
	}
	if strings.ContainsAny(post.Content, "<>") || strings.ContainsAny(post.Title, "<>") {
		t.Errorf("markup survived: %q", post.Content[:40])
	}
}

func TestRun_SourceFailureKeepsPriorPosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	repo := postRepo.NewFileStorage(path)
	prior := []postDomain.Post{{ID: "1", Title: "Prior", MediaRef: placeholder, MediaKind: postDomain.MediaKindNone, Timestamp: now}}
	if err := repo.SavePosts(context.Background(), prior); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := os.ReadFile(path)

	p, history := newPipeline(t, &fakeSource{err: errors.New("401 unauthorized")}, repo, defaultOptions())
	result, err := p.Run(context.Background())

	if !errors.Is(err, apperrors.ErrSourceAccess) {
		t.Fatalf("error = %v, want source access error", err)
	}
	if result.State != runDomain.StateFailed {
		t.Errorf("state = %s", result.State)
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("persisted posts changed after source failure")
	}
	if history.last.State != runDomain.StateFailed || history.last.Error == "" {
		t.Errorf("recorded run = %+v", history.last)
	}
}

func TestRun_StorageFailure(t *testing.T) {
	repo := &failingRepo{}
	p, _ := newPipeline(t, &fakeSource{messages: []postDomain.RawMessage{msg(1, 0, "x")}}, repo, defaultOptions())

	result, err := p.Run(context.Background())
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Fatalf("error = %v, want storage error", err)
	}
	if result.State != runDomain.StateFailed || result.Persisted != 0 || repo.saves != 1 {
		t.Errorf("result = %+v, saves = %d", result, repo.saves)
	}
}

func TestRun_MediaFailureDegradesToPlaceholder(t *testing.T) {
	repo := postRepo.NewFileStorage(filepath.Join(t.TempDir(), "posts.json"))
	ok := msg(1, time.Hour, "photo")
	ok.Photos = []postDomain.Photo{{FileID: "small", Width: 90, Height: 90}, {FileID: "large", Width: 1280, Height: 720}}
	broken := msg(2, 0, "video")
	broken.Video = &postDomain.MediaFile{FileID: "broken"}

	p, _ := newPipeline(t, &fakeSource{messages: []postDomain.RawMessage{ok, broken}}, repo, defaultOptions())
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.MediaFailures != 1 || result.Persisted != 2 {
		t.Errorf("result = %+v", result)
	}
	byID := map[string]postDomain.Post{}
	for _, post := range result.Posts {
		byID[post.ID] = post
	}
	if got := byID["1"]; got.MediaRef != "media/large.jpg" || got.MediaKind != postDomain.MediaKindImage {
		t.Errorf("photo post = %+v", got)
	}
	if got := byID["2"]; got.MediaRef != placeholder || got.MediaKind != postDomain.MediaKindNone {
		t.Errorf("failed media post = %+v", got)
	}
}

func TestRun_CapsDedupsAndFilters(t *testing.T) {
	repo := postRepo.NewFileStorage(filepath.Join(t.TempDir(), "posts.json"))
	opts := defaultOptions()
	opts.MaxPosts = 2
	opts.Keywords = postService.KeywordFilter{Exclude: []string{"advert"}}

	source := &fakeSource{messages: []postDomain.RawMessage{
		msg(1, 4*time.Hour, "oldest"),
		msg(2, 3*time.Hour, "middle"),
		msg(2, 3*time.Hour, "middle duplicate"),
		msg(3, 2*time.Hour, "newer"),
		msg(4, time.Hour, "ADVERT: buy now"),
	}}
	p, _ := newPipeline(t, source, repo, opts)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Retained != 4 {
		t.Errorf("retained = %d, want 4", result.Retained)
	}
	if len(result.Posts) != 2 || result.Posts[0].ID != "3" || result.Posts[1].ID != "2" {
		t.Errorf("posts = %+v", result.Posts)
	}
	if result.Posts[1].Content != "middle" {
		t.Errorf("duplicate kept the later copy: %q", result.Posts[1].Content)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	repo := postRepo.NewFileStorage(filepath.Join(t.TempDir(), "posts.json"))
	normalizer := postService.NewNormalizer(nil, placeholder, "", nil)

	tests := []struct {
		name string
		mod  func(*Options)
	}{
		{name: "zero max posts", mod: func(o *Options) { o.MaxPosts = 0 }},
		{name: "negative window", mod: func(o *Options) { o.Window = -time.Hour }},
		{name: "zero concurrency", mod: func(o *Options) { o.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mod(&opts)
			source := &fakeSource{}
			if _, err := New(source, normalizer, repo, nil, opts, nil); !errors.Is(err, apperrors.ErrConfiguration) {
				t.Errorf("error = %v, want configuration error", err)
			}
		})
	}
}
