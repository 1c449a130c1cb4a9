package service

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/reshetovitsme/channel-posts/internal/metrics"
	postDomain "github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
	postService "github.com/reshetovitsme/channel-posts/internal/modules/post/service"
	runDomain "github.com/reshetovitsme/channel-posts/internal/modules/run/domain"
	runRepo "github.com/reshetovitsme/channel-posts/internal/modules/run/repository"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// Source lists the raw messages of the configured channel posted at or after
// since. Implementations may return older messages; the pipeline filters them.
type Source interface {
	ListMessages(ctx context.Context, since time.Time) ([]postDomain.RawMessage, error)
}

// Normalizer turns one raw message into a post
type Normalizer interface {
	Normalize(ctx context.Context, msg postDomain.RawMessage) (postDomain.Post, error)
}

// Options configures a pipeline pass
type Options struct {
	Window      time.Duration `validate:"gte=0"`
	MaxPosts    int           `validate:"gte=1"`
	Concurrency int           `validate:"gte=1"`
	Keywords    postService.KeywordFilter
	// Now is the clock used for the window; defaults to time.Now
	Now func() time.Time `validate:"-"`
}

// Result summarizes a pipeline pass
type Result struct {
	RunID         string
	State         runDomain.State
	Fetched       int
	Retained      int
	Persisted     int
	MediaFailures int
	Posts         []postDomain.Post
	Duration      time.Duration
}

// Pipeline fetches, normalizes and persists the latest channel posts
type Pipeline struct {
	source     Source
	normalizer Normalizer
	posts      postRepo.Repository
	history    runRepo.Repository
	opts       Options
	logger     *slog.Logger
}

// New creates a pipeline. history may be nil. Invalid options are a
// configuration error and nothing is contacted.
func New(source Source, normalizer Normalizer, posts postRepo.Repository, history runRepo.Repository, opts Options, logger *slog.Logger) (*Pipeline, error) {
	if err := validator.New().Struct(opts); err != nil {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, oops.With("context", "invalid pipeline options").Wrap(err))
	}
	if source == nil || normalizer == nil || posts == nil {
		return nil, apperrors.Mark(apperrors.ErrConfiguration, oops.Errorf("pipeline requires a source, a normalizer and a post repository"))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		source:     source,
		normalizer: normalizer,
		posts:      posts,
		history:    history,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Run executes one pass: fetching, normalizing, persisting. A source or
// storage failure fails the run and leaves the persisted collection as it was.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := p.opts.Now()
	run := runDomain.NewRun(start)
	p.record(ctx, run)

	result, err := p.execute(ctx, run, start)

	run.Fetched = result.Fetched
	run.Retained = result.Retained
	run.Persisted = result.Persisted
	run.MediaFailures = result.MediaFailures
	run.Finish(p.opts.Now(), err)
	p.record(ctx, run)

	result.RunID = run.ID.String()
	result.State = run.State
	result.Duration = run.Duration()
	metrics.RecordRun(run.State.String(), result.Duration, result.Fetched, result.Retained, result.Persisted)

	if err != nil {
		p.logger.Error("Pipeline run failed", "run_id", run.ID, "error", err)
		return result, err
	}

	p.logger.Info("Pipeline run succeeded",
		"run_id", run.ID,
		"fetched", result.Fetched,
		"retained", result.Retained,
		"persisted", result.Persisted,
		"media_failures", result.MediaFailures,
		"duration", result.Duration,
	)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, run *runDomain.Run, now time.Time) (Result, error) {
	var result Result

	// fetching
	since := postService.WindowStart(now, p.opts.Window)
	messages, err := p.source.ListMessages(ctx, since)
	if err != nil {
		return result, apperrors.Mark(apperrors.ErrSourceAccess, oops.With("since", since, "context", "failed to list messages").Wrap(err))
	}
	result.Fetched = len(messages)

	// normalizing
	p.transition(ctx, run, runDomain.StateNormalizing)

	retained := lo.Filter(messages, func(m postDomain.RawMessage, _ int) bool {
		return postService.IsWithinWindow(m.Date, now, p.opts.Window) && p.opts.Keywords.Allows(m.Body())
	})
	result.Retained = len(retained)

	candidates := latest(retained, p.opts.MaxPosts)
	normalized, failures := p.normalizeAll(ctx, candidates)
	result.MediaFailures = failures

	if err := ctx.Err(); err != nil {
		return result, oops.With("context", "run cancelled during normalization").Wrap(err)
	}

	posts := postService.Rank(normalized, p.opts.MaxPosts)
	if len(posts) == 0 {
		p.logger.Warn("No posts in window", "window", p.opts.Window, "fetched", result.Fetched)
	}

	// persisting
	p.transition(ctx, run, runDomain.StatePersisting)

	if err := p.posts.SavePosts(ctx, posts); err != nil {
		return result, apperrors.Mark(apperrors.ErrStorage, err)
	}
	result.Persisted = len(posts)
	result.Posts = posts
	return result, nil
}

// normalizeAll fans normalization out over a bounded worker group. Each worker
// writes only its own slot; the slice is read after Wait.
func (p *Pipeline) normalizeAll(ctx context.Context, messages []postDomain.RawMessage) ([]postDomain.Post, int) {
	posts := make([]postDomain.Post, len(messages))
	var failures atomic.Int32

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, msg := range messages {
		g.Go(func() error {
			post, err := p.normalizer.Normalize(ctx, msg)
			if err != nil {
				failures.Add(1)
			}
			posts[i] = post
			return nil
		})
	}
	_ = g.Wait()

	return posts, int(failures.Load())
}

func (p *Pipeline) transition(ctx context.Context, run *runDomain.Run, state runDomain.State) {
	p.logger.Debug("Pipeline state change", "run_id", run.ID, "from", run.State, "to", state)
	run.State = state
	p.record(ctx, run)
}

// record stores the run; failures only get logged.
func (p *Pipeline) record(ctx context.Context, run *runDomain.Run) {
	if p.history == nil {
		return
	}
	if err := p.history.Save(context.WithoutCancel(ctx), run); err != nil {
		p.logger.Warn("Failed to record run", "run_id", run.ID, "state", run.State, "error", err)
	}
}

// latest keeps the newest maxPosts distinct messages so media is only
// downloaded for posts that can make the cut.
func latest(messages []postDomain.RawMessage, maxPosts int) []postDomain.RawMessage {
	sorted := slices.Clone(messages)
	slices.SortStableFunc(sorted, func(a, b postDomain.RawMessage) int {
		return b.Date.Compare(a.Date)
	})
	sorted = lo.UniqBy(sorted, func(m postDomain.RawMessage) int64 {
		return m.ID
	})
	if len(sorted) > maxPosts {
		sorted = sorted[:maxPosts]
	}
	return sorted
}
