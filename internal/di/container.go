package di

import (
	"context"
	"log/slog"
	"sync"
	"time"

	feedDomain "github.com/reshetovitsme/channel-posts/internal/modules/feed/domain"
	feedService "github.com/reshetovitsme/channel-posts/internal/modules/feed/service"
	mediaService "github.com/reshetovitsme/channel-posts/internal/modules/media/service"
	pipelineService "github.com/reshetovitsme/channel-posts/internal/modules/pipeline/service"
	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
	postService "github.com/reshetovitsme/channel-posts/internal/modules/post/service"
	runRepo "github.com/reshetovitsme/channel-posts/internal/modules/run/repository"
	"github.com/reshetovitsme/channel-posts/internal/shared/config"
	"github.com/reshetovitsme/channel-posts/internal/shared/logger"
	httpServer "github.com/reshetovitsme/channel-posts/internal/transport/http"
	"github.com/reshetovitsme/channel-posts/internal/transport/telegram"
	"github.com/samber/do/v2"
	"github.com/samber/oops"
)

// Setup initializes the dependency injection container. Configuration is
// loaded eagerly so a bad setting fails before anything is contacted.
func Setup(configPath string) (do.Injector, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, oops.With("context", "failed to load config").Wrap(err)
	}
	return SetupWithConfig(cfg), nil
}

// lifecycle tracks the services that were actually built so Shutdown only
// releases those.
type lifecycle struct {
	mu         sync.Mutex
	scheduler  *pipelineService.Scheduler
	history    runRepo.Repository
	historyErr error
}

func (l *lifecycle) openHistory(path string) (runRepo.Repository, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A failed open is not retried by later consumers
	if l.historyErr != nil {
		return nil, l.historyErr
	}

	repo, err := runRepo.Open(context.Background(), path)
	if err != nil {
		l.historyErr = oops.With("history_path", path, "context", "failed to initialize run history").Wrap(err)
		return nil, l.historyErr
	}
	l.history = repo
	return repo, nil
}

func (l *lifecycle) track(scheduler *pipelineService.Scheduler) *pipelineService.Scheduler {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scheduler = scheduler
	return scheduler
}

func (l *lifecycle) shutdown() error {
	l.mu.Lock()
	scheduler, history := l.scheduler, l.history
	l.scheduler, l.history = nil, nil
	l.mu.Unlock()

	// Stop the scheduler first so no run writes to a closed history
	if scheduler != nil {
		scheduler.Stop()
	}
	if history != nil {
		if err := history.Close(); err != nil {
			return oops.With("context", "failed to close run history").Wrap(err)
		}
	}
	return nil
}

// SetupWithConfig registers every service against an already loaded config
func SetupWithConfig(cfg *config.Config) do.Injector {
	injector := do.New()
	services := &lifecycle{}

	// Register Config
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, services)

	// Register Logger
	do.Provide(injector, func(i do.Injector) (*slog.Logger, error) {
		return logger.Setup(cfg.AppEnv), nil
	})

	// Register Post Repository
	do.Provide(injector, func(i do.Injector) (postRepo.Repository, error) {
		return postRepo.NewFileStorage(cfg.OutputPath), nil
	})

	// Register Run History
	do.Provide(injector, func(i do.Injector) (runRepo.Repository, error) {
		return services.openHistory(cfg.HistoryPath)
	})

	// Register Telegram Source
	do.Provide(injector, func(i do.Injector) (*telegram.Source, error) {
		log := do.MustInvoke[*slog.Logger](i)
		return telegram.NewSource(telegram.Config{
			Token:     cfg.TelegramBotToken,
			APIURL:    cfg.TelegramAPIURL,
			ChannelID: cfg.ChannelID,
		}, nil, log)
	})

	// Register Media Fetcher
	do.Provide(injector, func(i do.Injector) (*mediaService.Fetcher, error) {
		source := do.MustInvoke[*telegram.Source](i)
		log := do.MustInvoke[*slog.Logger](i)
		return mediaService.New(source, nil, mediaService.Options{
			Dir:        cfg.MediaDir,
			PathPrefix: cfg.MediaPathPrefix,
			Timeout:    cfg.MediaFetchTimeout(),
			MaxBytes:   cfg.MaxMediaBytes,
			Rate:       cfg.DownloadRate,
		}, log), nil
	})

	// Register Normalizer
	do.Provide(injector, func(i do.Injector) (*postService.Normalizer, error) {
		fetcher := do.MustInvoke[*mediaService.Fetcher](i)
		log := do.MustInvoke[*slog.Logger](i)
		return postService.NewNormalizer(fetcher, cfg.DefaultMedia, cfg.ChannelUsername, log), nil
	})

	// Register Pipeline
	do.Provide(injector, func(i do.Injector) (*pipelineService.Pipeline, error) {
		source := do.MustInvoke[*telegram.Source](i)
		normalizer := do.MustInvoke[*postService.Normalizer](i)
		posts := do.MustInvoke[postRepo.Repository](i)
		log := do.MustInvoke[*slog.Logger](i)

		// History is optional: a broken history database must not stop ingestion
		history, err := do.Invoke[runRepo.Repository](i)
		if err != nil {
			log.Warn("Run history unavailable", "history_path", cfg.HistoryPath, "error", err)
			history = nil
		}

		return pipelineService.New(source, normalizer, posts, history, pipelineService.Options{
			Window:      cfg.Window(),
			MaxPosts:    cfg.MaxPosts,
			Concurrency: cfg.DownloadConcurrency,
			Keywords: postService.KeywordFilter{
				Include: cfg.IncludeKeywords,
				Exclude: cfg.ExcludeKeywords,
			},
		}, log)
	})

	// Register Scheduler
	do.Provide(injector, func(i do.Injector) (*pipelineService.Scheduler, error) {
		pipeline := do.MustInvoke[*pipelineService.Pipeline](i)
		log := do.MustInvoke[*slog.Logger](i)
		return services.track(pipelineService.NewScheduler(pipeline, time.Duration(cfg.UpdateInterval)*time.Second, log)), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		posts := do.MustInvoke[postRepo.Repository](i)
		return feedService.New(posts, feedDomain.FeedConfig{
			Title:       cfg.SiteTitle,
			SiteURL:     cfg.SiteURL,
			MediaDir:    cfg.MediaDir,
			Placeholder: cfg.DefaultMedia,
		}), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		feeds := do.MustInvoke[*feedService.Service](i)
		posts := do.MustInvoke[postRepo.Repository](i)
		log := do.MustInvoke[*slog.Logger](i)

		history, err := do.Invoke[runRepo.Repository](i)
		if err != nil {
			log.Warn("Run history unavailable", "history_path", cfg.HistoryPath, "error", err)
			history = nil
		}

		server := httpServer.New(cfg, feeds, posts, history)
		server.SetLogger(log)
		return server, nil
	})

	return injector
}

// Shutdown stops the scheduler and closes run history if they were built.
// Services that were never invoked are not constructed.
func Shutdown(injector do.Injector) error {
	services, err := do.Invoke[*lifecycle](injector)
	if err != nil {
		return oops.With("context", "container has no lifecycle").Wrap(err)
	}
	return services.shutdown()
}
