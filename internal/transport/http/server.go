package http

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	feedService "github.com/reshetovitsme/channel-posts/internal/modules/feed/service"
	pipelineService "github.com/reshetovitsme/channel-posts/internal/modules/pipeline/service"
	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
	runRepo "github.com/reshetovitsme/channel-posts/internal/modules/run/repository"
	"github.com/reshetovitsme/channel-posts/internal/shared/config"
	sloghttp "github.com/samber/slog-http"
)

const defaultRunsLimit = 20

// RunReporter exposes the outcome of the latest scheduled pass
type RunReporter interface {
	Last() (pipelineService.Result, error)
}

// Server serves the persisted posts, their feeds and the media directory
type Server struct {
	cfg         *config.Config
	feedService *feedService.Service
	posts       postRepo.Repository
	history     runRepo.Repository
	scheduler   RunReporter
	logger      *slog.Logger
}

// New creates a new HTTP server. history may be nil.
func New(cfg *config.Config, feedService *feedService.Service, posts postRepo.Repository, history runRepo.Repository) *Server {
	return &Server{
		cfg:         cfg,
		feedService: feedService,
		posts:       posts,
		history:     history,
		logger:      slog.Default(),
	}
}

// SetLogger sets the logger
func (s *Server) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// SetScheduler reports scheduled passes on /health
func (s *Server) SetScheduler(scheduler RunReporter) {
	s.scheduler = scheduler
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(sloghttp.Recovery)
	r.Use(sloghttp.New(s.logger))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/posts.json", s.handlePosts)
	r.Get("/rss", s.handleRSSFeed)
	r.Get("/atom", s.handleAtomFeed)
	r.Get("/runs", s.handleRuns)
	r.Handle("/metrics", promhttp.Handler())

	mediaRoute := "/" + strings.Trim(s.mediaPrefix(), "/")
	r.Handle(mediaRoute+"/*", http.StripPrefix(mediaRoute, http.FileServer(http.Dir(s.cfg.MediaDir))))

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%s", s.cfg.HTTPPort)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("HTTP server shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.posts.GetPosts(r.Context())
	if err != nil {
		s.logger.Error("Error loading posts", "error", err)
		http.Error(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	s.writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleRSSFeed(w http.ResponseWriter, r *http.Request) {
	rss, err := s.feedService.RSS(r.Context(), baseURL(r))
	if err != nil {
		s.logger.Error("Error generating RSS feed", "error", err)
		http.Error(w, "Failed to generate RSS", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300") // Cache for 5 minutes
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(rss))
}

func (s *Server) handleAtomFeed(w http.ResponseWriter, r *http.Request) {
	atom, err := s.feedService.Atom(r.Context(), baseURL(r))
	if err != nil {
		s.logger.Error("Error generating Atom feed", "error", err)
		http.Error(w, "Failed to generate Atom", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(atom))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "Run history is not enabled", http.StatusNotFound)
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Error loading run history", "error", err)
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}

	if s.history != nil {
		if runs, err := s.history.Recent(r.Context(), 1); err == nil && len(runs) > 0 {
			status["last_run"] = map[string]any{
				"id":         runs[0].ID,
				"state":      runs[0].State,
				"started_at": runs[0].StartedAt,
				"finished":   runs[0].State.Terminal(),
			}
		}
	}

	if s.scheduler != nil {
		if last, err := s.scheduler.Last(); last.RunID != "" {
			scheduled := map[string]any{
				"run_id":    last.RunID,
				"state":     last.State,
				"persisted": last.Persisted,
				"duration":  last.Duration.String(),
			}
			if err != nil {
				scheduled["error"] = err.Error()
			}
			status["scheduler"] = scheduled
		}
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <link rel="alternate" type="application/rss+xml" href="/rss">
    <link rel="alternate" type="application/atom+xml" href="/atom">
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; }
        h1 { color: #333; }
        .info { background: #f5f5f5; padding: 15px; border-radius: 5px; margin: 20px 0; }
        code { background: #e8e8e8; padding: 2px 6px; border-radius: 3px; }
    </style>
</head>
<body>
    <h1>%[1]s</h1>
    <div class="info">
        <p>Latest channel posts: <code>/posts.json</code></p>
        <p>Feeds: <a href="/rss">RSS</a>, <a href="/atom">Atom</a></p>
    </div>
    <p><a href="/health">Health Check</a> | <a href="/runs">Runs</a></p>
</body>
</html>`, pageTitle(s.cfg.SiteTitle))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(page))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error writing JSON response", "error", err)
	}
}

func (s *Server) mediaPrefix() string {
	if p := strings.Trim(s.cfg.MediaPathPrefix, "/"); p != "" {
		return p
	}
	return "media"
}

func baseURL(r *http.Request) string {
	return fmt.Sprintf("%s://%s", getScheme(r), r.Host)
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func pageTitle(title string) string {
	if title == "" {
		title = "Channel Posts"
	}
	return html.EscapeString(title)
}
