package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/reshetovitsme/channel-posts/internal/metrics"
	"github.com/reshetovitsme/channel-posts/internal/modules/post/domain"
	apperrors "github.com/reshetovitsme/channel-posts/internal/shared/errors"
	"github.com/samber/oops"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const breakerName = "media-download"

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Resolver turns a source file reference into a downloadable URL.
type Resolver interface {
	ResolveFileURL(ctx context.Context, fileID string) (string, error)
}

// Options configures a Fetcher
type Options struct {
	// Dir is where downloaded files are stored
	Dir string
	// PathPrefix is prepended to file names in the returned media reference
	PathPrefix string
	Timeout    time.Duration
	MaxBytes   int64
	// Rate is the number of downloads started per second
	Rate float64
}

// Fetcher downloads message media into a local directory
type Fetcher struct {
	resolver Resolver
	client   *http.Client
	opts     Options
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *slog.Logger
}

// New creates a media fetcher.
// Circuit breaker configuration:
// - Opens after 5 consecutive failures
// - 1 minute before attempting recovery
// - 1 probe request in half-open state
func New(resolver Resolver, client *http.Client, opts Options, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}

	limit := rate.Inf
	burst := 1
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
		burst = max(1, int(opts.Rate))
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Fetcher{
		resolver: resolver,
		client:   client,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  cb,
		logger:   logger,
	}
}

// Fetch downloads the referenced file and returns its media reference
// (<prefix>/<key>.<ext>). Every failure is a recoverable media fetch error.
func (f *Fetcher) Fetch(ctx context.Context, ref domain.MediaRef, kind domain.MediaKind) (string, error) {
	start := time.Now()

	mediaRef, err := f.fetch(ctx, ref, kind)

	result := "success"
	switch {
	case errors.Is(err, apperrors.ErrCircuitOpen):
		result = "rejected"
	case err != nil:
		result = "failure"
	}
	metrics.RecordMediaFetch(kind.String(), result, time.Since(start))

	if err != nil {
		return "", apperrors.Mark(apperrors.ErrMediaFetch, err)
	}
	return mediaRef, nil
}

func (f *Fetcher) fetch(ctx context.Context, ref domain.MediaRef, kind domain.MediaKind) (string, error) {
	key := unsafeKeyChars.ReplaceAllString(ref.Key(), "_")
	ext := kind.Extension()
	if ref.FileID == "" || key == "" || ext == "" {
		return "", apperrors.ErrNoMedia
	}
	fileName := key + "." + ext

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return "", oops.With("file_id", ref.FileID, "context", "waiting for download slot").Wrap(err)
	}

	_, err := f.breaker.Execute(func() (string, error) {
		url, err := f.resolver.ResolveFileURL(ctx, ref.FileID)
		if err != nil {
			return "", oops.With("file_id", ref.FileID, "context", "failed to resolve file").Wrap(err)
		}
		return fileName, f.download(ctx, url, fileName)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %w", apperrors.ErrCircuitOpen, err)
	}
	if err != nil {
		return "", err
	}

	f.logger.Debug("Media downloaded", "file_id", ref.FileID, "kind", kind, "file", fileName)

	if f.opts.PathPrefix == "" {
		return fileName, nil
	}
	return path.Join(f.opts.PathPrefix, fileName), nil
}

// download streams url into a temp file next to the target and renames it
// into place, so a partial download never shows up under the final name.
func (f *Fetcher) download(ctx context.Context, url, fileName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return oops.With("context", "failed to build download request").Wrap(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return oops.With("file", fileName, "context", "download request failed").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return oops.With("file", fileName, "status", resp.StatusCode).Errorf("unexpected download status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.opts.MaxBytes {
		return oops.With("file", fileName, "size", resp.ContentLength).Errorf("media exceeds %d bytes", f.opts.MaxBytes)
	}

	if err := os.MkdirAll(f.opts.Dir, 0755); err != nil {
		return oops.With("media_dir", f.opts.Dir, "context", "failed to create media directory").Wrap(err)
	}

	tmp, err := os.CreateTemp(f.opts.Dir, "."+fileName+".*.part")
	if err != nil {
		return oops.With("media_dir", f.opts.Dir, "context", "failed to create temp file").Wrap(err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.opts.MaxBytes+1))
	if err != nil {
		return oops.With("file", fileName, "context", "failed to write media").Wrap(err)
	}
	if n > f.opts.MaxBytes {
		return oops.With("file", fileName).Errorf("media exceeds %d bytes", f.opts.MaxBytes)
	}
	if err := tmp.Close(); err != nil {
		return oops.With("file", fileName, "context", "failed to close media").Wrap(err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return oops.With("file", fileName, "context", "failed to chmod media").Wrap(err)
	}
	if err := os.Rename(tmpPath, filepath.Join(f.opts.Dir, fileName)); err != nil {
		return oops.With("file", fileName, "context", "failed to move media into place").Wrap(err)
	}

	committed = true
	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
