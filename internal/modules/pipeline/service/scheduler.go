package service

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner executes one pipeline pass
type Runner interface {
	Run(ctx context.Context) (Result, error)
}

// Scheduler runs the pipeline once at start and then on every tick until
// stopped. Passes never overlap.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	last    Result
	lastErr error
}

// NewScheduler creates a scheduler with the given interval
func NewScheduler(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Enabled reports whether periodic runs are configured
func (s *Scheduler) Enabled() bool {
	return s.interval > 0
}

// Start begins the run loop. It is a no-op when disabled or already running.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.Enabled() {
		s.logger.Info("Scheduler disabled", "update_interval", s.interval)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Scheduler started", "interval", s.interval)
}

// Stop cancels the loop and waits for an in-flight pass to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
}

// Last returns the outcome of the most recent pass
func (s *Scheduler) Last() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial run
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.runner.Run(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("Scheduled run failed", "run_id", result.RunID, "error", err)
	}

	s.mu.Lock()
	s.last, s.lastErr = result, err
	s.mu.Unlock()
}
