package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/reshetovitsme/channel-posts/internal/di"
	pipelineService "github.com/reshetovitsme/channel-posts/internal/modules/pipeline/service"
	"github.com/reshetovitsme/channel-posts/internal/shared/config"
	httpServer "github.com/reshetovitsme/channel-posts/internal/transport/http"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve posts, feeds and media over HTTP, running the pipeline on a schedule",
	RunE:  serveAction,
}

func serveAction(cmd *cobra.Command, _ []string) error {
	injector, err := di.Setup(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	cfg := do.MustInvoke[*config.Config](injector)
	server, err := do.Invoke[*httpServer.Server](injector)
	if err != nil {
		return err
	}
	scheduler, err := do.Invoke[*pipelineService.Scheduler](injector)
	if err != nil {
		return err
	}

	server.SetScheduler(scheduler)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scheduler.Start(ctx)

	slog.Info("Application started", "port", cfg.HTTPPort, "update_interval", cfg.UpdateInterval)
	slog.Info("Press Ctrl+C to stop")

	if err := server.Start(ctx); err != nil {
		return err
	}

	slog.Info("Shutting down...")
	return nil
}
