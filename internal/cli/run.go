package cli

import (
	"fmt"
	"log/slog"

	"github.com/reshetovitsme/channel-posts/internal/di"
	pipelineService "github.com/reshetovitsme/channel-posts/internal/modules/pipeline/service"
	"github.com/samber/do/v2"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, normalize and persist the latest channel posts once",
	RunE:  runAction,
}

func runAction(cmd *cobra.Command, _ []string) error {
	injector, err := di.Setup(configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := di.Shutdown(injector); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	pipeline, err := do.Invoke[*pipelineService.Pipeline](injector)
	if err != nil {
		return err
	}

	result, err := pipeline.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run %s failed: %w", result.RunID, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s %s: fetched %d, retained %d, persisted %d, media failures %d\n",
		result.RunID, result.State, result.Fetched, result.Retained, result.Persisted, result.MediaFailures)
	return nil
}
