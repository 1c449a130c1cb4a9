package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	postRepo "github.com/reshetovitsme/channel-posts/internal/modules/post/repository"
	runRepo "github.com/reshetovitsme/channel-posts/internal/modules/run/repository"
	"github.com/reshetovitsme/channel-posts/internal/shared/config"
	"github.com/spf13/cobra"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted posts and recent runs",
	RunE:  statusAction,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "number of runs to show")
}

func statusAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	posts, err := postRepo.NewFileStorage(cfg.OutputPath).GetPosts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d posts in %s\n", len(posts), cfg.OutputPath)
	if len(posts) > 0 {
		fmt.Fprintf(out, "newest: %s (%s)\n", posts[0].Title, posts[0].Timestamp.Format(time.RFC3339))
	}

	history, err := runRepo.Open(ctx, cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	runs, err := history.Recent(ctx, statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATE\tFETCHED\tRETAINED\tPERSISTED\tMEDIA FAILURES\tDURATION\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.State, r.Fetched, r.Retained, r.Persisted, r.MediaFailures,
			r.Duration().Round(time.Millisecond), r.Error)
	}
	return w.Flush()
}
