package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appautomation "github.com/nexohr/psicorisco/internal/application/automation"
)

// NewStatsCmd reports processing statistics for one company.
func NewStatsCmd() *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "stats <company-id>",
		Short: "Show pipeline statistics for a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company id %q", args[0])
			}
			if window <= 0 {
				return fmt.Errorf("window must be positive, got %s", window)
			}
			return withRepos(cmd, func(ctx context.Context, cc *CLIContext, repos *repoSet) error {
				stats := appautomation.NewStatsService(repos.Logs, repos.Queue, nil, 0, nil, cc.Logger)
				result, err := stats.Get(ctx, companyID, window)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "reporting window")
	return cmd
}
