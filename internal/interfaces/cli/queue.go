package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewQueueCmd groups work queue inspection subcommands.
func NewQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the processing queue",
	}
	cmd.AddCommand(newQueueStatusCmd())
	cmd.AddCommand(newQueueReapCmd())
	return cmd
}

func newQueueStatusCmd() *cobra.Command {
	var companyID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show work item counts by state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			company := uuid.Nil
			if companyID != "" {
				parsed, err := uuid.Parse(companyID)
				if err != nil {
					return fmt.Errorf("invalid company id %q", companyID)
				}
				company = parsed
			}
			return withRepos(cmd, func(ctx context.Context, _ *CLIContext, repos *repoSet) error {
				counts, err := repos.Queue.Counts(ctx, company)
				if err != nil {
					return err
				}
				out := make(map[string]int, len(counts))
				for state, n := range counts {
					out[string(state)] = n
				}
				return printJSON(cmd, out)
			})
		},
	}
	cmd.Flags().StringVar(&companyID, "company", "", "restrict counts to one company")
	return cmd
}

func newQueueReapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Return expired leases to the pending state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRepos(cmd, func(ctx context.Context, _ *CLIContext, repos *repoSet) error {
				n, err := repos.Queue.ReapExpired(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]int{"reaped": n})
			})
		},
	}
}
