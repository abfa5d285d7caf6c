package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appautomation "github.com/nexohr/psicorisco/internal/application/automation"
)

// NewTriggerCmd enqueues a response for processing.
func NewTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <response-id>",
		Short: "Enqueue an assessment response for automated processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid response id %q", args[0])
			}
			return withRepos(cmd, func(ctx context.Context, cc *CLIContext, repos *repoSet) error {
				trigger := appautomation.NewTrigger(repos.Assessments, repos.Queue, repos.Configs, nil, cc.Config.Worker.MaxRetries, nil, cc.Logger)
				item, err := trigger.Enqueue(ctx, responseID)
				if err != nil {
					return err
				}
				return printJSON(cmd, item)
			})
		},
	}
}

// NewRetryCmd re-runs a failed response.
func NewRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <response-id>",
		Short: "Requeue a failed response for another processing attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			responseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid response id %q", args[0])
			}
			return withRepos(cmd, func(ctx context.Context, cc *CLIContext, repos *repoSet) error {
				trigger := appautomation.NewTrigger(repos.Assessments, repos.Queue, repos.Configs, nil, cc.Config.Worker.MaxRetries, nil, cc.Logger)
				item, err := trigger.Retry(ctx, responseID)
				if err != nil {
					return err
				}
				return printJSON(cmd, item)
			})
		},
	}
}
