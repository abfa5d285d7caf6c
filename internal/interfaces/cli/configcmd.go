package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

// NewConfigCmd groups the per-company automation settings subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and update per-company automation settings",
	}
	cmd.AddCommand(newConfigGetCmd())
	cmd.AddCommand(newConfigSetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <company-id>",
		Short: "Show a company's automation settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company id %q", args[0])
			}
			return withRepos(cmd, func(ctx context.Context, _ *CLIContext, repos *repoSet) error {
				cfg, err := repos.Configs.GetByCompany(ctx, companyID)
				if err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			})
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var (
		enabled           bool
		autoPlans         bool
		notifications     bool
		minNotifyLevel    string
		hrRecipients      []string
		notifyManager     bool
		escalationEnabled bool
		processingDelay   int
	)

	cmd := &cobra.Command{
		Use:   "set <company-id>",
		Short: "Replace a company's automation settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid company id %q", args[0])
			}
			level := scoring.ExposureLevel(minNotifyLevel)
			switch level {
			case scoring.ExposureBaixo, scoring.ExposureMedio, scoring.ExposureAlto, scoring.ExposureCritico:
			default:
				return fmt.Errorf("invalid notify level %q (baixo, medio, alto or critico)", minNotifyLevel)
			}
			recipients := make([]uuid.UUID, 0, len(hrRecipients))
			for _, raw := range hrRecipients {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid recipient id %q", raw)
				}
				recipients = append(recipients, id)
			}
			if processingDelay < 0 {
				return fmt.Errorf("processing delay must not be negative")
			}
			cfg := &automation.Config{
				CompanyID:              companyID,
				Enabled:                enabled,
				AutoGeneratePlans:      autoPlans,
				NotificationEnabled:    notifications,
				MinNotifyLevel:         level,
				HRRecipients:           recipients,
				NotifyManager:          notifyManager,
				EscalationEnabled:      escalationEnabled,
				ProcessingDelayMinutes: processingDelay,
				UpdatedAt:              time.Now().UTC(),
			}
			return withRepos(cmd, func(ctx context.Context, _ *CLIContext, repos *repoSet) error {
				if err := repos.Configs.Save(ctx, cfg); err != nil {
					return err
				}
				return printJSON(cmd, cfg)
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", true, "process this company's responses automatically")
	cmd.Flags().BoolVar(&autoPlans, "auto-plans", true, "generate action plans for alto and critico findings")
	cmd.Flags().BoolVar(&notifications, "notifications", true, "send pipeline notifications")
	cmd.Flags().IntVar(&processingDelay, "processing-delay", 0, "minutes to hold a response before processing")
	cmd.Flags().StringVar(&minNotifyLevel, "min-notify-level", "alto", "lowest exposure level that notifies HR")
	cmd.Flags().StringSliceVar(&hrRecipients, "hr-recipient", nil, "HR user id to notify, repeatable")
	cmd.Flags().BoolVar(&notifyManager, "notify-manager", false, "escalate unacknowledged alerts to the sector manager")
	cmd.Flags().BoolVar(&escalationEnabled, "escalation", true, "enable the escalation ladder")
	return cmd
}
