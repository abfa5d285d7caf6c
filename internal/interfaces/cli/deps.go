package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres"
	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres/repositories"
)

// repoSet bundles the repositories commands need, backed by a single
// connection pool that the caller must close.
type repoSet struct {
	conn          *postgres.Connection
	Assessments   *repositories.AssessmentRepository
	Analyses      *repositories.RiskRepository
	Plans         *repositories.ActionPlanRepository
	Notifications *repositories.NotificationRepository
	Queue         *repositories.QueueRepository
	Configs       *repositories.ConfigRepository
	Logs          *repositories.LogRepository
}

func (r *repoSet) Close() {
	r.conn.Close()
}

// openRepos connects to the database configured in the CLI context.
func openRepos(ctx context.Context, cc *CLIContext) (*repoSet, error) {
	conn, err := postgres.NewConnection(ctx, cc.Config.Database, cc.Logger)
	if err != nil {
		return nil, err
	}
	pool := conn.Pool()
	return &repoSet{
		conn:          conn,
		Assessments:   repositories.NewAssessmentRepository(pool, cc.Logger),
		Analyses:      repositories.NewRiskRepository(pool, cc.Logger),
		Plans:         repositories.NewActionPlanRepository(pool, cc.Logger),
		Notifications: repositories.NewNotificationRepository(pool, cc.Logger),
		Queue:         repositories.NewQueueRepository(pool, cc.Logger),
		Configs:       repositories.NewConfigRepository(pool, cc.Logger),
		Logs:          repositories.NewLogRepository(pool, cc.Logger),
	}, nil
}

// withRepos runs fn with an open repoSet and closes it afterwards.
func withRepos(cmd *cobra.Command, fn func(context.Context, *CLIContext, *repoSet) error) error {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	repos, err := openRepos(ctx, cc)
	if err != nil {
		return err
	}
	defer repos.Close()
	return fn(ctx, cc, repos)
}
