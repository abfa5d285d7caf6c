package repositories

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// ConfigRepository stores per-company automation policies.
type ConfigRepository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewConfigRepository constructs the repository.
func NewConfigRepository(pool *pgxpool.Pool, logger logging.Logger) *ConfigRepository {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ConfigRepository{pool: pool, logger: logger.Named("config_repo")}
}

// GetByCompany loads the automation policy for a company.
func (r *ConfigRepository) GetByCompany(ctx context.Context, companyID uuid.UUID) (*automation.Config, error) {
	const query = `
		SELECT company_id, enabled, auto_generate_plans, notification_enabled,
		       min_notify_level, hr_recipients, notify_manager,
		       escalation_enabled, escalation_ladder, processing_delay_minutes,
		       updated_at
		FROM automation_configs
		WHERE company_id = $1`

	var (
		cfg           automation.Config
		recipientsRaw []byte
		ladderRaw     []byte
	)
	err := r.pool.QueryRow(ctx, query, companyID).Scan(
		&cfg.CompanyID, &cfg.Enabled, &cfg.AutoGeneratePlans, &cfg.NotificationEnabled,
		&cfg.MinNotifyLevel, &recipientsRaw, &cfg.NotifyManager,
		&cfg.EscalationEnabled, &ladderRaw, &cfg.ProcessingDelayMinutes,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Newf(apperrors.ErrCodeConfigMissing,
				"no automation config for company %s", companyID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load automation config")
	}
	if len(recipientsRaw) > 0 {
		if err := json.Unmarshal(recipientsRaw, &cfg.HRRecipients); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "corrupt recipients payload")
		}
	}
	if len(ladderRaw) > 0 {
		if err := json.Unmarshal(ladderRaw, &cfg.EscalationLadder); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "corrupt escalation ladder payload")
		}
	}
	return &cfg, nil
}

// Save upserts the automation policy.
func (r *ConfigRepository) Save(ctx context.Context, cfg *automation.Config) error {
	recipients, err := json.Marshal(cfg.HRRecipients)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode recipients")
	}
	ladder, err := json.Marshal(cfg.EscalationLadder)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeSerialization, "failed to encode escalation ladder")
	}

	const query = `
		INSERT INTO automation_configs
			(company_id, enabled, auto_generate_plans, notification_enabled,
			 min_notify_level, hr_recipients, notify_manager,
			 escalation_enabled, escalation_ladder, processing_delay_minutes,
			 updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (company_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			auto_generate_plans = EXCLUDED.auto_generate_plans,
			notification_enabled = EXCLUDED.notification_enabled,
			min_notify_level = EXCLUDED.min_notify_level,
			hr_recipients = EXCLUDED.hr_recipients,
			notify_manager = EXCLUDED.notify_manager,
			escalation_enabled = EXCLUDED.escalation_enabled,
			escalation_ladder = EXCLUDED.escalation_ladder,
			processing_delay_minutes = EXCLUDED.processing_delay_minutes,
			updated_at = EXCLUDED.updated_at`

	_, err = r.pool.Exec(ctx, query,
		cfg.CompanyID, cfg.Enabled, cfg.AutoGeneratePlans, cfg.NotificationEnabled,
		cfg.MinNotifyLevel, recipients, cfg.NotifyManager,
		cfg.EscalationEnabled, ladder, cfg.ProcessingDelayMinutes,
		cfg.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to save automation config")
	}
	return nil
}
