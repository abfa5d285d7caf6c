package postgres

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	apperrors "github.com/nexohr/psicorisco/pkg/errors"
)

// Migrator applies schema migrations from a directory of numbered SQL
// files. It opens its own short-lived connection so migrations do not
// compete with the service pool.
type Migrator struct {
	db     *sql.DB
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator prepares a migrator against the configured database.
func NewMigrator(cfg config.DatabaseConfig, logger logging.Logger) (*Migrator, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to open migration connection")
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to init migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, cfg.DBName, driver)
	if err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to load migrations")
	}

	return &Migrator{db: db, m: m, logger: logger}, nil
}

// Up applies all pending migrations. A database already at the latest
// version is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info("schema already up to date")
			return nil
		}
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "migration failed")
	}
	version, dirty, _ := mg.m.Version()
	mg.logger.Info("schema migrated",
		logging.Int("version", int(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back a single migration step.
func (mg *Migrator) Down() error {
	if err := mg.m.Steps(-1); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "rollback failed")
	}
	return nil
}

// Version reports the current schema version.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, apperrors.Wrap(err, apperrors.ErrCodeDatabaseError, "failed to read schema version")
	}
	return version, dirty, nil
}

// Close releases the migration connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}
