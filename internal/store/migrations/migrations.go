package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // postgres driver for database/sql
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Runner applies the schema migrations for users, snippets and activity events.
type Runner struct {
	db      *sql.DB
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// NewRunner creates a migration runner for the provided PostgreSQL connection URL.
func NewRunner(databaseURL string, logger *zap.Logger) (*Runner, error) {
	if databaseURL == "" {
		return nil, errors.New("migrations: database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migrations: open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrations: connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrations: init postgres driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrations: init source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("migrations: create migrator: %w", err)
	}

	return &Runner{db: db, migrate: m, logger: logger}, nil
}

// Up runs all pending up migrations.
func (r *Runner) Up() error {
	if err := r.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}

	return nil
}

// Down rolls back all migrations.
func (r *Runner) Down() error {
	if err := r.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: down: %w", err)
	}

	return nil
}

// Steps applies a signed number of migration steps.
func (r *Runner) Steps(n int) error {
	if n == 0 {
		return nil
	}

	if err := r.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: steps: %w", err)
	}

	return nil
}

// Version returns the current schema version and dirty flag.
func (r *Runner) Version() (uint, bool, error) {
	version, dirty, err := r.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("migrations: version: %w", err)
	}

	return version, dirty, nil
}

// Close releases migration and database resources.
func (r *Runner) Close() {
	sourceErr, dbErr := r.migrate.Close()
	if sourceErr != nil {
		r.logger.Warn("error closing migration source", zap.Error(sourceErr))
	}

	if dbErr != nil {
		r.logger.Warn("error closing migration database", zap.Error(dbErr))
	}

	if err := r.db.Close(); err != nil {
		r.logger.Warn("error closing database connection", zap.Error(err))
	}
}
