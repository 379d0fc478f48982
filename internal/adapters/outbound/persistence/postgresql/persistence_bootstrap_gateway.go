package postgresql

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log"
	"path/filepath"

	portsout "invoicewallet/internal/application/ports/out"
	apperrors "invoicewallet/internal/shared_kernel/errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const migrationsTable = "invoicewallet_schema_migrations"

// requiredTables must exist once migrations have run; the ledger and the
// settlement log refuse to work without them.
var requiredTables = []string{"app.invoices", "app.settlement_transactions"}

// PersistenceBootstrapGateway probes and migrates the invoice database over
// the same pool the repositories use.
type PersistenceBootstrapGateway struct {
	db             *sql.DB
	databaseTarget string
	migrationsPath string
	logger         *log.Logger
}

var _ portsout.PersistenceBootstrapGateway = (*PersistenceBootstrapGateway)(nil)

func NewPersistenceBootstrapGateway(
	db *sql.DB,
	databaseTarget string,
	migrationsPath string,
	logger *log.Logger,
) *PersistenceBootstrapGateway {
	return &PersistenceBootstrapGateway{
		db:             db,
		databaseTarget: databaseTarget,
		migrationsPath: migrationsPath,
		logger:         logger,
	}
}

// CheckReadiness fails when the database is unreachable or is a read-only
// standby, since invoice creation has to write.
func (g *PersistenceBootstrapGateway) CheckReadiness(ctx context.Context) *apperrors.AppError {
	if g.db == nil {
		return apperrors.NewInternal("DB_POOL_MISSING", "database pool is not configured", nil)
	}

	var inRecovery bool
	if err := g.db.QueryRowContext(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
		g.logf("invoice database unreachable target=%s error=%v", g.databaseTarget, err)
		return apperrors.NewUnavailable(
			"DB_UNREACHABLE",
			"invoice database is unreachable",
			map[string]any{"database_target": g.databaseTarget},
		)
	}
	if inRecovery {
		g.logf("invoice database is read-only target=%s", g.databaseTarget)
		return apperrors.NewUnavailable(
			"DB_READ_ONLY",
			"invoice database is a read-only standby",
			map[string]any{"database_target": g.databaseTarget},
		)
	}
	return nil
}

// RunMigrations applies pending migrations and then checks that the invoice
// and settlement tables are present.
func (g *PersistenceBootstrapGateway) RunMigrations(ctx context.Context) *apperrors.AppError {
	if g.db == nil {
		return apperrors.NewInternal("DB_POOL_MISSING", "database pool is not configured", nil)
	}
	details := map[string]any{
		"database_target": g.databaseTarget,
		"migrations_path": g.migrationsPath,
	}

	absPath, err := filepath.Abs(g.migrationsPath)
	if err != nil {
		return apperrors.NewInternal("DB_MIGRATION_PATH_INVALID", "migrations path cannot be resolved", details)
	}

	conn, err := g.db.Conn(ctx)
	if err != nil {
		g.logf("migration connection unavailable target=%s error=%v", g.databaseTarget, err)
		return apperrors.NewUnavailable("DB_UNREACHABLE", "invoice database is unreachable", details)
	}
	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		g.logf("migration driver setup failed target=%s error=%v", g.databaseTarget, err)
		return apperrors.NewInternal("DB_MIGRATION_SETUP_FAILED", "failed to prepare migration driver", details)
	}
	runner, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(absPath), "postgres", driver)
	if err != nil {
		_ = driver.Close()
		g.logf("migration source setup failed path=%s error=%v", g.migrationsPath, err)
		return apperrors.NewInternal("DB_MIGRATION_SETUP_FAILED", "failed to open migrations", details)
	}
	// Closing the runner returns the borrowed connection to the pool.
	defer func() {
		if sourceErr, dbErr := runner.Close(); sourceErr != nil || dbErr != nil {
			g.logf("migration runner close source_error=%v db_error=%v", sourceErr, dbErr)
		}
	}()

	upErr := runner.Up()
	switch {
	case upErr == nil:
		version, dirty, _ := runner.Version()
		g.logf("invoice schema migrated target=%s version=%d dirty=%t", g.databaseTarget, version, dirty)
	case stderrors.Is(upErr, migrate.ErrNoChange):
		g.logf("invoice schema current target=%s", g.databaseTarget)
	default:
		g.logf("invoice schema migration failed target=%s error=%v", g.databaseTarget, upErr)
		return apperrors.NewInternal("DB_MIGRATION_APPLY_FAILED", "failed to apply migrations", details)
	}

	return g.verifySchema(ctx)
}

func (g *PersistenceBootstrapGateway) verifySchema(ctx context.Context) *apperrors.AppError {
	missing := make([]string, 0, len(requiredTables))
	for _, table := range requiredTables {
		var regclass sql.NullString
		if err := g.db.QueryRowContext(ctx, "SELECT to_regclass($1)::text", table).Scan(&regclass); err != nil {
			g.logf("schema check failed target=%s table=%s error=%v", g.databaseTarget, table, err)
			return apperrors.NewUnavailable(
				"DB_UNREACHABLE",
				"invoice database is unreachable",
				map[string]any{"database_target": g.databaseTarget},
			)
		}
		if !regclass.Valid {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return apperrors.NewInternal(
			"DB_SCHEMA_INCOMPLETE",
			"required tables are missing after migration",
			map[string]any{"database_target": g.databaseTarget, "missing_tables": missing},
		)
	}
	return nil
}

func (g *PersistenceBootstrapGateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}
