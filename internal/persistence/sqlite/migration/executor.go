package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Executor runs migrations against a SQLite database and maintains the
// schema_migrations tracking table.
type Executor struct {
	db *sql.DB
}

// NewExecutor creates an executor bound to a database handle.
func NewExecutor(db *sql.DB) *Executor {
	return &Executor{db: db}
}

// InitializeVersionTable creates the tracking table if it does not exist.
func (e *Executor) InitializeVersionTable(ctx context.Context) error {
	const create = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			checksum TEXT,
			execution_time_ms INTEGER
		)`
	if _, err := e.db.ExecContext(ctx, create); err != nil {
		return wrapErr("", "", "create schema_migrations table", err)
	}
	return nil
}

// Execute applies one migration inside a transaction, statement by statement.
func (e *Executor) Execute(ctx context.Context, migration Migration) (err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(migration.Version, migration.FilePath, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	statements := splitStatements(migration.SQL)
	if len(statements) == 0 {
		return wrapErr(migration.Version, migration.FilePath, "parse SQL",
			fmt.Errorf("%w: no statements found", ErrInvalidFile))
	}

	for i, stmt := range statements {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = wrapErr(migration.Version, migration.FilePath,
				fmt.Sprintf("execute statement %d", i+1),
				fmt.Errorf("%w: %v", ErrExecutionFailed, execErr))
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return wrapErr(migration.Version, migration.FilePath, "commit", err)
	}
	return nil
}

// Record stores a successful migration in the tracking table.
func (e *Executor) Record(ctx context.Context, migration Migration, executionTime time.Duration) error {
	const insert = `
		INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms)
		VALUES (?, ?, ?, ?)`
	_, err := e.db.ExecContext(ctx, insert,
		migration.Version,
		time.Now().UTC().Format(time.RFC3339),
		migration.Checksum,
		executionTime.Milliseconds(),
	)
	if err != nil {
		return wrapErr(migration.Version, migration.FilePath, "record migration", err)
	}
	return nil
}

// Applied returns every recorded migration ordered by version.
func (e *Executor) Applied(ctx context.Context) ([]AppliedMigration, error) {
	const query = `
		SELECT version, applied_at, COALESCE(checksum, ''), COALESCE(execution_time_ms, 0)
		FROM schema_migrations
		ORDER BY version ASC`

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("", "", "query applied migrations", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var record AppliedMigration
		var appliedAt string
		var executionMs int64
		if err := rows.Scan(&record.Version, &appliedAt, &record.Checksum, &executionMs); err != nil {
			return nil, wrapErr("", "", "scan applied migration", err)
		}
		if parsed, perr := time.Parse(time.RFC3339, appliedAt); perr == nil {
			record.AppliedAt = parsed
		}
		record.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		applied = append(applied, record)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("", "", "iterate applied migrations", err)
	}
	return applied, nil
}

// splitStatements breaks a migration file into executable statements,
// dropping comment-only fragments.
func splitStatements(sqlText string) []string {
	parts := strings.Split(sqlText, ";")
	statements := make([]string, 0, len(parts))

	for _, part := range parts {
		var kept []string
		for _, line := range strings.Split(part, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "--") {
				continue
			}
			kept = append(kept, line)
		}
		if len(kept) > 0 {
			statements = append(statements, strings.Join(kept, "\n"))
		}
	}
	return statements
}
