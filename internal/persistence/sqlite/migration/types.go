// Package migration applies versioned SQL schema files to a SQLite database.
//
// Migration files live in a directory and follow the naming convention
// {version}_{description}.sql (for example "001_initial_schema.sql"). Applied
// versions are tracked in a schema_migrations table so each file runs once,
// inside its own transaction.
package migration

import "time"

// Migration is a parsed schema file awaiting execution.
type Migration struct {
	Version     string
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration records a migration that has already run.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises the schema state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}
