package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager orchestrates scanning, sequencing, and executing migrations.
type Manager struct {
	scanner  *Scanner
	executor *Executor
	dir      string
	logger   *slog.Logger
}

// NewManager wires a migration manager for the given directory.
func NewManager(scanner *Scanner, executor *Executor, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		dir:      dir,
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order. The sequence must be
// gapless and every applied version must still have its file on disk.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return err
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date")
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "count", len(pending))

	for _, migration := range pending {
		started := time.Now()
		if err := m.executor.Execute(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed",
				"version", migration.Version, "file", migration.FilePath, "error", err)
			return err
		}
		elapsed := time.Since(started)
		if err := m.executor.Record(ctx, migration, elapsed); err != nil {
			return err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version, "description", migration.Description, "duration", elapsed)
	}

	return nil
}

// Pending returns the migrations on disk that have not been applied yet.
func (m *Manager) Pending(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.Scan(m.dir)
	if err != nil {
		return nil, err
	}

	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateSequence(available, applied); err != nil {
		return nil, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, record := range applied {
		appliedSet[record.Version] = struct{}{}
	}

	var pending []Migration
	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// Status reports the current schema version plus applied and pending sets.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	current := ""
	max := 0
	for _, record := range applied {
		if version, err := strconv.Atoi(record.Version); err == nil && version > max {
			max = version
			current = record.Version
		}
	}

	return &Status{CurrentVersion: current, Applied: applied, Pending: pending}, nil
}

// validateSequence rejects gaps in the available versions and applied
// versions whose file has disappeared.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	if len(available) == 0 {
		return nil
	}

	versions := make(map[int]struct{}, len(available))
	min, max := 0, 0
	for i, migration := range available {
		version, err := strconv.Atoi(migration.Version)
		if err != nil {
			return wrapErr(migration.Version, migration.FilePath, "validate sequence", ErrInvalidVersion)
		}
		versions[version] = struct{}{}
		if i == 0 || version < min {
			min = version
		}
		if version > max {
			max = version
		}
	}

	for v := min; v <= max; v++ {
		if _, ok := versions[v]; !ok {
			return fmt.Errorf("%w: missing version %03d", ErrSequenceGap, v)
		}
	}

	for _, record := range applied {
		version, err := strconv.Atoi(record.Version)
		if err != nil {
			return fmt.Errorf("%w: applied version %q is not numeric", ErrInvalidVersion, record.Version)
		}
		if _, ok := versions[version]; !ok {
			return fmt.Errorf("%w: applied version %03d has no migration file", ErrSequenceGap, version)
		}
	}

	return nil
}
