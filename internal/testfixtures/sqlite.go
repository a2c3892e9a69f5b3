package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/example/appointment-scheduler/internal/persistence/sqlite"
	"github.com/example/appointment-scheduler/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Pool         *sqlite.ConnectionPool
	Users        *sqlite.UserRepository
	Availability *sqlite.AvailabilityRepository
	TimeOff      *sqlite.TimeOffRepository
	Topics       *sqlite.TopicRepository
	Bookings     *sqlite.BookingRepository
	Batches      *sqlite.BatchConfigRepository
	Departments  *sqlite.DepartmentRepository
	Settings     *sqlite.SettingsRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary database file
// migrated to the current schema. A cleanup callback is registered with the
// provided testing.TB, so calling Close is optional.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	dir := tb.TempDir()
	path := filepath.Join(dir, "appointments.db")

	pool, err := sqlite.NewConnectionPool("file:" + path)
	if err != nil {
		tb.Fatalf("failed to open database: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := migration.NewManager(migration.NewScanner(), migration.NewExecutor(pool.DB()), migrationDir(), logger)
	if err := manager.Run(context.Background()); err != nil {
		_ = pool.Close()
		tb.Fatalf("failed to migrate database: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:         pool,
		Users:        sqlite.NewUserRepository(pool),
		Availability: sqlite.NewAvailabilityRepository(pool),
		TimeOff:      sqlite.NewTimeOffRepository(pool),
		Topics:       sqlite.NewTopicRepository(pool),
		Bookings:     sqlite.NewBookingRepository(pool),
		Batches:      sqlite.NewBatchConfigRepository(pool),
		Departments:  sqlite.NewDepartmentRepository(pool),
		Settings:     sqlite.NewSettingsRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// migrationDir resolves the repository's migrations directory relative to
// this source file, so tests work from any package directory.
func migrationDir() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
}
