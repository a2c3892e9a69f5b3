package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScannerParse(t *testing.T) {
	scanner := NewScanner()
	dir := t.TempDir()

	t.Run("parses a well formed file", func(t *testing.T) {
		path := writeMigration(t, dir, "001_initial_schema.sql", "CREATE TABLE users (id TEXT);")

		migration, err := scanner.Parse(path)
		require.NoError(t, err)

		assert.Equal(t, "001", migration.Version)
		assert.Equal(t, "initial schema", migration.Description)
		assert.Contains(t, migration.SQL, "CREATE TABLE users")
		assert.NotEmpty(t, migration.Checksum)
	})

	t.Run("rejects a misnamed file", func(t *testing.T) {
		path := writeMigration(t, dir, "schema.sql", "CREATE TABLE x (id TEXT);")

		_, err := scanner.Parse(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("rejects an empty file", func(t *testing.T) {
		path := writeMigration(t, dir, "002_empty.sql", "   \n")

		_, err := scanner.Parse(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("checksum tracks content", func(t *testing.T) {
		first := writeMigration(t, t.TempDir(), "001_a.sql", "CREATE TABLE a (id TEXT);")
		second := writeMigration(t, t.TempDir(), "001_a.sql", "CREATE TABLE b (id TEXT);")

		m1, err := scanner.Parse(first)
		require.NoError(t, err)
		m2, err := scanner.Parse(second)
		require.NoError(t, err)

		assert.NotEqual(t, m1.Checksum, m2.Checksum)
	})
}

func TestScannerScan(t *testing.T) {
	scanner := NewScanner()

	t.Run("returns migrations sorted by version", func(t *testing.T) {
		dir := t.TempDir()
		writeMigration(t, dir, "010_third.sql", "SELECT 3;")
		writeMigration(t, dir, "001_first.sql", "SELECT 1;")
		writeMigration(t, dir, "002_second.sql", "SELECT 2;")
		writeMigration(t, dir, "notes.txt", "not a migration")

		migrations, err := scanner.Scan(dir)
		require.NoError(t, err)
		require.Len(t, migrations, 3)

		assert.Equal(t, "001", migrations[0].Version)
		assert.Equal(t, "002", migrations[1].Version)
		assert.Equal(t, "010", migrations[2].Version)
	})

	t.Run("rejects duplicate versions", func(t *testing.T) {
		dir := t.TempDir()
		writeMigration(t, dir, "001_first.sql", "SELECT 1;")
		writeMigration(t, dir, "001_also_first.sql", "SELECT 1;")

		_, err := scanner.Scan(dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateVersion)
	})

	t.Run("fails on a missing directory", func(t *testing.T) {
		_, err := scanner.Scan(filepath.Join(t.TempDir(), "does-not-exist"))
		require.Error(t, err)
	})
}

func TestValidateSequence(t *testing.T) {
	t.Run("accepts a gapless sequence", func(t *testing.T) {
		available := []Migration{{Version: "001"}, {Version: "002"}, {Version: "003"}}
		assert.NoError(t, validateSequence(available, nil))
	})

	t.Run("rejects gaps", func(t *testing.T) {
		available := []Migration{{Version: "001"}, {Version: "003"}}
		err := validateSequence(available, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSequenceGap)
	})

	t.Run("rejects applied versions without files", func(t *testing.T) {
		available := []Migration{{Version: "001"}}
		applied := []AppliedMigration{{Version: "002"}}
		err := validateSequence(available, applied)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSequenceGap)
	})

	t.Run("accepts an empty directory", func(t *testing.T) {
		assert.NoError(t, validateSequence(nil, nil))
	})
}
