package migration

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// filePattern matches {version}_{description}.sql with a numeric version.
var filePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migration files from a directory.
type Scanner struct{}

// NewScanner creates a migration file scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan reads every migration file in dir, sorted by version. Duplicate
// versions and malformed names fail the scan.
func (s *Scanner) Scan(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapErr("", dir, "read directory", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		migration, err := s.Parse(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		if existing, ok := seen[migration.Version]; ok {
			return nil, wrapErr(migration.Version, entry.Name(), "scan",
				fmt.Errorf("%w: version appears in %s and %s", ErrDuplicateVersion, existing, entry.Name()))
		}
		seen[migration.Version] = entry.Name()

		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})

	return migrations, nil
}

// Parse reads and validates a single migration file.
func (s *Scanner) Parse(path string) (*Migration, error) {
	name := filepath.Base(path)
	matches := filePattern.FindStringSubmatch(name)
	if len(matches) != 3 {
		return nil, wrapErr("", path, "parse filename",
			fmt.Errorf("%w: %q does not match {version}_{description}.sql", ErrInvalidFile, name))
	}
	version, description := matches[1], matches[2]

	if _, err := strconv.Atoi(version); err != nil {
		return nil, wrapErr(version, path, "parse version", ErrInvalidVersion)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapErr(version, path, "read file", err)
	}
	sqlText := string(content)
	if strings.TrimSpace(sqlText) == "" {
		return nil, wrapErr(version, path, "validate content",
			fmt.Errorf("%w: file is empty", ErrInvalidFile))
	}

	return &Migration{
		Version:     version,
		Description: strings.ReplaceAll(description, "_", " "),
		SQL:         sqlText,
		FilePath:    path,
		Checksum:    checksum(sqlText),
	}, nil
}

func checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}
