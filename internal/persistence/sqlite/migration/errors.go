package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFile indicates a migration file is malformed or misnamed.
	ErrInvalidFile = errors.New("invalid migration file")
	// ErrInvalidVersion indicates a migration version is not numeric.
	ErrInvalidVersion = errors.New("invalid migration version")
	// ErrDuplicateVersion indicates two files share a version number.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrSequenceGap indicates a missing version in the migration sequence.
	ErrSequenceGap = errors.New("gap in migration sequence")
	// ErrExecutionFailed indicates a migration's SQL failed to apply.
	ErrExecutionFailed = errors.New("migration execution failed")
)

// Error carries the version and file of a failed migration step.
type Error struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *Error) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration (%s): %s: %v", e.FilePath, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(version, filePath, operation string, err error) *Error {
	return &Error{Version: version, FilePath: filePath, Operation: operation, Err: err}
}
