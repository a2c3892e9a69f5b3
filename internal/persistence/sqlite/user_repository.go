package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const userColumns = `id, username, password_hash, display_name, email, auth_method, position, location, show_email, is_admin, created_at, updated_at`

// CreateUser inserts a new account.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.Exec(ctx, query,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		user.Email,
		user.AuthMethod,
		user.Position,
		user.Location,
		boolToInt(user.ShowEmail),
		boolToInt(user.IsAdmin),
		formatTimestamp(user.CreatedAt),
		formatTimestamp(user.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateUser replaces the mutable columns of an account.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	const query = `
		UPDATE users
		SET username = ?, password_hash = ?, display_name = ?, email = ?, auth_method = ?,
		    position = ?, location = ?, show_email = ?, is_admin = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.helper.Exec(ctx, query,
		user.Username,
		user.PasswordHash,
		user.DisplayName,
		user.Email,
		user.AuthMethod,
		user.Position,
		user.Location,
		boolToInt(user.ShowEmail),
		boolToInt(user.IsAdmin),
		formatTimestamp(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// GetUser retrieves an account by id.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.helper.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves an account by login name.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(r.helper.QueryRow(ctx, query, username))
}

// ListUsers returns every account ordered by display name.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY display_name ASC, id ASC`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return users, nil
}

// CountAdmins reports how many administrator accounts exist.
func (r *UserRepository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE is_admin = 1`).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// DeleteUser removes an account; dependent rows cascade.
func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row *sql.Row) (persistence.User, error) {
	user, err := r.scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, err
	}
	return user, nil
}

func (r *UserRepository) scanUserRow(row rowScanner) (persistence.User, error) {
	var user persistence.User
	var showEmail, isAdmin int
	var createdAt, updatedAt string

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.Email,
		&user.AuthMethod,
		&user.Position,
		&user.Location,
		&showEmail,
		&isAdmin,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, err
		}
		return persistence.User{}, r.mapper.MapError(err)
	}

	user.ShowEmail = showEmail != 0
	user.IsAdmin = isAdmin != 0
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// requireRows converts a zero-row result into ErrNotFound.
func requireRows(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
