package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookingRepository creates a SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const bookingColumns = `id, cancellation_token, slot_start, slot_end, customer_name, customer_email, customer_phone, status, cancellation_reason, reminder_sent, is_archived, topic_id, provider_id, created_at, updated_at`

// CreateBooking inserts a booking. The overlap check and the insert run in
// one transaction so two racing requests for the same interval cannot both
// succeed; the loser gets ErrDuplicate.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		const overlapQuery = `
			SELECT 1 FROM bookings
			WHERE provider_id = ? AND status = ? AND slot_start < ? AND slot_end > ?
			LIMIT 1`

		var exists int
		err := r.helper.QueryRowTx(tx, overlapQuery,
			booking.ProviderID,
			persistence.BookingStatusConfirmed,
			formatTimestamp(booking.SlotEnd),
			formatTimestamp(booking.SlotStart),
		).Scan(&exists)
		if err == nil {
			return fmt.Errorf("%w: slot overlaps an existing booking", persistence.ErrDuplicate)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return r.mapper.MapError(err)
		}

		const insert = `
			INSERT INTO bookings (` + bookingColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err = r.helper.ExecTx(tx, insert,
			booking.ID,
			booking.CancellationToken,
			formatTimestamp(booking.SlotStart),
			formatTimestamp(booking.SlotEnd),
			booking.CustomerName,
			booking.CustomerEmail,
			booking.CustomerPhone,
			booking.Status,
			booking.CancellationReason,
			boolToInt(booking.ReminderSent),
			boolToInt(booking.IsArchived),
			booking.TopicID,
			booking.ProviderID,
			formatTimestamp(booking.CreatedAt),
			formatTimestamp(booking.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// GetBooking retrieves a booking by id.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetBookingByToken retrieves a booking by its cancellation token.
func (r *BookingRepository) GetBookingByToken(ctx context.Context, token string) (persistence.Booking, error) {
	const query = `SELECT ` + bookingColumns + ` FROM bookings WHERE cancellation_token = ?`
	return r.getOne(ctx, query, token)
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg any) (persistence.Booking, error) {
	booking, err := r.scanBooking(r.helper.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, persistence.ErrNotFound
		}
		return persistence.Booking{}, err
	}
	return booking, nil
}

// ListBookings returns a provider's bookings filtered by archive state,
// ordered by slot start.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE provider_id = ? AND is_archived = ?
		ORDER BY slot_start ASC, id ASC`
	return r.listBookings(ctx, query, filter.ProviderID, boolToInt(filter.Archived))
}

// ListConfirmedOverlapping returns confirmed bookings of a provider that
// intersect the half-open window [from, to).
func (r *BookingRepository) ListConfirmedOverlapping(ctx context.Context, providerID string, from, to time.Time) ([]persistence.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE provider_id = ? AND status = ? AND slot_start < ? AND slot_end > ?
		ORDER BY slot_start ASC, id ASC`
	return r.listBookings(ctx, query, providerID, persistence.BookingStatusConfirmed, formatTimestamp(to), formatTimestamp(from))
}

// UpdateBooking replaces the mutable columns of a booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	const query = `
		UPDATE bookings
		SET status = ?, cancellation_reason = ?, reminder_sent = ?, is_archived = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.helper.Exec(ctx, query,
		booking.Status,
		booking.CancellationReason,
		boolToInt(booking.ReminderSent),
		boolToInt(booking.IsArchived),
		formatTimestamp(booking.UpdatedAt),
		booking.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// DeleteBooking removes a booking by id.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// ArchivePastBookings flags unarchived bookings that ended before reference.
func (r *BookingRepository) ArchivePastBookings(ctx context.Context, reference time.Time) (int, error) {
	const query = `
		UPDATE bookings
		SET is_archived = 1, updated_at = ?
		WHERE is_archived = 0 AND slot_end < ?`

	result, err := r.helper.Exec(ctx, query, formatTimestamp(reference), formatTimestamp(reference))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ListDueReminders returns confirmed, unreminded bookings starting within
// [from, to).
func (r *BookingRepository) ListDueReminders(ctx context.Context, from, to time.Time) ([]persistence.Booking, error) {
	const query = `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = ? AND reminder_sent = 0 AND slot_start >= ? AND slot_start < ?
		ORDER BY slot_start ASC, id ASC`
	return r.listBookings(ctx, query, persistence.BookingStatusConfirmed, formatTimestamp(from), formatTimestamp(to))
}

// MarkReminderSent flags a booking as reminded.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE bookings SET reminder_sent = 1, updated_at = ? WHERE id = ?`

	result, err := r.helper.Exec(ctx, query, formatTimestamp(sentAt), id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

func (r *BookingRepository) listBookings(ctx context.Context, query string, args ...any) ([]persistence.Booking, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var bookings []persistence.Booking
	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return bookings, nil
}

func (r *BookingRepository) scanBooking(row rowScanner) (persistence.Booking, error) {
	var booking persistence.Booking
	var reminderSent, isArchived int
	var slotStart, slotEnd, createdAt, updatedAt string

	err := row.Scan(
		&booking.ID,
		&booking.CancellationToken,
		&slotStart,
		&slotEnd,
		&booking.CustomerName,
		&booking.CustomerEmail,
		&booking.CustomerPhone,
		&booking.Status,
		&booking.CancellationReason,
		&reminderSent,
		&isArchived,
		&booking.TopicID,
		&booking.ProviderID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Booking{}, err
		}
		return persistence.Booking{}, r.mapper.MapError(err)
	}

	booking.ReminderSent = reminderSent != 0
	booking.IsArchived = isArchived != 0
	if booking.SlotStart, err = parseTimestamp(slotStart); err != nil {
		return persistence.Booking{}, err
	}
	if booking.SlotEnd, err = parseTimestamp(slotEnd); err != nil {
		return persistence.Booking{}, err
	}
	if booking.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}
