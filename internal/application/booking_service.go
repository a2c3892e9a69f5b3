package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// SettingKeyReminderLeadTime is the settings key for how many minutes before
// a slot starts the reminder mail goes out.
const SettingKeyReminderLeadTime = "reminder_lead_time"

const defaultReminderLeadMinutes = 10

// BookingStore captures the persistence interactions for booking management.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking persistence.Booking) error
	GetBooking(ctx context.Context, id string) (persistence.Booking, error)
	GetBookingByToken(ctx context.Context, token string) (persistence.Booking, error)
	ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error)
	UpdateBooking(ctx context.Context, booking persistence.Booking) error
	DeleteBooking(ctx context.Context, id string) error
	ArchivePastBookings(ctx context.Context, reference time.Time) (int, error)
	ListDueReminders(ctx context.Context, from, to time.Time) ([]persistence.Booking, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error
}

// BookingNotifier delivers customer facing booking mail. Implementations must
// tolerate being called with a nil context logger; delivery failures never
// fail the triggering operation.
type BookingNotifier interface {
	BookingConfirmed(ctx context.Context, booking persistence.Booking, topic persistence.Topic, provider persistence.User) error
	BookingCancelled(ctx context.Context, booking persistence.Booking) error
	BookingReminder(ctx context.Context, booking persistence.Booking) error
}

// ProviderDirectory exposes the provider lookup mail rendering needs.
type ProviderDirectory interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

// BookingService handles the public booking flow and the provider's booking
// management surface.
type BookingService struct {
	bookings       BookingStore
	topics         SlotTopicCatalog
	users          ProviderDirectory
	settings       SlotSettingsSource
	notifier       BookingNotifier
	idGenerator    func() string
	tokenGenerator func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(bookings BookingStore, topics SlotTopicCatalog, users ProviderDirectory, settings SlotSettingsSource, notifier BookingNotifier, idGenerator, tokenGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, topics, users, settings, notifier, idGenerator, tokenGenerator, now, nil)
}

// NewBookingServiceWithLogger wires dependencies with an explicit base logger.
func NewBookingServiceWithLogger(bookings BookingStore, topics SlotTopicCatalog, users ProviderDirectory, settings SlotSettingsSource, notifier BookingNotifier, idGenerator, tokenGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:       bookings,
		topics:         topics,
		users:          users,
		settings:       settings,
		notifier:       notifier,
		idGenerator:    idGenerator,
		tokenGenerator: tokenGenerator,
		now:            now,
		logger:         defaultLogger(logger),
	}
}

// Book reserves a slot for a customer. The slot end derives from the topic's
// duration, and the insert fails with ErrSlotTaken when a confirmed booking
// already overlaps the interval.
func (s *BookingService) Book(ctx context.Context, request BookingRequest) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "booking", "book", "topic_id", request.TopicID)

	vErr := &ValidationError{}
	if strings.TrimSpace(request.CustomerName) == "" {
		vErr.add("customer_name", "name is required")
	}
	if strings.TrimSpace(request.CustomerEmail) == "" {
		vErr.add("customer_email", "email is required")
	} else if _, err := mail.ParseAddress(request.CustomerEmail); err != nil {
		vErr.add("customer_email", "email must be a valid address")
	}
	if request.TopicID == "" {
		vErr.add("topic_id", "topic id is required")
	}
	if request.SlotTimestamp.IsZero() {
		vErr.add("slot", "slot timestamp is required")
	}
	if vErr.HasErrors() {
		return persistence.Booking{}, vErr
	}

	topic, err := s.topics.GetTopic(ctx, request.TopicID)
	if err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}

	createdAt := s.now()
	booking := persistence.Booking{
		ID:                s.idGenerator(),
		CancellationToken: s.tokenGenerator(),
		SlotStart:         request.SlotTimestamp,
		SlotEnd:           request.SlotTimestamp.Add(time.Duration(topic.DurationMinutes) * time.Minute),
		CustomerName:      strings.TrimSpace(request.CustomerName),
		CustomerEmail:     strings.TrimSpace(request.CustomerEmail),
		CustomerPhone:     strings.TrimSpace(request.CustomerPhone),
		Status:            persistence.BookingStatusConfirmed,
		TopicID:           topic.ID,
		ProviderID:        topic.UserID,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}

	if err := s.bookings.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return persistence.Booking{}, ErrSlotTaken
		}
		return persistence.Booking{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "booking created", "booking_id", booking.ID, "provider_id", booking.ProviderID)
	s.notifyConfirmed(ctx, logger, booking, topic)
	return booking, nil
}

// CancelByToken cancels a booking through its customer cancellation token.
func (s *BookingService) CancelByToken(ctx context.Context, token, reason string) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "booking", "cancel_by_token")

	booking, err := s.bookings.GetBookingByToken(ctx, token)
	if err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}

	return s.cancel(ctx, logger, booking, reason)
}

// CancelBooking cancels a booking on behalf of its provider.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID, reason string) (persistence.Booking, error) {
	if s == nil {
		return persistence.Booking{}, fmt.Errorf("BookingService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "booking", "cancel", "user_id", principal.UserID)

	booking, err := s.ownedBooking(ctx, principal, bookingID)
	if err != nil {
		return persistence.Booking{}, err
	}

	return s.cancel(ctx, logger, booking, reason)
}

func (s *BookingService) cancel(ctx context.Context, logger *slog.Logger, booking persistence.Booking, reason string) (persistence.Booking, error) {
	if booking.Status == persistence.BookingStatusCancelled {
		return booking, nil
	}

	booking.Status = persistence.BookingStatusCancelled
	booking.CancellationReason = strings.TrimSpace(reason)
	booking.UpdatedAt = s.now()

	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "booking cancelled", "booking_id", booking.ID)
	if s.notifier != nil {
		if err := s.notifier.BookingCancelled(ctx, booking); err != nil {
			logger.WarnContext(ctx, "cancellation mail failed", "booking_id", booking.ID, "error", err)
		}
	}
	return booking, nil
}

// ListBookings returns the acting provider's bookings, filtered by archive
// state.
func (s *BookingService) ListBookings(ctx context.Context, principal Principal, archived bool) ([]persistence.Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	bookings, err := s.bookings.ListBookings(ctx, persistence.BookingFilter{ProviderID: principal.UserID, Archived: archived})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return bookings, nil
}

// ArchiveBooking flags a booking as archived for the acting provider.
func (s *BookingService) ArchiveBooking(ctx context.Context, principal Principal, bookingID string) error {
	return s.setArchived(ctx, principal, bookingID, true)
}

// UnarchiveBooking restores an archived booking for the acting provider.
func (s *BookingService) UnarchiveBooking(ctx context.Context, principal Principal, bookingID string) error {
	return s.setArchived(ctx, principal, bookingID, false)
}

func (s *BookingService) setArchived(ctx context.Context, principal Principal, bookingID string, archived bool) error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}

	booking, err := s.ownedBooking(ctx, principal, bookingID)
	if err != nil {
		return err
	}
	if booking.IsArchived == archived {
		return nil
	}

	booking.IsArchived = archived
	booking.UpdatedAt = s.now()
	if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// DeleteBooking permanently removes a booking for the acting provider.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, bookingID string) error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}

	if _, err := s.ownedBooking(ctx, principal, bookingID); err != nil {
		return err
	}
	if err := s.bookings.DeleteBooking(ctx, bookingID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// ArchivePastBookings flags every unarchived booking that has already ended.
// The sweep job calls this on an interval.
func (s *BookingService) ArchivePastBookings(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("BookingService is nil")
	}

	count, err := s.bookings.ArchivePastBookings(ctx, s.now())
	if err != nil {
		return 0, mapRepoError(err)
	}
	return count, nil
}

// SendDueReminders mails customers whose confirmed booking starts within the
// reminder lead time and marks them reminded. Individual delivery failures
// are logged and skipped.
func (s *BookingService) SendDueReminders(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("BookingService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "booking", "send_reminders")

	now := s.now()
	lead := s.reminderLead(ctx)
	due, err := s.bookings.ListDueReminders(ctx, now, now.Add(lead))
	if err != nil {
		return 0, mapRepoError(err)
	}

	sent := 0
	for _, booking := range due {
		if s.notifier != nil {
			if err := s.notifier.BookingReminder(ctx, booking); err != nil {
				logger.WarnContext(ctx, "reminder mail failed", "booking_id", booking.ID, "error", err)
				continue
			}
		}
		if err := s.bookings.MarkReminderSent(ctx, booking.ID, now); err != nil {
			logger.WarnContext(ctx, "reminder flag update failed", "booking_id", booking.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *BookingService) reminderLead(ctx context.Context) time.Duration {
	lead := defaultReminderLeadMinutes
	if s.settings != nil {
		if setting, err := s.settings.GetSetting(ctx, SettingKeyReminderLeadTime); err == nil {
			if minutes, convErr := strconv.Atoi(setting.Value); convErr == nil && minutes > 0 {
				lead = minutes
			}
		}
	}
	return time.Duration(lead) * time.Minute
}

func (s *BookingService) ownedBooking(ctx context.Context, principal Principal, bookingID string) (persistence.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return persistence.Booking{}, mapRepoError(err)
	}
	if booking.ProviderID != principal.UserID && !principal.IsAdmin {
		return persistence.Booking{}, ErrUnauthorized
	}
	return booking, nil
}

func (s *BookingService) notifyConfirmed(ctx context.Context, logger *slog.Logger, booking persistence.Booking, topic persistence.Topic) {
	if s.notifier == nil {
		return
	}

	var provider persistence.User
	if s.users != nil {
		loaded, err := s.users.GetUser(ctx, booking.ProviderID)
		if err != nil {
			logger.WarnContext(ctx, "provider lookup for mail failed", "booking_id", booking.ID, "error", err)
		} else {
			provider = loaded
		}
	}

	if err := s.notifier.BookingConfirmed(ctx, booking, topic, provider); err != nil {
		logger.WarnContext(ctx, "confirmation mail failed", "booking_id", booking.ID, "error", err)
	}
}
