package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/appointment-scheduler/internal/persistence"
	"github.com/example/appointment-scheduler/internal/testfixtures"
)

// seedProvider stores a user with one topic and returns both.
func seedProvider(t *testing.T, harness *testfixtures.SQLiteHarness) (persistence.User, persistence.Topic) {
	t.Helper()
	ctx := context.Background()

	user := testfixtures.NewUserFixture().Persistence()
	require.NoError(t, harness.Users.CreateUser(ctx, user))
	topic := testfixtures.NewTopicFixture(user.ID)
	require.NoError(t, harness.Topics.CreateTopic(ctx, topic))
	return user, topic
}

func TestBookingRepositoryCreateBooking(t *testing.T) {
	ctx := context.Background()
	slotStart := testfixtures.ReferenceTime().Add(48 * time.Hour)

	t.Run("stores and reloads a booking", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)
		booking := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart)

		require.NoError(t, harness.Bookings.CreateBooking(ctx, booking))

		loaded, err := harness.Bookings.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.True(t, loaded.SlotStart.Equal(booking.SlotStart))
		assert.Equal(t, booking.CustomerEmail, loaded.CustomerEmail)

		byToken, err := harness.Bookings.GetBookingByToken(ctx, booking.CancellationToken)
		require.NoError(t, err)
		assert.Equal(t, booking.ID, byToken.ID)
	})

	t.Run("rejects overlapping confirmed bookings", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)

		first := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart)
		require.NoError(t, harness.Bookings.CreateBooking(ctx, first))

		// Starts halfway through the first booking's interval.
		second := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart.Add(15*time.Minute))
		err := harness.Bookings.CreateBooking(ctx, second)
		require.Error(t, err)
		assert.ErrorIs(t, err, persistence.ErrDuplicate)
	})

	t.Run("allows back to back bookings", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)

		first := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart)
		require.NoError(t, harness.Bookings.CreateBooking(ctx, first))

		adjacent := testfixtures.NewBookingFixture(user.ID, topic.ID, first.SlotEnd)
		assert.NoError(t, harness.Bookings.CreateBooking(ctx, adjacent))
	})

	t.Run("ignores cancelled bookings in the overlap check", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)

		cancelled := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart,
			testfixtures.WithBookingStatus(persistence.BookingStatusCancelled))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, cancelled))

		rebooked := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart)
		assert.NoError(t, harness.Bookings.CreateBooking(ctx, rebooked))
	})

	t.Run("scopes the overlap check to the provider", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		firstUser, firstTopic := seedProvider(t, harness)
		secondUser, secondTopic := seedProvider(t, harness)

		require.NoError(t, harness.Bookings.CreateBooking(ctx,
			testfixtures.NewBookingFixture(firstUser.ID, firstTopic.ID, slotStart)))
		assert.NoError(t, harness.Bookings.CreateBooking(ctx,
			testfixtures.NewBookingFixture(secondUser.ID, secondTopic.ID, slotStart)))
	})
}

func TestBookingRepositoryListing(t *testing.T) {
	ctx := context.Background()
	slotStart := testfixtures.ReferenceTime().Add(48 * time.Hour)

	t.Run("filters by archive state", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)

		active := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart)
		archived := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart.Add(2*time.Hour),
			testfixtures.WithBookingArchived(true))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, active))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, archived))

		current, err := harness.Bookings.ListBookings(ctx, persistence.BookingFilter{ProviderID: user.ID})
		require.NoError(t, err)
		require.Len(t, current, 1)
		assert.Equal(t, active.ID, current[0].ID)

		old, err := harness.Bookings.ListBookings(ctx, persistence.BookingFilter{ProviderID: user.ID, Archived: true})
		require.NoError(t, err)
		require.Len(t, old, 1)
		assert.Equal(t, archived.ID, old[0].ID)
	})

	t.Run("returns confirmed bookings overlapping a window", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)

		inside := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart)
		outside := testfixtures.NewBookingFixture(user.ID, topic.ID, slotStart.Add(24*time.Hour))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, inside))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, outside))

		found, err := harness.Bookings.ListConfirmedOverlapping(ctx, user.ID, slotStart.Add(-time.Hour), slotStart.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, inside.ID, found[0].ID)
	})
}

func TestBookingRepositorySweeps(t *testing.T) {
	ctx := context.Background()

	t.Run("archives bookings that already ended", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)
		clock := testfixtures.NewClock(time.Time{})

		past := testfixtures.NewBookingFixture(user.ID, topic.ID, clock.Current().Add(-2*time.Hour))
		future := testfixtures.NewBookingFixture(user.ID, topic.ID, clock.Current().Add(2*time.Hour))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, past))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, future))

		count, err := harness.Bookings.ArchivePastBookings(ctx, clock.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		loaded, err := harness.Bookings.GetBooking(ctx, past.ID)
		require.NoError(t, err)
		assert.True(t, loaded.IsArchived)

		// An hour later the future booking is still running, so the sweep
		// finds nothing new.
		clock.Advance(time.Hour)
		count, err = harness.Bookings.ArchivePastBookings(ctx, clock.Now())
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("lists and marks due reminders", func(t *testing.T) {
		harness := testfixtures.NewSQLiteHarness(t)
		user, topic := seedProvider(t, harness)
		clock := testfixtures.NewClock(time.Time{})

		soon := testfixtures.NewBookingFixture(user.ID, topic.ID, clock.Current().Add(5*time.Minute))
		later := testfixtures.NewBookingFixture(user.ID, topic.ID, clock.Current().Add(3*time.Hour))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, soon))
		require.NoError(t, harness.Bookings.CreateBooking(ctx, later))

		due, err := harness.Bookings.ListDueReminders(ctx, clock.Now(), clock.Current().Add(10*time.Minute))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, soon.ID, due[0].ID)

		require.NoError(t, harness.Bookings.MarkReminderSent(ctx, soon.ID, clock.Now()))

		due, err = harness.Bookings.ListDueReminders(ctx, clock.Now(), clock.Current().Add(10*time.Minute))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}
