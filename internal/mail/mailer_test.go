package mail

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/appointment-scheduler/internal/persistence"
)

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingMailer(t *testing.T) (*Mailer, *[]capturedMail) {
	t.Helper()

	var sent []capturedMail
	mailer := NewMailer("smtp.example.com:587", "noreply@example.com", slog.New(slog.NewTextHandler(io.Discard, nil)))
	mailer.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return mailer, &sent
}

func testBooking() persistence.Booking {
	return persistence.Booking{
		ID:                "booking-1",
		CancellationToken: "token-1",
		SlotStart:         time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC),
		SlotEnd:           time.Date(2024, time.March, 5, 9, 30, 0, 0, time.UTC),
		CustomerName:      "Ada Lovelace",
		CustomerEmail:     "ada@example.com",
		Status:            persistence.BookingStatusConfirmed,
	}
}

func TestMailerBookingConfirmed(t *testing.T) {
	mailer, sent := newCapturingMailer(t)

	topic := persistence.Topic{Title: "Consulting"}
	provider := persistence.User{DisplayName: "Dr. Grace"}
	require.NoError(t, mailer.BookingConfirmed(context.Background(), testBooking(), topic, provider))

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.Equal(t, "noreply@example.com", mail.from)
	assert.Equal(t, []string{"ada@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Booking confirmed: Consulting")
	assert.Contains(t, mail.msg, "Hello Ada Lovelace,")
	assert.Contains(t, mail.msg, "Dr. Grace")
	assert.Contains(t, mail.msg, "token-1")
}

func TestMailerBookingCancelled(t *testing.T) {
	t.Run("includes the reason when present", func(t *testing.T) {
		mailer, sent := newCapturingMailer(t)

		booking := testBooking()
		booking.CancellationReason = "provider unavailable"
		require.NoError(t, mailer.BookingCancelled(context.Background(), booking))

		require.Len(t, *sent, 1)
		assert.Contains(t, (*sent)[0].msg, "Reason: provider unavailable")
	})

	t.Run("omits the reason line otherwise", func(t *testing.T) {
		mailer, sent := newCapturingMailer(t)

		require.NoError(t, mailer.BookingCancelled(context.Background(), testBooking()))

		require.Len(t, *sent, 1)
		assert.NotContains(t, (*sent)[0].msg, "Reason:")
	})
}

func TestMailerBookingReminder(t *testing.T) {
	mailer, sent := newCapturingMailer(t)

	require.NoError(t, mailer.BookingReminder(context.Background(), testBooking()))

	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Subject: Upcoming appointment reminder")
	assert.Contains(t, (*sent)[0].msg, "2024-03-05")
	assert.Contains(t, (*sent)[0].msg, "09:00")
}

func TestMailerDeliveryFailures(t *testing.T) {
	t.Run("wraps transport errors", func(t *testing.T) {
		mailer, _ := newCapturingMailer(t)
		sendErr := errors.New("connection refused")
		mailer.send = func(string, smtp.Auth, string, []string, []byte) error {
			return sendErr
		}

		err := mailer.BookingReminder(context.Background(), testBooking())
		require.Error(t, err)
		assert.ErrorIs(t, err, sendErr)
	})

	t.Run("refuses an empty recipient", func(t *testing.T) {
		mailer, sent := newCapturingMailer(t)

		booking := testBooking()
		booking.CustomerEmail = "   "
		assert.Error(t, mailer.BookingReminder(context.Background(), booking))
		assert.Empty(t, *sent)
	})
}

func TestNoopMailer(t *testing.T) {
	mailer := NewNoopMailer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	booking := testBooking()

	assert.NoError(t, mailer.BookingConfirmed(ctx, booking, persistence.Topic{}, persistence.User{}))
	assert.NoError(t, mailer.BookingCancelled(ctx, booking))
	assert.NoError(t, mailer.BookingReminder(ctx, booking))
}
