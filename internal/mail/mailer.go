// Package mail delivers booking notifications to customers over SMTP.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// sendFunc matches smtp.SendMail so tests can capture outgoing messages.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders and sends booking lifecycle mail through a single SMTP
// endpoint. The zero value is not usable; construct it with NewMailer.
type Mailer struct {
	addr   string
	from   string
	send   sendFunc
	logger *slog.Logger
}

func NewMailer(addr, from string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		addr:   addr,
		from:   from,
		send:   smtp.SendMail,
		logger: logger.With("component", "mail"),
	}
}

// BookingConfirmed mails the customer their confirmation including the
// cancellation token issued at booking time.
func (m *Mailer) BookingConfirmed(ctx context.Context, booking persistence.Booking, topic persistence.Topic, provider persistence.User) error {
	subject := fmt.Sprintf("Booking confirmed: %s", topic.Title)
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", booking.CustomerName),
		"",
		fmt.Sprintf("Your booking for %q with %s is confirmed.", topic.Title, provider.DisplayName),
		fmt.Sprintf("Date: %s", booking.SlotStart.Format("2006-01-02")),
		fmt.Sprintf("Time: %s - %s", booking.SlotStart.Format("15:04"), booking.SlotEnd.Format("15:04")),
		"",
		fmt.Sprintf("To cancel, use this token: %s", booking.CancellationToken),
	}, "\r\n")

	return m.deliver(ctx, booking.CustomerEmail, subject, body)
}

// BookingCancelled informs the customer that their booking was cancelled.
func (m *Mailer) BookingCancelled(ctx context.Context, booking persistence.Booking) error {
	subject := "Booking cancelled"
	lines := []string{
		fmt.Sprintf("Hello %s,", booking.CustomerName),
		"",
		fmt.Sprintf("Your booking on %s at %s has been cancelled.",
			booking.SlotStart.Format("2006-01-02"), booking.SlotStart.Format("15:04")),
	}
	if reason := strings.TrimSpace(booking.CancellationReason); reason != "" {
		lines = append(lines, fmt.Sprintf("Reason: %s", reason))
	}

	return m.deliver(ctx, booking.CustomerEmail, subject, strings.Join(lines, "\r\n"))
}

// BookingReminder reminds the customer shortly before their slot starts.
func (m *Mailer) BookingReminder(ctx context.Context, booking persistence.Booking) error {
	subject := "Upcoming appointment reminder"
	body := strings.Join([]string{
		fmt.Sprintf("Hello %s,", booking.CustomerName),
		"",
		fmt.Sprintf("This is a reminder for your appointment on %s at %s.",
			booking.SlotStart.Format("2006-01-02"), booking.SlotStart.Format("15:04")),
	}, "\r\n")

	return m.deliver(ctx, booking.CustomerEmail, subject, body)
}

func (m *Mailer) deliver(ctx context.Context, to, subject, body string) error {
	if m == nil {
		return fmt.Errorf("Mailer is nil")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s", m.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		fmt.Sprintf("Date: %s", time.Now().UTC().Format(time.RFC1123Z)),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	if err := m.send(m.addr, nil, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	m.logger.InfoContext(ctx, "mail sent", "to", to, "subject", subject)
	return nil
}

// NoopMailer satisfies the notifier contract when no SMTP endpoint is
// configured. Every delivery is logged and dropped.
type NoopMailer struct {
	logger *slog.Logger
}

func NewNoopMailer(logger *slog.Logger) *NoopMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopMailer{logger: logger.With("component", "mail")}
}

func (m *NoopMailer) BookingConfirmed(ctx context.Context, booking persistence.Booking, _ persistence.Topic, _ persistence.User) error {
	m.logger.InfoContext(ctx, "mail disabled, dropping confirmation", "booking_id", booking.ID)
	return nil
}

func (m *NoopMailer) BookingCancelled(ctx context.Context, booking persistence.Booking) error {
	m.logger.InfoContext(ctx, "mail disabled, dropping cancellation notice", "booking_id", booking.ID)
	return nil
}

func (m *NoopMailer) BookingReminder(ctx context.Context, booking persistence.Booking) error {
	m.logger.InfoContext(ctx, "mail disabled, dropping reminder", "booking_id", booking.ID)
	return nil
}
