package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/appointment-scheduler/internal/application"
	"github.com/example/appointment-scheduler/internal/persistence"
)

var (
	userCounter    uint64
	topicCounter   uint64
	ruleCounter    uint64
	bookingCounter uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	Email        string
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Username:     id,
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		IsAdmin:      false,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUsername overrides the generated login name.
func WithUsername(username string) UserOption {
	return func(f *UserFixture) {
		f.Username = username
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserAdmin sets the admin flag on the generated fixture.
func WithUserAdmin(isAdmin bool) UserOption {
	return func(f *UserFixture) {
		f.IsAdmin = isAdmin
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, IsAdmin: f.IsAdmin}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Username:     f.Username,
		PasswordHash: f.PasswordHash,
		DisplayName:  f.DisplayName,
		Email:        f.Email,
		AuthMethod:   "local",
		IsAdmin:      f.IsAdmin,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Topic fixtures -----------------------------

// TopicOption configures the generated topic.
type TopicOption func(*persistence.Topic)

// NewTopicFixture returns a deterministic topic owned by the given user.
func NewTopicFixture(userID string, opts ...TopicOption) persistence.Topic {
	idx := atomic.AddUint64(&topicCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	topic := persistence.Topic{
		ID:              fmt.Sprintf("topic-%03d", idx),
		UserID:          userID,
		Title:           fmt.Sprintf("Topic %03d", idx),
		DurationMinutes: 30,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	for _, opt := range opts {
		opt(&topic)
	}
	return topic
}

// WithTopicDuration overrides the slot duration in minutes.
func WithTopicDuration(minutes int) TopicOption {
	return func(t *persistence.Topic) {
		t.DurationMinutes = minutes
	}
}

// WithTopicBatch marks the topic as owned by a batch rule.
func WithTopicBatch(batchID string) TopicOption {
	return func(t *persistence.Topic) {
		t.OwnerBatchID = &batchID
	}
}

// ----------------------- Availability rule fixtures -----------------------

// RuleOption configures the generated availability rule.
type RuleOption func(*persistence.AvailabilityRule)

// NewWeeklyRuleFixture returns a weekly availability rule for the given user
// and weekday.
func NewWeeklyRuleFixture(userID string, weekday time.Weekday, opts ...RuleOption) persistence.AvailabilityRule {
	idx := atomic.AddUint64(&ruleCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	rule := persistence.AvailabilityRule{
		ID:        fmt.Sprintf("rule-%03d", idx),
		UserID:    userID,
		Kind:      "weekly",
		Weekday:   &weekday,
		StartTime: "09:00",
		EndTime:   "17:00",
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&rule)
	}
	return rule
}

// WithRuleKind overrides the recurrence kind.
func WithRuleKind(kind string) RuleOption {
	return func(r *persistence.AvailabilityRule) {
		r.Kind = kind
	}
}

// WithRuleWindow overrides the daily start and end clock times.
func WithRuleWindow(start, end string) RuleOption {
	return func(r *persistence.AvailabilityRule) {
		r.StartTime = start
		r.EndTime = end
	}
}

// WithRuleSpecificDate turns the rule into a specific_date rule for the day.
func WithRuleSpecificDate(date time.Time) RuleOption {
	return func(r *persistence.AvailabilityRule) {
		r.Kind = "specific_date"
		r.Weekday = nil
		r.SpecificDate = &date
	}
}

// WithRuleValidUntil caps the rule's active period.
func WithRuleValidUntil(date time.Time) RuleOption {
	return func(r *persistence.AvailabilityRule) {
		r.ValidUntil = &date
	}
}

// WithRuleBatch marks the rule as owned by a batch rule.
func WithRuleBatch(batchID string) RuleOption {
	return func(r *persistence.AvailabilityRule) {
		r.OwnerBatchID = &batchID
	}
}

// ---------------------------- Booking fixtures ----------------------------

// BookingOption configures the generated booking.
type BookingOption func(*persistence.Booking)

// NewBookingFixture returns a confirmed booking for the given provider and
// topic starting at the supplied instant.
func NewBookingFixture(providerID, topicID string, slotStart time.Time, opts ...BookingOption) persistence.Booking {
	idx := atomic.AddUint64(&bookingCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	booking := persistence.Booking{
		ID:                fmt.Sprintf("booking-%03d", idx),
		CancellationToken: fmt.Sprintf("token-%03d", idx),
		SlotStart:         slotStart,
		SlotEnd:           slotStart.Add(30 * time.Minute),
		CustomerName:      fmt.Sprintf("Customer %03d", idx),
		CustomerEmail:     fmt.Sprintf("customer-%03d@example.com", idx),
		Status:            persistence.BookingStatusConfirmed,
		TopicID:           topicID,
		ProviderID:        providerID,
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingEnd overrides the slot end instant.
func WithBookingEnd(end time.Time) BookingOption {
	return func(b *persistence.Booking) {
		b.SlotEnd = end
	}
}

// WithBookingStatus overrides the booking status.
func WithBookingStatus(status string) BookingOption {
	return func(b *persistence.Booking) {
		b.Status = status
	}
}

// WithBookingArchived marks the booking as archived.
func WithBookingArchived(archived bool) BookingOption {
	return func(b *persistence.Booking) {
		b.IsArchived = archived
	}
}
