package application

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
	"github.com/example/appointment-scheduler/internal/recurrence"
	"github.com/example/appointment-scheduler/internal/scheduler"
)

// SettingKeyMinBookingNotice is the settings key for the minimum notice, in
// hours, a customer must give before a slot starts.
const SettingKeyMinBookingNotice = "min_booking_notice_hours"

// SlotTopicCatalog exposes the topic lookup the resolver needs.
type SlotTopicCatalog interface {
	GetTopic(ctx context.Context, id string) (persistence.Topic, error)
}

// SlotRuleSource exposes the availability rules of a provider.
type SlotRuleSource interface {
	ListRulesForUser(ctx context.Context, userID string) ([]persistence.AvailabilityRule, error)
}

// SlotTimeOffSource exposes blocked date ranges of a provider.
type SlotTimeOffSource interface {
	ListTimeOffOverlapping(ctx context.Context, userID string, from, to time.Time) ([]persistence.TimeOff, error)
}

// SlotBookingSource exposes confirmed bookings of a provider.
type SlotBookingSource interface {
	ListConfirmedOverlapping(ctx context.Context, providerID string, from, to time.Time) ([]persistence.Booking, error)
}

// SlotSettingsSource exposes global settings lookups.
type SlotSettingsSource interface {
	GetSetting(ctx context.Context, key string) (persistence.Setting, error)
}

// SlotService loads a provider's calendar state and resolves bookable slots.
type SlotService struct {
	topics   SlotTopicCatalog
	rules    SlotRuleSource
	timeOff  SlotTimeOffSource
	bookings SlotBookingSource
	settings SlotSettingsSource
	now      func() time.Time
	logger   *slog.Logger
}

// NewSlotService wires dependencies for slot resolution.
func NewSlotService(topics SlotTopicCatalog, rules SlotRuleSource, timeOff SlotTimeOffSource, bookings SlotBookingSource, settings SlotSettingsSource, now func() time.Time) *SlotService {
	return NewSlotServiceWithLogger(topics, rules, timeOff, bookings, settings, now, nil)
}

// NewSlotServiceWithLogger wires dependencies with an explicit base logger.
func NewSlotServiceWithLogger(topics SlotTopicCatalog, rules SlotRuleSource, timeOff SlotTimeOffSource, bookings SlotBookingSource, settings SlotSettingsSource, now func() time.Time, logger *slog.Logger) *SlotService {
	if now == nil {
		now = time.Now
	}
	return &SlotService{
		topics:   topics,
		rules:    rules,
		timeOff:  timeOff,
		bookings: bookings,
		settings: settings,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// ResolveSlotsParams identifies the provider, topic, and date window to
// resolve.
type ResolveSlotsParams struct {
	UserID  string
	TopicID string
	From    time.Time
	To      time.Time
}

// ResolveSlots enumerates the bookable slots for a provider and topic across
// an inclusive date range. The topic's duration drives the slot step, time off
// blocks whole days, and confirmed bookings exclude overlapping candidates.
// Slots starting before now plus the minimum-notice setting are dropped.
func (s *SlotService) ResolveSlots(ctx context.Context, params ResolveSlotsParams) ([]scheduler.Slot, error) {
	if s == nil {
		return nil, fmt.Errorf("SlotService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "slot", "resolve", "user_id", params.UserID, "topic_id", params.TopicID)

	vErr := &ValidationError{}
	if params.UserID == "" {
		vErr.add("user_id", "user id is required")
	}
	if params.TopicID == "" {
		vErr.add("topic_id", "topic id is required")
	}
	if params.From.IsZero() {
		vErr.add("from", "from date is required")
	}
	if params.To.IsZero() {
		vErr.add("to", "to date is required")
	}
	if !params.From.IsZero() && !params.To.IsZero() && params.To.Before(params.From) {
		vErr.add("range", "to must not be before from")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	topic, err := s.topics.GetTopic(ctx, params.TopicID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if topic.UserID != params.UserID {
		return nil, ErrNotFound
	}

	minStart, err := s.minimumStart(ctx)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.ListRulesForUser(ctx, params.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	windowEnd := params.To.AddDate(0, 0, 1)

	timeOff, err := s.timeOff.ListTimeOffOverlapping(ctx, params.UserID, params.From, params.To)
	if err != nil {
		return nil, mapRepoError(err)
	}

	occupied, err := s.bookings.ListConfirmedOverlapping(ctx, params.UserID, params.From, windowEnd)
	if err != nil {
		return nil, mapRepoError(err)
	}

	slots := scheduler.Resolve(scheduler.Input{
		Rules:    toRecurrenceRules(rules),
		TimeOff:  toDateRanges(timeOff),
		Occupied: toIntervals(occupied),
		From:     params.From,
		To:       params.To,
		Duration: time.Duration(topic.DurationMinutes) * time.Minute,
		MinStart: minStart,
	})

	logger.DebugContext(ctx, "slots resolved", "count", len(slots))
	return slots, nil
}

// minimumStart derives the earliest permitted slot start from the
// minimum-notice setting. A missing or malformed setting means no notice.
func (s *SlotService) minimumStart(ctx context.Context) (time.Time, error) {
	now := s.now()
	if s.settings == nil {
		return now, nil
	}

	setting, err := s.settings.GetSetting(ctx, SettingKeyMinBookingNotice)
	if err != nil {
		if isNotFound(err) {
			return now, nil
		}
		return time.Time{}, mapRepoError(err)
	}

	hours, err := strconv.Atoi(setting.Value)
	if err != nil || hours < 0 {
		return now, nil
	}
	return now.Add(time.Duration(hours) * time.Hour), nil
}

func toRecurrenceRules(rules []persistence.AvailabilityRule) []recurrence.Rule {
	out := make([]recurrence.Rule, 0, len(rules))
	for _, rule := range rules {
		converted := recurrence.Rule{
			ID:           rule.ID,
			Kind:         recurrence.Kind(rule.Kind),
			SpecificDate: rule.SpecificDate,
			StartTime:    rule.StartTime,
			EndTime:      rule.EndTime,
			ValidUntil:   rule.ValidUntil,
		}
		if rule.Weekday != nil {
			converted.Weekday = *rule.Weekday
		}
		out = append(out, converted)
	}
	return out
}

func toDateRanges(entries []persistence.TimeOff) []scheduler.DateRange {
	out := make([]scheduler.DateRange, 0, len(entries))
	for _, entry := range entries {
		out = append(out, scheduler.DateRange{Start: entry.StartDate, End: entry.EndDate})
	}
	return out
}

func toIntervals(bookings []persistence.Booking) []scheduler.Interval {
	out := make([]scheduler.Interval, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, scheduler.Interval{Start: booking.SlotStart, End: booking.SlotEnd})
	}
	return out
}
