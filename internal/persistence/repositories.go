package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountAdmins(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id string) error
}

// AvailabilityRuleContent carries the template fields a batch propagates onto
// its owned availability rows.
type AvailabilityRuleContent struct {
	Kind         string
	Weekday      *time.Weekday
	SpecificDate *time.Time
	StartTime    string
	EndTime      string
	ValidUntil   *time.Time
}

// AvailabilityRepository stores recurrence rules per user.
type AvailabilityRepository interface {
	CreateRule(ctx context.Context, rule AvailabilityRule) error
	CreateRules(ctx context.Context, rules []AvailabilityRule) error
	GetRule(ctx context.Context, id string) (AvailabilityRule, error)
	ListRulesForUser(ctx context.Context, userID string) ([]AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error

	// Batch-ownership queries used by the batch rule engine.
	ListBatchOwnerIDs(ctx context.Context, batchID string) ([]string, error)
	UpdateRulesForBatch(ctx context.Context, batchID string, content AvailabilityRuleContent, updatedAt time.Time) error
	DeleteRulesForBatch(ctx context.Context, batchID string, userIDs []string) error
}

// TimeOffRepository stores blocked date ranges per user.
type TimeOffRepository interface {
	CreateTimeOff(ctx context.Context, timeOff TimeOff) error
	GetTimeOff(ctx context.Context, id string) (TimeOff, error)
	ListTimeOffForUser(ctx context.Context, userID string) ([]TimeOff, error)
	ListTimeOffOverlapping(ctx context.Context, userID string, from, to time.Time) ([]TimeOff, error)
	DeleteTimeOff(ctx context.Context, id string) error
}

// TopicContent carries the template fields a batch propagates onto its owned
// topic rows.
type TopicContent struct {
	Title           string
	DurationMinutes int
	Description     string
}

// TopicRepository stores bookable topics per user.
type TopicRepository interface {
	CreateTopic(ctx context.Context, topic Topic) error
	CreateTopics(ctx context.Context, topics []Topic) error
	GetTopic(ctx context.Context, id string) (Topic, error)
	ListTopicsForUser(ctx context.Context, userID string) ([]Topic, error)
	UpdateTopic(ctx context.Context, topic Topic) error
	DeleteTopic(ctx context.Context, id string) error

	ListBatchOwnerIDs(ctx context.Context, batchID string) ([]string, error)
	UpdateTopicsForBatch(ctx context.Context, batchID string, content TopicContent, updatedAt time.Time) error
	DeleteTopicsForBatch(ctx context.Context, batchID string, userIDs []string) error
}

// BookingFilter narrows provider booking listings.
type BookingFilter struct {
	ProviderID string
	Archived   bool
}

// BookingRepository stores customer reservations.
type BookingRepository interface {
	// CreateBooking inserts the booking, failing with ErrDuplicate when a
	// confirmed booking for the same provider already overlaps the interval.
	CreateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	GetBookingByToken(ctx context.Context, token string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	ListConfirmedOverlapping(ctx context.Context, providerID string, from, to time.Time) ([]Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) error
	DeleteBooking(ctx context.Context, id string) error

	// ArchivePastBookings flags unarchived bookings that ended before the
	// reference time and reports how many rows changed.
	ArchivePastBookings(ctx context.Context, reference time.Time) (int, error)
	// ListDueReminders returns confirmed, unreminded bookings starting within
	// [from, to).
	ListDueReminders(ctx context.Context, from, to time.Time) ([]Booking, error)
	MarkReminderSent(ctx context.Context, id string, sentAt time.Time) error
}

// BatchConfigRepository stores rule templates and their department links.
type BatchConfigRepository interface {
	CreateBatchConfig(ctx context.Context, config BatchConfig) error
	GetBatchConfig(ctx context.Context, id string) (BatchConfig, error)
	UpdateBatchConfig(ctx context.Context, config BatchConfig) error
	// DeleteBatchConfig removes the template; owned rows and department links
	// are removed by referential cascade in the same statement's transaction.
	DeleteBatchConfig(ctx context.Context, id string) error
	ListBatchConfigs(ctx context.Context) ([]BatchConfig, error)

	SetBatchDepartments(ctx context.Context, batchID string, departmentIDs []string) error
	ListBatchDepartmentIDs(ctx context.Context, batchID string) ([]string, error)
	// ListFutureConfigsForDepartment returns department-targeted templates with
	// applyToFuture set that are linked to the department.
	ListFutureConfigsForDepartment(ctx context.Context, departmentID string) ([]BatchConfig, error)
	// ListFutureUserConfigs returns user-targeted templates with applyToFuture
	// set.
	ListFutureUserConfigs(ctx context.Context) ([]BatchConfig, error)
}

// DepartmentRepository stores departments and their membership.
type DepartmentRepository interface {
	CreateDepartment(ctx context.Context, department Department) error
	GetDepartment(ctx context.Context, id string) (Department, error)
	UpdateDepartment(ctx context.Context, department Department) error
	DeleteDepartment(ctx context.Context, id string) error
	ListDepartments(ctx context.Context) ([]Department, error)

	SetMembers(ctx context.Context, departmentID string, userIDs []string) error
	ListMemberIDs(ctx context.Context, departmentID string) ([]string, error)
	// ListMemberIDsForDepartments returns the distinct union of members across
	// the given departments.
	ListMemberIDsForDepartments(ctx context.Context, departmentIDs []string) ([]string, error)
	ListDepartmentIDsForUser(ctx context.Context, userID string) ([]string, error)
}

// SettingsRepository stores global key/value configuration.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (Setting, error)
	UpsertSetting(ctx context.Context, setting Setting) error
	ListSettings(ctx context.Context) ([]Setting, error)
}
