package persistence

import "time"

// User represents a staff account that publishes availability and topics.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	DisplayName  string
	Email        string
	AuthMethod   string
	Position     string
	Location     string
	ShowEmail    bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AvailabilityRule represents a persisted recurrence rule for a user.
//
// Exactly one of Weekday and SpecificDate is meaningful depending on Kind:
// specific_date rules carry SpecificDate, all other kinds carry Weekday.
type AvailabilityRule struct {
	ID           string
	UserID       string
	Kind         string
	Weekday      *time.Weekday
	SpecificDate *time.Time
	StartTime    string
	EndTime      string
	ValidUntil   *time.Time
	OwnerBatchID *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TimeOff represents an inclusive blocked date range for a user.
type TimeOff struct {
	ID        string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Topic represents a bookable consultation subject owned by a user.
type Topic struct {
	ID              string
	UserID          string
	Title           string
	DurationMinutes int
	Description     string
	OwnerBatchID    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Booking statuses.
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// Booking represents a customer reservation against a provider's slot.
type Booking struct {
	ID                 string
	CancellationToken  string
	SlotStart          time.Time
	SlotEnd            time.Time
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	Status             string
	CancellationReason string
	ReminderSent       bool
	IsArchived         bool
	TopicID            string
	ProviderID         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// BatchConfig rule and target type values.
const (
	BatchRuleTopic        = "topic"
	BatchRuleAvailability = "availability"

	BatchTargetUser       = "user"
	BatchTargetDepartment = "department"
)

// BatchConfig represents an administrator-defined template that provisions
// identical availability or topic rows across a target set of users. The
// template payload is stored as a JSON document whose shape is fixed by
// RuleType.
type BatchConfig struct {
	ID            string
	Name          string
	RuleType      string
	TargetType    string
	ConfigData    []byte
	ApplyToFuture bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Department represents an organisational unit users can belong to.
type Department struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Setting represents a global key/value configuration entry.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
