package application

import (
	"time"

	"github.com/example/appointment-scheduler/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// AvailabilityInput captures caller provided availability rule fields.
type AvailabilityInput struct {
	Kind         string
	Weekday      *time.Weekday
	SpecificDate *time.Time
	StartTime    string
	EndTime      string
	ValidUntil   *time.Time
}

// TimeOffInput captures caller provided time-off fields.
type TimeOffInput struct {
	StartDate time.Time
	EndDate   time.Time
	Reason    string
}

// TopicInput captures caller provided topic fields.
type TopicInput struct {
	Title           string
	DurationMinutes int
	Description     string
}

// BookingRequest captures the public booking wizard submission.
type BookingRequest struct {
	TopicID       string
	SlotTimestamp time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// UserInput captures administrator provided user attributes.
type UserInput struct {
	Username    string
	Password    string
	DisplayName string
	Email       string
	AuthMethod  string
	Position    string
	Location    string
	ShowEmail   bool
	IsAdmin     bool
}

// DepartmentInput captures caller provided department fields. MemberIDs
// replaces the full membership set when non-nil.
type DepartmentInput struct {
	Name        string
	Description string
	MemberIDs   []string
}

// TopicTemplate is the batch payload shape for topic rule templates.
type TopicTemplate struct {
	Title           string `json:"title"`
	DurationMinutes int    `json:"durationMinutes"`
	Description     string `json:"description,omitempty"`
}

// AvailabilityTemplate is the batch payload shape for availability rule
// templates.
type AvailabilityTemplate struct {
	Kind         recurrence.Kind `json:"kind"`
	Weekday      *time.Weekday   `json:"dayOfWeek,omitempty"`
	SpecificDate *string         `json:"specificDate,omitempty"`
	StartTime    string          `json:"startTime"`
	EndTime      string          `json:"endTime"`
	ValidUntil   *string         `json:"validUntil,omitempty"`
}

// BatchTemplate is the tagged union carried by a batch config; exactly one
// branch matching the config's rule type is populated.
type BatchTemplate struct {
	Topic        *TopicTemplate
	Availability *AvailabilityTemplate
}

// BatchInput captures administrator provided batch template fields.
type BatchInput struct {
	Name          string
	RuleType      string
	TargetType    string
	Template      BatchTemplate
	ApplyToFuture bool
	// UserIDs is the explicit target set for user-targeted templates.
	UserIDs []string
	// DepartmentIDs is the association set for department-targeted templates.
	DepartmentIDs []string
}

// BatchUpdateInput captures the mutable fields of a batch template. Nil
// pointers leave the current value untouched.
type BatchUpdateInput struct {
	Name          *string
	Template      *BatchTemplate
	ApplyToFuture *bool
	TargetType    *string
	UserIDs       []string
	DepartmentIDs []string
}

// BatchSummary pairs a batch config with its resolved target information for
// admin listings.
type BatchSummary struct {
	ID            string
	Name          string
	RuleType      string
	TargetType    string
	Template      BatchTemplate
	ApplyToFuture bool
	DepartmentIDs []string
	UserIDs       []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AuthenticateParams wraps a login attempt.
type AuthenticateParams struct {
	Username string
	Password string
}

// AuthenticateResult carries the issued token and the authenticated user.
type AuthenticateResult struct {
	Token     string
	ExpiresAt time.Time
	UserID    string
	IsAdmin   bool
}
