package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// TimeOffStore captures the persistence interactions for time-off management.
type TimeOffStore interface {
	CreateTimeOff(ctx context.Context, timeOff persistence.TimeOff) error
	GetTimeOff(ctx context.Context, id string) (persistence.TimeOff, error)
	ListTimeOffForUser(ctx context.Context, userID string) ([]persistence.TimeOff, error)
	DeleteTimeOff(ctx context.Context, id string) error
}

// TimeOffService lets providers block out inclusive date ranges.
type TimeOffService struct {
	timeOff     TimeOffStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTimeOffService wires dependencies for time-off management.
func NewTimeOffService(timeOff TimeOffStore, idGenerator func() string, now func() time.Time) *TimeOffService {
	return NewTimeOffServiceWithLogger(timeOff, idGenerator, now, nil)
}

// NewTimeOffServiceWithLogger wires dependencies with an explicit base logger.
func NewTimeOffServiceWithLogger(timeOff TimeOffStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TimeOffService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TimeOffService{
		timeOff:     timeOff,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// ListTimeOff returns the acting user's blocked ranges.
func (s *TimeOffService) ListTimeOff(ctx context.Context, principal Principal) ([]persistence.TimeOff, error) {
	if s == nil {
		return nil, fmt.Errorf("TimeOffService is nil")
	}
	entries, err := s.timeOff.ListTimeOffForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return entries, nil
}

// CreateTimeOff validates and stores a blocked range for the acting user.
func (s *TimeOffService) CreateTimeOff(ctx context.Context, principal Principal, input TimeOffInput) (persistence.TimeOff, error) {
	if s == nil {
		return persistence.TimeOff{}, fmt.Errorf("TimeOffService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "timeoff", "create", "user_id", principal.UserID)

	vErr := &ValidationError{}
	if input.StartDate.IsZero() {
		vErr.add("start_date", "start date is required")
	}
	if input.EndDate.IsZero() {
		vErr.add("end_date", "end date is required")
	}
	if !input.StartDate.IsZero() && !input.EndDate.IsZero() && input.EndDate.Before(input.StartDate) {
		vErr.add("dates", "end date must not be before start date")
	}
	if vErr.HasErrors() {
		return persistence.TimeOff{}, vErr
	}

	createdAt := s.now()
	entry := persistence.TimeOff{
		ID:        s.idGenerator(),
		UserID:    principal.UserID,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Reason:    strings.TrimSpace(input.Reason),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	if err := s.timeOff.CreateTimeOff(ctx, entry); err != nil {
		return persistence.TimeOff{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "time off created", "time_off_id", entry.ID)
	return entry, nil
}

// DeleteTimeOff removes one of the acting user's blocked ranges.
func (s *TimeOffService) DeleteTimeOff(ctx context.Context, principal Principal, id string) error {
	if s == nil {
		return fmt.Errorf("TimeOffService is nil")
	}

	entry, err := s.timeOff.GetTimeOff(ctx, id)
	if err != nil {
		return mapRepoError(err)
	}
	if entry.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.timeOff.DeleteTimeOff(ctx, id); err != nil {
		return mapRepoError(err)
	}
	return nil
}
