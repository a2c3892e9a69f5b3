package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
	"github.com/example/appointment-scheduler/internal/recurrence"
)

// AvailabilityStore captures the persistence interactions for self-managed
// availability rules.
type AvailabilityStore interface {
	CreateRule(ctx context.Context, rule persistence.AvailabilityRule) error
	GetRule(ctx context.Context, id string) (persistence.AvailabilityRule, error)
	ListRulesForUser(ctx context.Context, userID string) ([]persistence.AvailabilityRule, error)
	DeleteRule(ctx context.Context, id string) error
}

// AvailabilityService lets providers manage their own recurrence rules. Rules
// owned by a batch template are read-only here.
type AvailabilityService struct {
	rules       AvailabilityStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewAvailabilityService wires dependencies for availability management.
func NewAvailabilityService(rules AvailabilityStore, idGenerator func() string, now func() time.Time) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(rules, idGenerator, now, nil)
}

// NewAvailabilityServiceWithLogger wires dependencies with an explicit base logger.
func NewAvailabilityServiceWithLogger(rules AvailabilityStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AvailabilityService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AvailabilityService{
		rules:       rules,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// ListRules returns the acting user's availability rules.
func (s *AvailabilityService) ListRules(ctx context.Context, principal Principal) ([]persistence.AvailabilityRule, error) {
	if s == nil {
		return nil, fmt.Errorf("AvailabilityService is nil")
	}
	rules, err := s.rules.ListRulesForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return rules, nil
}

// CreateRule validates and stores a new rule for the acting user.
func (s *AvailabilityService) CreateRule(ctx context.Context, principal Principal, input AvailabilityInput) (persistence.AvailabilityRule, error) {
	if s == nil {
		return persistence.AvailabilityRule{}, fmt.Errorf("AvailabilityService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "availability", "create", "user_id", principal.UserID)

	vErr := &ValidationError{}
	validateRuleContent(input.Kind, input.Weekday, input.SpecificDate, input.StartTime, input.EndTime, vErr)
	if vErr.HasErrors() {
		return persistence.AvailabilityRule{}, vErr
	}

	createdAt := s.now()
	rule := persistence.AvailabilityRule{
		ID:           s.idGenerator(),
		UserID:       principal.UserID,
		Kind:         input.Kind,
		Weekday:      input.Weekday,
		SpecificDate: input.SpecificDate,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		ValidUntil:   input.ValidUntil,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err := s.rules.CreateRule(ctx, rule); err != nil {
		return persistence.AvailabilityRule{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "availability rule created", "rule_id", rule.ID, "kind", rule.Kind)
	return rule, nil
}

// DeleteRule removes one of the acting user's rules. Batch-owned rules are
// rejected with ErrBatchManaged.
func (s *AvailabilityService) DeleteRule(ctx context.Context, principal Principal, ruleID string) error {
	if s == nil {
		return fmt.Errorf("AvailabilityService is nil")
	}

	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return mapRepoError(err)
	}
	if rule.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}
	if rule.OwnerBatchID != nil {
		return ErrBatchManaged
	}

	if err := s.rules.DeleteRule(ctx, ruleID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// validateRuleContent checks the shared shape of user supplied and batch
// template availability content.
func validateRuleContent(kind string, weekday *time.Weekday, specificDate *time.Time, startTime, endTime string, vErr *ValidationError) {
	if !recurrence.Kind(kind).Valid() {
		vErr.add("kind", "unknown rule kind")
	}

	switch recurrence.Kind(kind) {
	case recurrence.KindSpecificDate:
		if specificDate == nil {
			vErr.add("specific_date", "specific date is required")
		}
	case recurrence.KindWeekly, recurrence.KindOddWeek, recurrence.KindEvenWeek:
		if weekday == nil {
			vErr.add("day_of_week", "day of week is required")
		} else if *weekday < time.Sunday || *weekday > time.Saturday {
			vErr.add("day_of_week", "day of week must be between 0 and 6")
		}
	}

	startHour, startMin, startErr := recurrence.ParseClock(startTime)
	if startErr != nil {
		vErr.add("start_time", "start time must be in HH:MM form")
	}
	endHour, endMin, endErr := recurrence.ParseClock(endTime)
	if endErr != nil {
		vErr.add("end_time", "end time must be in HH:MM form")
	}
	if startErr == nil && endErr == nil {
		if endHour < startHour || (endHour == startHour && endMin <= startMin) {
			vErr.add("time", "start time must be before end time")
		}
	}
}
