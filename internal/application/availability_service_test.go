package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

type availabilityStoreStub struct {
	rules map[string]persistence.AvailabilityRule

	createErr error
	deleteErr error
	deleted   []string
}

func newAvailabilityStoreStub(seed ...persistence.AvailabilityRule) *availabilityStoreStub {
	stub := &availabilityStoreStub{rules: make(map[string]persistence.AvailabilityRule)}
	for _, rule := range seed {
		stub.rules[rule.ID] = rule
	}
	return stub
}

func (s *availabilityStoreStub) CreateRule(ctx context.Context, rule persistence.AvailabilityRule) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *availabilityStoreStub) GetRule(ctx context.Context, id string) (persistence.AvailabilityRule, error) {
	rule, ok := s.rules[id]
	if !ok {
		return persistence.AvailabilityRule{}, persistence.ErrNotFound
	}
	return rule, nil
}

func (s *availabilityStoreStub) ListRulesForUser(ctx context.Context, userID string) ([]persistence.AvailabilityRule, error) {
	var out []persistence.AvailabilityRule
	for _, rule := range s.rules {
		if rule.UserID == userID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *availabilityStoreStub) DeleteRule(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.rules, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func TestAvailabilityServiceCreateRule(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	provider := Principal{UserID: "provider-1"}

	t.Run("stores a weekly rule for the acting user", func(t *testing.T) {
		store := newAvailabilityStoreStub()
		service := NewAvailabilityService(store, sequentialIDs("rule"), now)

		weekday := time.Monday
		rule, err := service.CreateRule(context.Background(), provider, AvailabilityInput{
			Kind:      "weekly",
			Weekday:   &weekday,
			StartTime: "09:00",
			EndTime:   "17:00",
		})
		if err != nil {
			t.Fatalf("CreateRule returned error: %v", err)
		}
		if rule.UserID != "provider-1" {
			t.Fatalf("unexpected owner %q", rule.UserID)
		}
		if rule.OwnerBatchID != nil {
			t.Fatal("expected a self-managed rule")
		}
	})

	t.Run("validates the rule shape", func(t *testing.T) {
		service := NewAvailabilityService(newAvailabilityStoreStub(), sequentialIDs("rule"), now)

		_, err := service.CreateRule(context.Background(), provider, AvailabilityInput{
			Kind:      "weekly",
			StartTime: "17:00",
			EndTime:   "09:00",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"day_of_week", "time"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected field error for %q, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("requires a date for specific date rules", func(t *testing.T) {
		service := NewAvailabilityService(newAvailabilityStoreStub(), sequentialIDs("rule"), now)

		_, err := service.CreateRule(context.Background(), provider, AvailabilityInput{
			Kind:      "specific_date",
			StartTime: "09:00",
			EndTime:   "10:00",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["specific_date"]; !ok {
			t.Fatalf("expected specific_date error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		service := NewAvailabilityService(newAvailabilityStoreStub(), sequentialIDs("rule"), now)

		_, err := service.CreateRule(context.Background(), provider, AvailabilityInput{
			Kind:      "monthly",
			StartTime: "09:00",
			EndTime:   "10:00",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestAvailabilityServiceDeleteRule(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	provider := Principal{UserID: "provider-1"}
	batchID := "batch-1"

	owned := persistence.AvailabilityRule{ID: "rule-1", UserID: "provider-1", Kind: "weekly"}
	managed := persistence.AvailabilityRule{ID: "rule-2", UserID: "provider-1", Kind: "weekly", OwnerBatchID: &batchID}

	t.Run("deletes a self-managed rule", func(t *testing.T) {
		store := newAvailabilityStoreStub(owned)
		service := NewAvailabilityService(store, sequentialIDs("rule"), now)

		if err := service.DeleteRule(context.Background(), provider, "rule-1"); err != nil {
			t.Fatalf("DeleteRule returned error: %v", err)
		}
		if len(store.deleted) != 1 {
			t.Fatalf("expected one deletion, got %v", store.deleted)
		}
	})

	t.Run("refuses batch-managed rules", func(t *testing.T) {
		service := NewAvailabilityService(newAvailabilityStoreStub(managed), sequentialIDs("rule"), now)

		if err := service.DeleteRule(context.Background(), provider, "rule-2"); !errors.Is(err, ErrBatchManaged) {
			t.Fatalf("expected ErrBatchManaged, got %v", err)
		}
	})

	t.Run("refuses another user's rules", func(t *testing.T) {
		service := NewAvailabilityService(newAvailabilityStoreStub(owned), sequentialIDs("rule"), now)

		err := service.DeleteRule(context.Background(), Principal{UserID: "provider-2"}, "rule-1")
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("maps missing rules to not found", func(t *testing.T) {
		service := NewAvailabilityService(newAvailabilityStoreStub(), sequentialIDs("rule"), now)

		if err := service.DeleteRule(context.Background(), provider, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
