package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

type topicStoreStub struct {
	topics map[string]persistence.Topic

	createErr error
	updateErr error
	deleteErr error
	deleted   []string
}

func newTopicStoreStub(seed ...persistence.Topic) *topicStoreStub {
	stub := &topicStoreStub{topics: make(map[string]persistence.Topic)}
	for _, topic := range seed {
		stub.topics[topic.ID] = topic
	}
	return stub
}

func (s *topicStoreStub) CreateTopic(ctx context.Context, topic persistence.Topic) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.topics[topic.ID] = topic
	return nil
}

func (s *topicStoreStub) GetTopic(ctx context.Context, id string) (persistence.Topic, error) {
	topic, ok := s.topics[id]
	if !ok {
		return persistence.Topic{}, persistence.ErrNotFound
	}
	return topic, nil
}

func (s *topicStoreStub) ListTopicsForUser(ctx context.Context, userID string) ([]persistence.Topic, error) {
	var out []persistence.Topic
	for _, topic := range s.topics {
		if topic.UserID == userID {
			out = append(out, topic)
		}
	}
	return out, nil
}

func (s *topicStoreStub) UpdateTopic(ctx context.Context, topic persistence.Topic) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.topics[topic.ID] = topic
	return nil
}

func (s *topicStoreStub) DeleteTopic(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.topics, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func TestTopicServiceCreateTopic(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	provider := Principal{UserID: "provider-1"}

	t.Run("stores a topic for the acting user", func(t *testing.T) {
		store := newTopicStoreStub()
		service := NewTopicService(store, sequentialIDs("topic"), now)

		topic, err := service.CreateTopic(context.Background(), provider, TopicInput{Title: "  Consultation ", DurationMinutes: 30})
		if err != nil {
			t.Fatalf("CreateTopic returned error: %v", err)
		}
		if topic.Title != "Consultation" {
			t.Fatalf("expected trimmed title, got %q", topic.Title)
		}
		if topic.UserID != "provider-1" {
			t.Fatalf("unexpected owner %q", topic.UserID)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		service := NewTopicService(newTopicStoreStub(), sequentialIDs("topic"), now)

		_, err := service.CreateTopic(context.Background(), provider, TopicInput{DurationMinutes: -5})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"title", "duration_minutes"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected field error for %q, got %v", field, vErr.FieldErrors)
			}
		}
	})
}

func TestTopicServiceUpdateTopic(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	provider := Principal{UserID: "provider-1"}
	batchID := "batch-1"

	owned := persistence.Topic{ID: "topic-1", UserID: "provider-1", Title: "Consultation", DurationMinutes: 30}
	managed := persistence.Topic{ID: "topic-2", UserID: "provider-1", Title: "Onboarding", DurationMinutes: 45, OwnerBatchID: &batchID}

	t.Run("updates a self-managed topic", func(t *testing.T) {
		store := newTopicStoreStub(owned)
		service := NewTopicService(store, sequentialIDs("topic"), now)

		updated, err := service.UpdateTopic(context.Background(), provider, "topic-1", TopicInput{Title: "Follow up", DurationMinutes: 15})
		if err != nil {
			t.Fatalf("UpdateTopic returned error: %v", err)
		}
		if updated.Title != "Follow up" || updated.DurationMinutes != 15 {
			t.Fatalf("unexpected topic %+v", updated)
		}
	})

	t.Run("refuses batch-managed topics", func(t *testing.T) {
		service := NewTopicService(newTopicStoreStub(managed), sequentialIDs("topic"), now)

		_, err := service.UpdateTopic(context.Background(), provider, "topic-2", TopicInput{Title: "X", DurationMinutes: 10})
		if !errors.Is(err, ErrBatchManaged) {
			t.Fatalf("expected ErrBatchManaged, got %v", err)
		}
	})

	t.Run("refuses another user's topics", func(t *testing.T) {
		service := NewTopicService(newTopicStoreStub(owned), sequentialIDs("topic"), now)

		_, err := service.UpdateTopic(context.Background(), Principal{UserID: "provider-2"}, "topic-1", TopicInput{Title: "X", DurationMinutes: 10})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestTopicServiceDeleteTopic(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	provider := Principal{UserID: "provider-1"}
	batchID := "batch-1"

	owned := persistence.Topic{ID: "topic-1", UserID: "provider-1", Title: "Consultation", DurationMinutes: 30}
	managed := persistence.Topic{ID: "topic-2", UserID: "provider-1", Title: "Onboarding", DurationMinutes: 45, OwnerBatchID: &batchID}

	t.Run("deletes a self-managed topic", func(t *testing.T) {
		store := newTopicStoreStub(owned)
		service := NewTopicService(store, sequentialIDs("topic"), now)

		if err := service.DeleteTopic(context.Background(), provider, "topic-1"); err != nil {
			t.Fatalf("DeleteTopic returned error: %v", err)
		}
		if len(store.deleted) != 1 {
			t.Fatalf("expected one deletion, got %v", store.deleted)
		}
	})

	t.Run("refuses batch-managed topics", func(t *testing.T) {
		service := NewTopicService(newTopicStoreStub(managed), sequentialIDs("topic"), now)

		if err := service.DeleteTopic(context.Background(), provider, "topic-2"); !errors.Is(err, ErrBatchManaged) {
			t.Fatalf("expected ErrBatchManaged, got %v", err)
		}
	})
}

func TestTopicServiceListTopicsForProvider(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	owned := persistence.Topic{ID: "topic-1", UserID: "provider-1", Title: "Consultation", DurationMinutes: 30}

	t.Run("lists a provider's topics without authentication", func(t *testing.T) {
		service := NewTopicService(newTopicStoreStub(owned), sequentialIDs("topic"), now)

		topics, err := service.ListTopicsForProvider(context.Background(), "provider-1")
		if err != nil {
			t.Fatalf("ListTopicsForProvider returned error: %v", err)
		}
		if len(topics) != 1 {
			t.Fatalf("expected 1 topic, got %d", len(topics))
		}
	})

	t.Run("rejects a blank provider id", func(t *testing.T) {
		service := NewTopicService(newTopicStoreStub(owned), sequentialIDs("topic"), now)

		if _, err := service.ListTopicsForProvider(context.Background(), "  "); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
