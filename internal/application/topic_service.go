package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// TopicStore captures the persistence interactions for topic management.
type TopicStore interface {
	CreateTopic(ctx context.Context, topic persistence.Topic) error
	GetTopic(ctx context.Context, id string) (persistence.Topic, error)
	ListTopicsForUser(ctx context.Context, userID string) ([]persistence.Topic, error)
	UpdateTopic(ctx context.Context, topic persistence.Topic) error
	DeleteTopic(ctx context.Context, id string) error
}

// TopicService lets providers manage the subjects customers can book. Topics
// owned by a batch template are read-only here.
type TopicService struct {
	topics      TopicStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewTopicService wires dependencies for topic management.
func NewTopicService(topics TopicStore, idGenerator func() string, now func() time.Time) *TopicService {
	return NewTopicServiceWithLogger(topics, idGenerator, now, nil)
}

// NewTopicServiceWithLogger wires dependencies with an explicit base logger.
func NewTopicServiceWithLogger(topics TopicStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *TopicService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &TopicService{
		topics:      topics,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// ListTopics returns the acting user's topics.
func (s *TopicService) ListTopics(ctx context.Context, principal Principal) ([]persistence.Topic, error) {
	if s == nil {
		return nil, fmt.Errorf("TopicService is nil")
	}
	topics, err := s.topics.ListTopicsForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return topics, nil
}

// ListTopicsForProvider returns a provider's topics for the public booking
// flow. No authentication is required.
func (s *TopicService) ListTopicsForProvider(ctx context.Context, providerID string) ([]persistence.Topic, error) {
	if s == nil {
		return nil, fmt.Errorf("TopicService is nil")
	}
	if strings.TrimSpace(providerID) == "" {
		return nil, ErrNotFound
	}
	topics, err := s.topics.ListTopicsForUser(ctx, providerID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return topics, nil
}

// CreateTopic validates and stores a new topic for the acting user.
func (s *TopicService) CreateTopic(ctx context.Context, principal Principal, input TopicInput) (persistence.Topic, error) {
	if s == nil {
		return persistence.Topic{}, fmt.Errorf("TopicService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "topic", "create", "user_id", principal.UserID)

	vErr := &ValidationError{}
	validateTopicContent(input.Title, input.DurationMinutes, vErr)
	if vErr.HasErrors() {
		return persistence.Topic{}, vErr
	}

	createdAt := s.now()
	topic := persistence.Topic{
		ID:              s.idGenerator(),
		UserID:          principal.UserID,
		Title:           strings.TrimSpace(input.Title),
		DurationMinutes: input.DurationMinutes,
		Description:     input.Description,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}

	if err := s.topics.CreateTopic(ctx, topic); err != nil {
		return persistence.Topic{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "topic created", "topic_id", topic.ID)
	return topic, nil
}

// UpdateTopic applies changes to one of the acting user's topics.
// Batch-owned topics are rejected with ErrBatchManaged.
func (s *TopicService) UpdateTopic(ctx context.Context, principal Principal, topicID string, input TopicInput) (persistence.Topic, error) {
	if s == nil {
		return persistence.Topic{}, fmt.Errorf("TopicService is nil")
	}

	existing, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		return persistence.Topic{}, mapRepoError(err)
	}
	if existing.UserID != principal.UserID && !principal.IsAdmin {
		return persistence.Topic{}, ErrUnauthorized
	}
	if existing.OwnerBatchID != nil {
		return persistence.Topic{}, ErrBatchManaged
	}

	vErr := &ValidationError{}
	validateTopicContent(input.Title, input.DurationMinutes, vErr)
	if vErr.HasErrors() {
		return persistence.Topic{}, vErr
	}

	updated := existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.DurationMinutes = input.DurationMinutes
	updated.Description = input.Description
	updated.UpdatedAt = s.now()

	if err := s.topics.UpdateTopic(ctx, updated); err != nil {
		return persistence.Topic{}, mapRepoError(err)
	}
	return updated, nil
}

// DeleteTopic removes one of the acting user's topics. Batch-owned topics are
// rejected with ErrBatchManaged.
func (s *TopicService) DeleteTopic(ctx context.Context, principal Principal, topicID string) error {
	if s == nil {
		return fmt.Errorf("TopicService is nil")
	}

	existing, err := s.topics.GetTopic(ctx, topicID)
	if err != nil {
		return mapRepoError(err)
	}
	if existing.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}
	if existing.OwnerBatchID != nil {
		return ErrBatchManaged
	}

	if err := s.topics.DeleteTopic(ctx, topicID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// validateTopicContent checks the shared shape of user supplied and batch
// template topic content.
func validateTopicContent(title string, durationMinutes int, vErr *ValidationError) {
	if strings.TrimSpace(title) == "" {
		vErr.add("title", "title is required")
	}
	if durationMinutes <= 0 {
		vErr.add("duration_minutes", "duration must be a positive number of minutes")
	}
}
