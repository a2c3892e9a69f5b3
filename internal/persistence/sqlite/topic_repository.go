package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// TopicRepository implements persistence.TopicRepository using SQLite.
type TopicRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewTopicRepository creates a SQLite topic repository.
func NewTopicRepository(pool *ConnectionPool) *TopicRepository {
	return &TopicRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const topicColumns = `id, user_id, title, duration_minutes, description, owner_batch_id, created_at, updated_at`

// CreateTopic inserts a single topic.
func (r *TopicRepository) CreateTopic(ctx context.Context, topic persistence.Topic) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return r.insertTopic(tx, topic)
	})
}

// CreateTopics inserts a batch of topics atomically.
func (r *TopicRepository) CreateTopics(ctx context.Context, topics []persistence.Topic) error {
	if len(topics) == 0 {
		return nil
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, topic := range topics {
			if err := r.insertTopic(tx, topic); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *TopicRepository) insertTopic(tx *sql.Tx, topic persistence.Topic) error {
	const query = `
		INSERT INTO topics (` + topicColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.helper.ExecTx(tx, query,
		topic.ID,
		topic.UserID,
		topic.Title,
		topic.DurationMinutes,
		topic.Description,
		nullableString(topic.OwnerBatchID),
		formatTimestamp(topic.CreatedAt),
		formatTimestamp(topic.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetTopic retrieves a topic by id.
func (r *TopicRepository) GetTopic(ctx context.Context, id string) (persistence.Topic, error) {
	const query = `SELECT ` + topicColumns + ` FROM topics WHERE id = ?`

	topic, err := r.scanTopic(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Topic{}, persistence.ErrNotFound
		}
		return persistence.Topic{}, err
	}
	return topic, nil
}

// ListTopicsForUser returns a user's topics ordered by title.
func (r *TopicRepository) ListTopicsForUser(ctx context.Context, userID string) ([]persistence.Topic, error) {
	const query = `SELECT ` + topicColumns + ` FROM topics WHERE user_id = ? ORDER BY title ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var topics []persistence.Topic
	for rows.Next() {
		topic, err := r.scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return topics, nil
}

// UpdateTopic replaces the mutable columns of a topic.
func (r *TopicRepository) UpdateTopic(ctx context.Context, topic persistence.Topic) error {
	const query = `
		UPDATE topics
		SET title = ?, duration_minutes = ?, description = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.helper.Exec(ctx, query,
		topic.Title,
		topic.DurationMinutes,
		topic.Description,
		formatTimestamp(topic.UpdatedAt),
		topic.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// DeleteTopic removes a topic by id.
func (r *TopicRepository) DeleteTopic(ctx context.Context, id string) error {
	result, err := r.helper.Exec(ctx, `DELETE FROM topics WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// ListBatchOwnerIDs returns the distinct users holding topics owned by a
// batch template.
func (r *TopicRepository) ListBatchOwnerIDs(ctx context.Context, batchID string) ([]string, error) {
	const query = `SELECT DISTINCT user_id FROM topics WHERE owner_batch_id = ? ORDER BY user_id ASC`

	rows, err := r.helper.Query(ctx, query, batchID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, r.mapper.MapError(err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return owners, nil
}

// UpdateTopicsForBatch overwrites the content of every topic owned by a
// batch template.
func (r *TopicRepository) UpdateTopicsForBatch(ctx context.Context, batchID string, content persistence.TopicContent, updatedAt time.Time) error {
	const query = `
		UPDATE topics
		SET title = ?, duration_minutes = ?, description = ?, updated_at = ?
		WHERE owner_batch_id = ?`

	_, err := r.helper.Exec(ctx, query,
		content.Title,
		content.DurationMinutes,
		content.Description,
		formatTimestamp(updatedAt),
		batchID,
	)
	return r.mapper.MapError(err)
}

// DeleteTopicsForBatch removes a batch template's topics for the given users.
func (r *TopicRepository) DeleteTopicsForBatch(ctx context.Context, batchID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}

	query := `DELETE FROM topics WHERE owner_batch_id = ? AND user_id IN (` + placeholders(len(userIDs)) + `)`
	args := make([]any, 0, len(userIDs)+1)
	args = append(args, batchID)
	for _, id := range userIDs {
		args = append(args, id)
	}

	_, err := r.helper.Exec(ctx, query, args...)
	return r.mapper.MapError(err)
}

func (r *TopicRepository) scanTopic(row rowScanner) (persistence.Topic, error) {
	var topic persistence.Topic
	var ownerBatchID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&topic.ID,
		&topic.UserID,
		&topic.Title,
		&topic.DurationMinutes,
		&topic.Description,
		&ownerBatchID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Topic{}, err
		}
		return persistence.Topic{}, r.mapper.MapError(err)
	}

	topic.OwnerBatchID = stringPtr(ownerBatchID)
	if topic.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Topic{}, err
	}
	if topic.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Topic{}, err
	}
	return topic, nil
}
