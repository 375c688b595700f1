package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"staging-server/internal/models"
)

// Compile-time check to ensure redisEditJobStore implements EditJobStore
var _ EditJobStore = (*redisEditJobStore)(nil)

// redisEditJobStore хранит активные задачи редактирования в Redis.
// Ключ edit_job:{taskID}, значение — JSON EditJob, TTL страхует от
// задач, результат которых так и не пришел.
type redisEditJobStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisEditJobStore creates a new Redis-backed EditJobStore.
func NewRedisEditJobStore(client *redis.Client, logger *zap.Logger) EditJobStore {
	return &redisEditJobStore{
		client: client,
		logger: logger.Named("RedisEditJobStore"),
	}
}

func jobKey(taskID string) string {
	return fmt.Sprintf("edit_job:%s", taskID)
}

// SaveJob сохраняет задачу с TTL.
func (s *redisEditJobStore) SaveJob(ctx context.Context, job *models.EditJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal edit job: %w", err)
	}

	key := jobKey(job.TaskID)
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Error("Failed to save edit job to Redis", zap.String("task_id", job.TaskID), zap.Error(err))
		return fmt.Errorf("redis error saving edit job '%s': %w", job.TaskID, err)
	}

	s.logger.Debug("Edit job saved", zap.String("task_id", job.TaskID), zap.Duration("ttl", ttl))
	return nil
}

// GetJob возвращает задачу или models.ErrNotFound, если ключ истек/удален.
func (s *redisEditJobStore) GetJob(ctx context.Context, taskID string) (*models.EditJob, error) {
	data, err := s.client.Get(ctx, jobKey(taskID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: edit job '%s'", models.ErrNotFound, taskID)
		}
		s.logger.Error("Failed to get edit job from Redis", zap.String("task_id", taskID), zap.Error(err))
		return nil, fmt.Errorf("redis error getting edit job '%s': %w", taskID, err)
	}

	var job models.EditJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal edit job '%s': %w", taskID, err)
	}
	return &job, nil
}

// DeleteJob удаляет задачу после применения результата.
func (s *redisEditJobStore) DeleteJob(ctx context.Context, taskID string) error {
	if err := s.client.Del(ctx, jobKey(taskID)).Err(); err != nil {
		s.logger.Error("Failed to delete edit job from Redis", zap.String("task_id", taskID), zap.Error(err))
		return fmt.Errorf("redis error deleting edit job '%s': %w", taskID, err)
	}
	return nil
}
