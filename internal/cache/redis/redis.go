package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/webitel/document-exporter/internal/cache"
	"github.com/webitel/document-exporter/internal/model"
)

const (
	keyPrefix   = "document_exporter:"
	queueKey    = keyPrefix + "queue"
	popTimeout  = time.Second
	liveJobTTL  = time.Hour
	finalJobTTL = 10 * time.Minute
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ping Redis to check the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisCache{client: rdb}, nil
}

func (r *RedisCache) PushExportTask(ctx context.Context, task model.ExportTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.TaskID, err)
	}
	return r.client.LPush(ctx, queueKey, data).Err()
}

func (r *RedisCache) PopExportTask(ctx context.Context) (model.ExportTask, error) {
	var task model.ExportTask
	res, err := r.client.BRPop(ctx, popTimeout, queueKey).Result()
	if errors.Is(err, redis.Nil) {
		return task, cache.ErrQueueEmpty
	}
	if err != nil {
		return task, err
	}
	// BRPOP replies with [key, value]
	if len(res) != 2 {
		return task, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return task, fmt.Errorf("unmarshal task: %w", err)
	}
	return task, nil
}

func (r *RedisCache) SetJob(ctx context.Context, job model.ExportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	ttl := liveJobTTL
	if job.Status.Terminal() {
		ttl = finalJobTTL
	}
	return r.client.Set(ctx, jobKey(job.ID), data, ttl).Err()
}

func (r *RedisCache) GetJob(ctx context.Context, id string) (*model.ExportJob, error) {
	data, err := r.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cache.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var job model.ExportJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (r *RedisCache) ClearJob(ctx context.Context, id string) error {
	return r.client.Del(ctx, jobKey(id)).Err()
}

// Clear removes every key owned by the exporter. Tests use it to start from an empty queue.
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// helper to standardize keys
func jobKey(id string) string {
	return keyPrefix + "job:" + id
}
