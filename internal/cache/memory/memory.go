// Package memory is an in-process queue and job cache for single-node runs and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/webitel/document-exporter/internal/cache"
	"github.com/webitel/document-exporter/internal/model"
)

// Snapshot lifetimes match the Redis cache.
const (
	LiveJobTTL  = time.Hour
	FinalJobTTL = 10 * time.Minute
)

type entry struct {
	job     model.ExportJob
	expires time.Time
}

type Cache struct {
	tasks      chan model.ExportTask
	popTimeout time.Duration
	now        func() time.Time

	mu   sync.RWMutex
	jobs map[string]entry
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(capacity int, popTimeout time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = 1024
	}
	if popTimeout <= 0 {
		popTimeout = time.Second
	}
	c := &Cache{
		tasks:      make(chan model.ExportTask, capacity),
		popTimeout: popTimeout,
		now:        time.Now,
		jobs:       make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) PushExportTask(ctx context.Context, task model.ExportTask) error {
	select {
	case c.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) PopExportTask(ctx context.Context) (model.ExportTask, error) {
	timer := time.NewTimer(c.popTimeout)
	defer timer.Stop()
	select {
	case task := <-c.tasks:
		return task, nil
	case <-timer.C:
		return model.ExportTask{}, cache.ErrQueueEmpty
	case <-ctx.Done():
		return model.ExportTask{}, ctx.Err()
	}
}

func (c *Cache) SetJob(_ context.Context, job model.ExportJob) error {
	now := c.now()
	ttl := LiveJobTTL
	if job.Status.Terminal() {
		ttl = FinalJobTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.jobs {
		if !now.Before(e.expires) {
			delete(c.jobs, id)
		}
	}
	c.jobs[job.ID] = entry{job: job.Clone(), expires: now.Add(ttl)}
	return nil
}

func (c *Cache) GetJob(_ context.Context, id string) (*model.ExportJob, error) {
	c.mu.RLock()
	e, ok := c.jobs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		if cur, ok := c.jobs[id]; ok && cur.expires.Equal(e.expires) {
			delete(c.jobs, id)
		}
		c.mu.Unlock()
		return nil, cache.ErrCacheMiss
	}
	out := e.job.Clone()
	return &out, nil
}

func (c *Cache) ClearJob(_ context.Context, id string) error {
	c.mu.Lock()
	delete(c.jobs, id)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Close() error { return nil }
