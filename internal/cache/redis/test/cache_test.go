package test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/document-exporter/internal/cache"
	rediscache "github.com/webitel/document-exporter/internal/cache/redis"
	"github.com/webitel/document-exporter/internal/model"
)

const (
	testRedisPassword = ""
	testRedisDB       = 0
)

func getTestCache(t *testing.T) *rediscache.RedisCache {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := rediscache.NewRedisCache(addr, testRedisPassword, testRedisDB)
	if err != nil {
		t.Skipf("redis is not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := c.Clear(context.Background()); err != nil {
		t.Fatalf("Failed to clear Redis keys: %v", err)
	}
	return c
}

func TestConcurrentPushPop(t *testing.T) {
	c := getTestCache(t)
	ctx := context.Background()
	totalTasks := 500
	numWorkers := 10

	var wg sync.WaitGroup
	processedTasks := make(chan model.ExportTask, totalTasks)
	errs := make(chan error, totalTasks)

	for i := 0; i < totalTasks; i++ {
		task := model.ExportTask{
			TaskID:    fmt.Sprintf("test:%d", i),
			ProjectID: "p1",
		}
		require.NoError(t, c.PushExportTask(ctx, task), "push task %d", i)
	}

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func(workerID int) {
			defer wg.Done()
			for {
				task, err := c.PopExportTask(ctx)
				if err != nil {
					if errors.Is(err, cache.ErrQueueEmpty) {
						return
					}
					errs <- fmt.Errorf("worker %d PopExportTask failed: %w", workerID, err)
					return
				}
				processedTasks <- task
			}
		}(i)
	}

	collected := 0
	timeout := time.After(10 * time.Second)
	for collected < totalTasks {
		select {
		case task := <-processedTasks:
			assert.Contains(t, task.TaskID, "test:")
			collected++
		case err := <-errs:
			t.Fatalf("Error during processing: %v", err)
		case <-timeout:
			t.Fatalf("Timeout waiting for tasks. Processed: %d, Expected: %d", collected, totalTasks)
		}
	}
	wg.Wait()
	assert.Equal(t, totalTasks, collected)
}

func TestJobSnapshotRoundTrip(t *testing.T) {
	c := getTestCache(t)
	ctx := context.Background()

	job := model.ExportJob{ID: "job-1", ProjectID: "p1", Status: model.JobProcessing, Progress: 40, TotalDocuments: 5, ProcessedDocuments: 2}
	require.NoError(t, c.SetJob(ctx, job))

	got, err := c.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, model.JobProcessing, got.Status)

	require.NoError(t, c.ClearJob(ctx, "job-1"))
	_, err = c.GetJob(ctx, "job-1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}
