package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/webitel/document-exporter/internal/model"
)

func TestProgressFor(t *testing.T) {
	tests := []struct {
		processed, total, want int
	}{
		{0, 5, 0},
		{1, 5, 20},
		{5, 5, 100},
		{1, 3, 34},
		{2, 3, 67},
		{1, 7, 15},
		{0, 0, 0},
		{9, 5, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProgressFor(tt.processed, tt.total), "%d/%d", tt.processed, tt.total)
	}
}

// Every progress value a job can show keeps processed == floor(progress*total/100).
func TestProgressFloorHolds(t *testing.T) {
	for total := 1; total <= 100; total++ {
		for processed := 0; processed <= total; processed++ {
			low := ProgressFor(processed, total)
			high := nudgeCeiling(processed, total)
			assert.LessOrEqual(t, low, high, "%d/%d", processed, total)
			for p := low; p <= high; p++ {
				if !assert.Equal(t, processed, p*total/100, "progress %d at %d/%d", p, processed, total) {
					return
				}
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]model.JobStatus{
		{model.JobPending, model.JobProcessing},
		{model.JobProcessing, model.JobCompleted},
		{model.JobProcessing, model.JobFailed},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]model.JobStatus{
		{model.JobPending, model.JobCompleted},
		{model.JobCompleted, model.JobProcessing},
		{model.JobFailed, model.JobPending},
		{model.JobCompleted, model.JobFailed},
		{model.JobProcessing, model.JobPending},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestJitterStopsWithContext(t *testing.T) {
	j := &Jitter{Interval: time.Millisecond, MaxStep: 3}
	for range 20 {
		step, ok := j.Tick(context.Background())
		assert.True(t, ok)
		assert.GreaterOrEqual(t, step, 1)
		assert.LessOrEqual(t, step, 3)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := (&Jitter{Interval: time.Hour}).Tick(ctx)
	assert.False(t, ok)

	_, ok = NoProgress{}.Tick(ctx)
	assert.False(t, ok)
}
