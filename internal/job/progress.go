package job

import (
	"context"
	"math/rand/v2"
	"time"
)

// ProgressFor maps processed documents to a percentage. Rounding up keeps
// processed == floor(progress*total/100) for every job of up to 100 documents.
func ProgressFor(processed, total int) int {
	if total <= 0 {
		return 0
	}
	if processed >= total {
		return 100
	}
	return (100*processed + total - 1) / total
}

// nudgeCeiling is the highest progress an in-flight job may show before its
// next document completes.
func nudgeCeiling(processed, total int) int {
	if processed >= total {
		return 100
	}
	return ProgressFor(processed+1, total) - 1
}

// ProgressSource paces the intermediate progress ticks shown while a document
// transfer is in flight.
type ProgressSource interface {
	// Tick blocks until the next tick and returns the step to add, or false once ctx is done.
	Tick(ctx context.Context) (int, bool)
}

// Jitter ticks at a randomized interval with a randomized step so progress
// moves like a real network transfer.
type Jitter struct {
	Interval time.Duration
	MaxStep  int
}

func NewJitter(interval time.Duration) *Jitter {
	return &Jitter{Interval: interval, MaxStep: 3}
}

func (j *Jitter) Tick(ctx context.Context) (int, bool) {
	base := j.Interval
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	// interval ± 50%
	wait := base/2 + time.Duration(rand.Int64N(int64(base)))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, false
	case <-timer.C:
	}
	step := 1
	if j.MaxStep > 1 {
		step += rand.IntN(j.MaxStep)
	}
	return step, true
}

// NoProgress never ticks; progress only moves when documents complete.
type NoProgress struct{}

func (NoProgress) Tick(ctx context.Context) (int, bool) {
	<-ctx.Done()
	return 0, false
}
