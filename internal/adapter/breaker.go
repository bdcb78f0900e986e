package adapter

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/webitel/document-exporter/internal/model"
)

type BreakerSettings struct {
	// ConsecutiveFailures of fatal kind that open the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// Breaker wraps an adapter with one circuit breaker per target site. Only
// fatal errors count as failures; an open breaker is reported as fatal so the
// job stops instead of hammering a dead target.
//
// Connect bypasses the breaker: it is the explicit operator retry.
type Breaker struct {
	TransferAdapter
	settings BreakerSettings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewBreaker(inner TransferAdapter, settings BreakerSettings) *Breaker {
	return &Breaker{
		TransferAdapter: inner,
		settings:        settings,
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (b *Breaker) Transfer(ctx context.Context, file model.File, cfg model.IntegrationConfig) (string, error) {
	res, err := b.breaker(cfg).Execute(func() (interface{}, error) {
		return b.TransferAdapter.Transfer(ctx, file, cfg)
	})
	if err != nil {
		return "", b.wrap(cfg, err)
	}
	return res.(string), nil
}

func (b *Breaker) Stat(ctx context.Context, cfg model.IntegrationConfig) (model.SyncStats, error) {
	res, err := b.breaker(cfg).Execute(func() (interface{}, error) {
		return b.TransferAdapter.Stat(ctx, cfg)
	})
	if err != nil {
		return model.SyncStats{}, b.wrap(cfg, err)
	}
	return res.(model.SyncStats), nil
}

// State reports the breaker state for the target of cfg.
func (b *Breaker) State(cfg model.IntegrationConfig) gobreaker.State {
	return b.breaker(cfg).State()
}

func (b *Breaker) wrap(cfg model.IntegrationConfig, err error) error {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return Fatal(string(b.Type())+" "+cfg.SiteURL, err)
	}
	return err
}

func (b *Breaker) breaker(cfg model.IntegrationConfig) *gobreaker.CircuitBreaker {
	key := cfg.SiteURL
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	threshold := b.settings.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(b.Type()) + " " + key,
		MaxRequests: 1,
		Timeout:     b.settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsFatal(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("adapter circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	b.breakers[key] = cb
	return cb
}
