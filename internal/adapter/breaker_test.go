package adapter

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/document-exporter/internal/model"
)

type scriptedAdapter struct {
	calls int
	err   error
}

func (s *scriptedAdapter) Type() model.IntegrationType { return "scripted" }

func (s *scriptedAdapter) Connect(context.Context, model.IntegrationConfig) error { return s.err }

func (s *scriptedAdapter) Transfer(_ context.Context, file model.File, _ model.IntegrationConfig) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://target/" + file.Name, nil
}

func (s *scriptedAdapter) Stat(context.Context, model.IntegrationConfig) (model.SyncStats, error) {
	s.calls++
	return model.SyncStats{Documents: 1}, s.err
}

func TestBreakerOpensOnFatalErrors(t *testing.T) {
	inner := &scriptedAdapter{err: Fatal("t", stderrors.New("down"))}
	b := NewBreaker(inner, BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	cfg := model.IntegrationConfig{SiteURL: "https://a"}

	for i := 0; i < 2; i++ {
		_, err := b.Transfer(context.Background(), model.File{Name: "x"}, cfg)
		assert.True(t, IsFatal(err))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State(cfg))

	_, err := b.Transfer(context.Background(), model.File{Name: "x"}, cfg)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)

	// other targets keep their own breaker
	inner.err = nil
	url, err := b.Transfer(context.Background(), model.File{Name: "x"}, model.IntegrationConfig{SiteURL: "https://b"})
	require.NoError(t, err)
	assert.Equal(t, "https://target/x", url)
}

func TestBreakerIgnoresDocumentErrors(t *testing.T) {
	inner := &scriptedAdapter{err: &StatusError{Code: 400}}
	b := NewBreaker(inner, BreakerSettings{ConsecutiveFailures: 1, OpenTimeout: time.Minute})
	cfg := model.IntegrationConfig{SiteURL: "https://a"}

	for i := 0; i < 3; i++ {
		_, err := b.Transfer(context.Background(), model.File{}, cfg)
		require.Error(t, err)
		assert.False(t, IsFatal(err))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State(cfg))
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerPassesThroughConnectAndType(t *testing.T) {
	inner := &scriptedAdapter{}
	b := NewBreaker(inner, DefaultBreakerSettings())
	assert.Equal(t, model.IntegrationType("scripted"), b.Type())
	assert.NoError(t, b.Connect(context.Background(), model.IntegrationConfig{}))

	stats, err := b.Stat(context.Background(), model.IntegrationConfig{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Documents)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewSharePoint(nil), NewConfluence(nil))
	a, ok := r.Get(model.IntegrationSharePoint)
	require.True(t, ok)
	assert.Equal(t, model.IntegrationSharePoint, a.Type())

	_, ok = r.Get(model.IntegrationObjectStorage)
	assert.False(t, ok)
	r.Register(NewObjectStorage())
	_, ok = r.Get(model.IntegrationObjectStorage)
	assert.True(t, ok)
}

func TestFatalDoesNotDoubleWrap(t *testing.T) {
	base := stderrors.New("x")
	once := Fatal("a", base)
	twice := Fatal("b", once)
	assert.Same(t, once, twice)
	assert.Nil(t, Fatal("a", nil))
	assert.ErrorIs(t, twice, base)
}
