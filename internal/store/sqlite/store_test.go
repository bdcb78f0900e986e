package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/document-exporter/internal/store/storetest"
)

func TestStore(t *testing.T) {
	s := New(":memory:")
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s)
}

func TestClosedStore(t *testing.T) {
	s := New(":memory:")
	_, err := s.Database()
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}
