package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/document-exporter/internal/model"
	"github.com/webitel/document-exporter/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}

func TestGetJobReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	job := &model.ExportJob{ID: "j1", ProjectID: "p", Status: model.JobPending, DocumentIDs: []string{"d1"}, StartedAt: time.Now()}
	require.NoError(t, s.Jobs().InsertJob(ctx, job))

	got, err := s.Jobs().GetJob(ctx, "j1")
	require.NoError(t, err)
	got.DocumentIDs[0] = "changed"

	again, err := s.Jobs().GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, again.DocumentIDs)
}
