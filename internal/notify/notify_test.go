package notify

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/document-exporter/internal/i18n"
	"github.com/webitel/document-exporter/internal/model"
)

func TestForJob(t *testing.T) {
	T := i18n.MustTfunc("en-us")

	full := model.ExportJob{
		ID:             "j1",
		Status:         model.JobCompleted,
		TotalDocuments: 2,
		ExportResults: []model.ExportResult{
			{DocumentID: "a", Status: model.DocumentExported},
			{DocumentID: "b", Status: model.DocumentExported},
		},
	}
	n := ForJob(T, full, "Team Site")
	assert.Equal(t, model.NotifySuccess, n.Kind)
	assert.Equal(t, "Export completed", n.Title)
	assert.Equal(t, "2 documents exported to Team Site", n.Message)
	assert.Equal(t, "j1", n.JobID)

	partial := full.Clone()
	partial.ExportResults[1].Status = model.DocumentFailed
	n = ForJob(T, partial, "Team Site")
	assert.Equal(t, model.NotifyInfo, n.Kind)
	assert.Equal(t, "1 of 2 documents exported to Team Site, 1 failed", n.Message)

	failed := model.ExportJob{ID: "j2", Status: model.JobFailed, ErrorMessage: "unauthorized"}
	n = ForJob(T, failed, "Wiki")
	assert.Equal(t, model.NotifyError, n.Kind)
	assert.Equal(t, "Export to Wiki failed: unauthorized", n.Message)
}

func TestForSyncFailure(t *testing.T) {
	n := ForSyncFailure(i18n.MustTfunc(""), model.Integration{Name: "Wiki"}, stderrors.New("timeout"))
	assert.Equal(t, model.NotifyError, n.Kind)
	assert.Equal(t, "Wiki: timeout", n.Message)
}

func TestMultiAndLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var got []model.Notification
	m := Multi{NewLog(logger), nil, Func(func(_ context.Context, n model.Notification) {
		got = append(got, n)
	})}
	m.Notify(context.Background(), model.Notification{Kind: model.NotifyError, Title: "Export failed", JobID: "j1"})

	require.Len(t, got, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Export failed", entry["msg"])
	assert.Equal(t, "j1", entry["job_id"])
}

func TestNATSPublish(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}
	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	s, err := sub.ChanSubscribe("test.notifications", msgs)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	pub, err := NewNATS(url, "test.notifications")
	require.NoError(t, err)
	defer func() { _ = pub.Close() }()

	pub.Notify(context.Background(), model.Notification{Kind: model.NotifySuccess, Title: "done", JobID: "j9"})

	select {
	case msg := <-msgs:
		var got model.Notification
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "j9", got.JobID)
	case <-time.After(5 * time.Second):
		t.Fatal("notification was not delivered")
	}
}
