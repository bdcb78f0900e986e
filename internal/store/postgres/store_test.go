package postgres

import (
	"os"
	"testing"

	conf "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/internal/store/storetest"
)

func TestStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	s := New(&conf.DatabaseConfig{Driver: conf.DriverPostgres, Url: url})
	if err := s.Open(); err != nil {
		t.Skipf("postgres is not reachable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, s)
}
