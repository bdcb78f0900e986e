package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	conf "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/registry"
)

func TestNewConsulRegistryValidation(t *testing.T) {
	_, err := NewConsulRegistry(&conf.ConsulConfig{Address: "consul:8500", PublicAddress: "10.0.0.1:9000"})
	require.Error(t, err)

	_, err = NewConsulRegistry(&conf.ConsulConfig{Id: "exp-1", Address: "consul:8500", PublicAddress: "10.0.0.1"})
	require.Error(t, err)

	_, err = NewConsulRegistry(&conf.ConsulConfig{Id: "exp-1", Address: "consul:8500", PublicAddress: "10.0.0.1:grpc"})
	require.Error(t, err)
}

func TestRegisterWithGRPCCheck(t *testing.T) {
	var (
		mu           sync.Mutex
		registered   consulapi.AgentServiceRegistration
		deregistered string
	)
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.URL.Path == "/v1/agent/service/register":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&registered))
		case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
			deregistered = strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/")
		default:
			http.NotFound(w, r)
		}
	}))
	defer agent.Close()

	reg, err := NewConsulRegistry(&conf.ConsulConfig{
		Id:            "exp-1",
		Address:       strings.TrimPrefix(agent.URL, "http://"),
		PublicAddress: "10.0.0.1:9000",
	})
	require.NoError(t, err)

	require.NoError(t, reg.Register())
	require.NoError(t, reg.Deregister())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "exp-1", registered.ID)
	assert.Equal(t, registry.ServiceName, registered.Name)
	assert.Equal(t, 9000, registered.Port)
	require.NotNil(t, registered.Check)
	assert.Equal(t, "10.0.0.1:9000/"+registry.ServiceName, registered.Check.GRPC)
	assert.Equal(t, "exp-1", deregistered)
}
