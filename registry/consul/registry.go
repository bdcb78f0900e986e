package consul

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"

	conf "github.com/webitel/document-exporter/config"
	"github.com/webitel/document-exporter/internal/errors"
	"github.com/webitel/document-exporter/registry"
)

// ConsulRegistry registers the service with an agent-side gRPC health check,
// so the agent polls grpc.health.v1 instead of the service pushing TTL updates.
type ConsulRegistry struct {
	registrationConfig *consulapi.AgentServiceRegistration
	client             *consulapi.Client
}

// NewConsulRegistry creates a new Consul registry instance.
func NewConsulRegistry(config *conf.ConsulConfig) (*ConsulRegistry, error) {
	if config.Id == "" {
		return nil, errors.Internal(
			"service id is empty! (set it by '-id' flag)",
			errors.WithID("consul.registry.new_consul.check_args.service_id"),
		)
	}
	ip, port, err := net.SplitHostPort(config.PublicAddress)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse address",
			errors.WithID("consul.registry.new_consul.parse_address.error"),
			errors.WithCause(err),
		)
	}
	parsedPort, err := strconv.Atoi(port)
	if err != nil {
		return nil, errors.Internal(
			"unable to parse port",
			errors.WithID("consul.registry.new_consul.parse_port.error"),
			errors.WithCause(err),
		)
	}

	consulConfig := consulapi.DefaultConfig()
	consulConfig.Address = config.Address
	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.new_consul_registry.consulapi_creation.error"),
		)
	}

	return &ConsulRegistry{
		client: client,
		registrationConfig: &consulapi.AgentServiceRegistration{
			ID:      config.Id,
			Name:    registry.ServiceName,
			Port:    parsedPort,
			Address: ip,
			Check: &consulapi.AgentServiceCheck{
				CheckID:                        "service:" + config.Id + ":grpc",
				GRPC:                           net.JoinHostPort(ip, port) + "/" + registry.ServiceName,
				Interval:                       registry.CheckInterval.String(),
				Timeout:                        registry.CheckTimeout.String(),
				DeregisterCriticalServiceAfter: registry.DeregisterCriticalServiceAfter.String(),
			},
		},
	}, nil
}

// Register registers the service with Consul.
func (c *ConsulRegistry) Register() error {
	if err := c.client.Agent().ServiceRegister(c.registrationConfig); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.consul.register.error"),
		)
	}
	slog.Info(fmtConsulLog("service was registered"),
		slog.String("id", c.registrationConfig.ID),
		slog.String("check", c.registrationConfig.Check.GRPC),
	)
	return nil
}

func (c *ConsulRegistry) Deregister() error {
	if err := c.client.Agent().ServiceDeregister(c.registrationConfig.ID); err != nil {
		return errors.Internal(
			err.Error(),
			errors.WithID("consul.registry.consul.deregister.error"),
		)
	}
	slog.Info(fmtConsulLog("service was deregistered"))
	return nil
}

func fmtConsulLog(s string) string {
	return fmt.Sprintf("consul: %s", s)
}
