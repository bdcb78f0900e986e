package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/webitel/document-exporter/internal/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
	DriverRedis    = "redis"
)

type AppConfig struct {
	File         string              `json:"-"`
	Consul       *ConsulConfig       `json:"consul,omitempty"`
	Redis        *RedisConfig        `json:"redis,omitempty"`
	Database     *DatabaseConfig     `json:"database,omitempty"`
	Queue        *QueueConfig        `json:"queue,omitempty"`
	HTTP         *HTTPConfig         `json:"http,omitempty"`
	Export       *ExportConfig       `json:"export,omitempty"`
	Integrations *IntegrationsConfig `json:"integrations,omitempty"`
	Documents    *DocumentsConfig    `json:"documents,omitempty"`
	Nats         *NatsConfig         `json:"nats,omitempty"`
	Language     string              `json:"language"`
}

// ConsulConfig is optional; without an address the service does not register.
type ConsulConfig struct {
	Id            string `json:"id"`
	Address       string `json:"address"`
	PublicAddress string `json:"publicAddress"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	Driver string `json:"driver"`
	Url    string `json:"url"`
}

type QueueConfig struct {
	Driver string `json:"driver"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type ExportConfig struct {
	Workers             int           `json:"workers"`
	JobTimeout          time.Duration `json:"jobTimeout"`
	PollInterval        time.Duration `json:"pollInterval"`
	TransferParallelism int           `json:"transferParallelism"`
	ProgressInterval    time.Duration `json:"progressInterval"`
	// QueueTimeout is how long a job may stay pending before it is failed.
	QueueTimeout time.Duration `json:"queueTimeout"`
}

type IntegrationsConfig struct {
	SyncInterval time.Duration `json:"syncInterval"`
}

type DocumentsConfig struct {
	SourceURL string `json:"sourceUrl"`
}

type NatsConfig struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// LoadConfig reads .env, then flags, environment and the optional JSON file.
func LoadConfig() (*AppConfig, error) {
	// a missing .env is the normal case outside development
	_ = godotenv.Load()
	return Load(os.Args[1:])
}

// Load builds the configuration from args and the environment.
func Load(args []string) (*AppConfig, error) {
	v := viper.New()
	if err := bindFlagsAndEnv(v, args); err != nil {
		return nil, err
	}

	configFile := getConfigFilePath(v)
	if configFile != "" {
		if err := loadFromFile(v, configFile); err != nil {
			return nil, err
		}
	}

	cfg := buildAppConfig(v, configFile)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func bindFlagsAndEnv(v *viper.Viper, args []string) error {
	fs := pflag.NewFlagSet("document-exporter", pflag.ContinueOnError)
	fs.String("config_file", "", "Configuration file in JSON format")

	// database
	fs.String("db_driver", DriverPostgres, "Store driver: postgres, sqlite or memory")
	fs.String("data_source", "", "Data source")

	// consul
	fs.String("id", "", "Service id")
	fs.String("consul", "", "Host to consul")
	fs.String("grpc_addr", "", "Public gRPC address with port")

	// redis
	fs.String("redis_addr", "localhost:6379", "Redis address")
	fs.String("redis_password", "", "Redis password")
	fs.Int("redis_db", 0, "Redis DB number")
	fs.String("queue_driver", DriverRedis, "Queue and job cache driver: redis or memory")

	// http
	fs.String("http_addr", ":8080", "HTTP API address")

	// export
	fs.Int("workers", 4, "Number of concurrent export workers")
	fs.Duration("job_timeout", 45*time.Second, "Hard ceiling of one export job")
	fs.Duration("poll_interval", 2*time.Second, "Job watch polling interval")
	fs.Int("transfer_parallelism", 1, "Documents sent concurrently within one job")
	fs.Duration("progress_interval", 500*time.Millisecond, "Mean interval of intermediate progress ticks")
	fs.Duration("queue_timeout", 10*time.Minute, "How long a job may wait for a worker before it is failed")

	// integrations
	fs.Duration("sync_interval", 15*time.Minute, "Auto-sync interval of integrations")

	// documents
	fs.String("documents_url", "", "Base URL of the document source API")

	// notifications
	fs.String("nats_url", "", "NATS server URL for notifications")
	fs.String("nats_subject", "document_exporter.notifications", "NATS subject for notifications")
	fs.String("language", "en-us", "Default language of notifications and errors")

	if err := fs.Parse(args); err != nil {
		return errors.InvalidArgument(fmt.Sprintf("could not parse flags: %s", err.Error()))
	}

	_ = v.BindPFlags(fs)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit mapping
	_ = v.BindEnv("id", "CONSUL_ID")
	_ = v.BindEnv("consul", "CONSUL_HOST")
	_ = v.BindEnv("grpc_addr", "GRPC_ADDR")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis_db", "REDIS_DB")
	_ = v.BindEnv("db_driver", "DB_DRIVER")
	_ = v.BindEnv("data_source", "DATA_SOURCE")
	_ = v.BindEnv("nats_url", "NATS_URL")
	return nil
}

func getConfigFilePath(v *viper.Viper) string {
	file := v.GetString("config_file")
	if file == "" {
		file = os.Getenv("DOCUMENT_EXPORTER_CONFIG_FILE")
	}
	return file
}

func loadFromFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return errors.New(fmt.Sprintf("could not load config file: %s", err.Error()))
	}
	return nil
}

func buildAppConfig(v *viper.Viper, file string) *AppConfig {
	return &AppConfig{
		File: file,
		Database: &DatabaseConfig{
			Driver: strings.ToLower(v.GetString("db_driver")),
			Url:    v.GetString("data_source"),
		},
		Queue: &QueueConfig{Driver: strings.ToLower(v.GetString("queue_driver"))},
		HTTP:  &HTTPConfig{Addr: v.GetString("http_addr")},
		Export: &ExportConfig{
			Workers:             v.GetInt("workers"),
			JobTimeout:          v.GetDuration("job_timeout"),
			PollInterval:        v.GetDuration("poll_interval"),
			TransferParallelism: v.GetInt("transfer_parallelism"),
			ProgressInterval:    v.GetDuration("progress_interval"),
			QueueTimeout:        v.GetDuration("queue_timeout"),
		},
		Integrations: &IntegrationsConfig{SyncInterval: v.GetDuration("sync_interval")},
		Documents:    &DocumentsConfig{SourceURL: v.GetString("documents_url")},
		Nats: &NatsConfig{
			URL:     v.GetString("nats_url"),
			Subject: v.GetString("nats_subject"),
		},
		Language: v.GetString("language"),
		Consul: &ConsulConfig{
			Id:            v.GetString("id"),
			Address:       v.GetString("consul"),
			PublicAddress: v.GetString("grpc_addr"),
		},
		Redis: &RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
	}
}

func validateConfig(cfg *AppConfig) error {
	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
		if cfg.Database.Url == "" {
			return errors.New("Data source is required")
		}
	case DriverMemory:
	default:
		return errors.New(fmt.Sprintf("Unknown database driver %q", cfg.Database.Driver))
	}
	switch cfg.Queue.Driver {
	case DriverRedis:
		if cfg.Redis.Addr == "" {
			return errors.New("Redis address is required")
		}
	case DriverMemory:
	default:
		return errors.New(fmt.Sprintf("Unknown queue driver %q", cfg.Queue.Driver))
	}
	if cfg.Consul.Address != "" {
		if cfg.Consul.Id == "" {
			return errors.New("Service id is required")
		}
		if cfg.Consul.PublicAddress == "" {
			return errors.New("gRPC address is required")
		}
	}
	if cfg.HTTP.Addr == "" {
		return errors.New("HTTP address is required")
	}
	if cfg.Documents.SourceURL == "" {
		return errors.New("Document source URL is required")
	}
	if cfg.Export.Workers < 1 {
		return errors.New("At least one export worker is required")
	}
	if cfg.Export.JobTimeout <= 0 || cfg.Export.PollInterval <= 0 || cfg.Export.ProgressInterval <= 0 || cfg.Export.QueueTimeout <= 0 {
		return errors.New("Export intervals must be positive")
	}
	if cfg.Export.TransferParallelism < 1 {
		return errors.New("Transfer parallelism must be at least 1")
	}
	if cfg.Integrations.SyncInterval <= 0 {
		return errors.New("Sync interval must be positive")
	}
	return nil
}
