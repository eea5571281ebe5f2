package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration
type Config struct {
	ServiceName string           `koanf:"service_name"`
	Server      ServerConfig     `koanf:"server"`
	Mongo       MongoConfig      `koanf:"mongo"`
	Logging     LoggingConfig    `koanf:"logging"`
	RabbitMQ    RabbitMQConfig   `koanf:"rabbitmq"`
	Supervisor  SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// MongoConfig holds document store connection settings
type MongoConfig struct {
	URI              string        `koanf:"uri"`
	Database         string        `koanf:"database"`
	UserCollection   string        `koanf:"user_collection"`
	ClientCollection string        `koanf:"client_collection"`
	Timeout          time.Duration `koanf:"timeout"`
}

// LoggingConfig holds log sink settings
type LoggingConfig struct {
	Dir      string `koanf:"dir"`
	Filename string `koanf:"filename"`
	Level    string `koanf:"level"`
	Backups  int    `koanf:"backups"`
	Console  bool   `koanf:"console"`
}

// RabbitMQConfig holds report event publishing settings. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL            string `koanf:"url"`
	ReportExchange string `koanf:"report_exchange"`
}

// SupervisorConfig holds settings for the service supervisor binary
type SupervisorConfig struct {
	Service  string        `koanf:"service"`
	Services []string      `koanf:"services"`
	Backend  string        `koanf:"backend"`
	Workers  int           `koanf:"workers"`
	Timeout  time.Duration `koanf:"timeout"`
}

const (
	BackendDBus      = "dbus"
	BackendSystemctl = "systemctl"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/screenrecording-report/config.yaml",
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	"service_name":             "service_name",
	"service_port":             "server.port",
	"port":                     "server.port",
	"server_read_timeout":      "server.read_timeout",
	"server_write_timeout":     "server.write_timeout",
	"mongo_uri":                "mongo.uri",
	"mongo_db":                 "mongo.database",
	"mongo_user_collection":    "mongo.user_collection",
	"mongo_client_collection":  "mongo.client_collection",
	"mongo_timeout":            "mongo.timeout",
	"log_dir":                  "logging.dir",
	"log_filename":             "logging.filename",
	"log_level":                "logging.level",
	"log_backups":              "logging.backups",
	"log_console":              "logging.console",
	"rabbitmq_url":             "rabbitmq.url",
	"rabbitmq_report_exchange": "rabbitmq.report_exchange",
	"service_file":             "supervisor.service",
	"supervised_service":       "supervisor.service",
	"supervisor_services":      "supervisor.services",
	"supervisor_backend":       "supervisor.backend",
	"supervisor_workers":       "supervisor.workers",
	"supervisor_timeout":       "supervisor.timeout",
}

func defaultConfig() *Config {
	return &Config{
		ServiceName: "screenrecording-report",
		Server: ServerConfig{
			Port:         9006,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Mongo: MongoConfig{
			URI:              "mongodb://localhost:27017",
			Database:         "screenrecording",
			UserCollection:   "user_report",
			ClientCollection: "client_report",
			Timeout:          5 * time.Second,
		},
		Logging: LoggingConfig{
			Dir:      "/var/log/czentrix",
			Filename: "screenrecording_report.log",
			Level:    "info",
			Backups:  7,
			Console:  true,
		},
		RabbitMQ: RabbitMQConfig{
			ReportExchange: "screenrecording.report.events.exchange",
		},
		Supervisor: SupervisorConfig{
			Service:  "screenrecording-report",
			Services: []string{},
			Backend:  BackendDBus,
			Timeout:  30 * time.Second,
		},
	}
}

// Load loads configuration from defaults, an optional YAML file and environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// SUPERVISOR_SERVICES arrives as a comma-separated string.
	if raw, ok := k.Get("supervisor.services").(string); ok {
		if err := k.Set("supervisor.services", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse supervisor.services: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required")
	}
	if c.Mongo.UserCollection == "" || c.Mongo.ClientCollection == "" {
		return fmt.Errorf("mongo.user_collection and mongo.client_collection are required")
	}
	if c.Mongo.UserCollection == c.Mongo.ClientCollection {
		return fmt.Errorf("mongo.user_collection and mongo.client_collection must differ, both are %q", c.Mongo.UserCollection)
	}
	if c.Logging.Backups < 0 {
		return fmt.Errorf("logging.backups must not be negative")
	}
	switch c.Supervisor.Backend {
	case BackendDBus, BackendSystemctl:
	default:
		return fmt.Errorf("supervisor.backend must be %q or %q, got %q", BackendDBus, BackendSystemctl, c.Supervisor.Backend)
	}
	if c.Supervisor.Workers < 0 {
		return fmt.Errorf("supervisor.workers must not be negative")
	}
	return nil
}

// SupervisedServices returns the service names the supervisor should keep alive
func (c *Config) SupervisedServices() []string {
	if len(c.Supervisor.Services) > 0 {
		return c.Supervisor.Services
	}
	if c.Supervisor.Service == "" {
		return nil
	}
	return []string{c.Supervisor.Service}
}

// Addr returns the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps known environment variables onto koanf paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func splitList(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
