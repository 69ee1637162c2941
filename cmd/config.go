package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcpguard/mcpguard/internal/api"
	"github.com/mcpguard/mcpguard/internal/sql"
	"github.com/mcpguard/mcpguard/pkg/insights"
)

// Config is the full server configuration. Flags override the values
// loaded from the optional YAML file.
type Config struct {
	Server    api.Config      `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Insights  insights.Config `yaml:"insights"`
	PprofAddr string          `yaml:"pprof_addr"`
}

// DatabaseConfig selects and parameterizes the storage backend.
type DatabaseConfig struct {
	Type                   string `yaml:"type"`
	Path                   string `yaml:"path"`
	Host                   string `yaml:"host"`
	Port                   string `yaml:"port"`
	User                   string `yaml:"user"`
	Password               string `yaml:"password"`
	Name                   string `yaml:"name"`
	InstanceConnectionName string `yaml:"instance_connection_name"`
}

func (c *DatabaseConfig) connectorConfig() sql.ConnectorConfig {
	return sql.ConnectorConfig{
		Type:                   c.Type,
		Path:                   c.Path,
		Host:                   c.Host,
		Port:                   c.Port,
		User:                   c.User,
		Password:               c.Password,
		Name:                   c.Name,
		InstanceConnectionName: c.InstanceConnectionName,
	}
}

func defaultConfig() Config {
	return Config{
		Server: api.Config{Addr: ":8080"},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "mcpguard.db",
		},
		Insights: insights.Config{
			AnomalyDetection: true,
			Correlation:      true,
			Prioritization:   true,
		},
	}
}

// loadConfig reads the YAML config file when a path is given, on top
// of the built-in defaults.
func loadConfig(path string) (Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}
