package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type StoreConfig struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type SegmentationConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type ServiceConfig struct {
	Port          int                `yaml:"port"`
	Store         StoreConfig        `yaml:"store"`
	Segmentation  SegmentationConfig `yaml:"segmentation"`
	RenderWorkers int                `yaml:"renderWorkers"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML
	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Store.Type == "" {
		config.Store.Type = "memory"
	}
	if config.Segmentation.TimeoutSeconds == 0 {
		config.Segmentation.TimeoutSeconds = 150
	}
}

func validateConfig(config *ServiceConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be in (0, 65535], got %d", config.Port)
	}

	switch config.Store.Type {
	case "memory":
	case "sqlite", "redis":
		if config.Store.ConnectionString == "" {
			return fmt.Errorf("%s store requires a connection string", config.Store.Type)
		}
	default:
		return fmt.Errorf("unsupported store type: %s", config.Store.Type)
	}

	if config.Segmentation.TimeoutSeconds < 0 {
		return fmt.Errorf("segmentation timeout must not be negative, got %d", config.Segmentation.TimeoutSeconds)
	}

	return nil
}
