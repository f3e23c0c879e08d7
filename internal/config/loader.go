package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "provisr.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PROVISR_PORT")
	setString(&cfg.Database.Path, "PROVISR_DATABASE_PATH")
	setString(&cfg.Cluster.URL, "PROVISR_CLUSTER_URL")
	setString(&cfg.Cluster.Token, "PROVISR_CLUSTER_TOKEN")
	setDuration(&cfg.Cluster.Timeout, "PROVISR_CLUSTER_TIMEOUT")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Manifests.Root, "PROVISR_MANIFEST_ROOT")
	setString(&cfg.Registry.Root, "PROVISR_REGISTRY_ROOT")
	setString(&cfg.Tenancy.RootDomain, "PROVISR_ROOT_DOMAIN")
	setBool(&cfg.Tenancy.DeletionEnabled, "PROVISR_TENANT_DELETION_ENABLED")
	setBool(&cfg.Tenancy.PublicMultiDomain, "PROVISR_PUBLIC_MULTI_DOMAIN")
	setBool(&cfg.Tenancy.UsernameUniqueAcrossTenants, "PROVISR_USERNAME_UNIQUE")
	setInt(&cfg.Paging.DefaultLimit, "PROVISR_PAGE_DEFAULT_LIMIT")
	setInt(&cfg.Paging.MaxLimit, "PROVISR_PAGE_MAX_LIMIT")
	setDuration(&cfg.Cache.Sweep, "PROVISR_CACHE_SWEEP")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*dst = parsed
		}
	}
}
