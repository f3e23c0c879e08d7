// Package config loads service configuration with the hierarchy
// defaults < YAML < environment.
package config

import (
	"fmt"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	NATS      NATSConfig      `yaml:"nats"`
	Manifests ManifestsConfig `yaml:"manifests"`
	Registry  RegistryConfig  `yaml:"registry"`
	Tenancy   TenancyConfig   `yaml:"tenancy"`
	Realm     RealmConfig     `yaml:"realm"`
	Paging    PagingConfig    `yaml:"paging"`
	Cache     CacheConfig     `yaml:"cache"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ClusterConfig struct {
	// URL of the cluster orchestrator API.
	URL string `yaml:"url"`
	// Token is the bearer token for the orchestrator, if any.
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type NATSConfig struct {
	// URL of the cluster message bus. Empty means single-node: broadcasts
	// become no-op successes.
	URL string `yaml:"url"`
}

type ManifestsConfig struct {
	Root string `yaml:"root"`
}

type RegistryConfig struct {
	Root string `yaml:"root"`
}

type TenancyConfig struct {
	// RootDomain is the super tenant allowed to create and delete tenants.
	RootDomain string `yaml:"rootDomain"`
	// DeletionEnabled gates tenant deletion service-wide.
	DeletionEnabled bool `yaml:"deletionEnabled"`
	// PublicMultiDomain requires tenant domains to carry an extension.
	PublicMultiDomain bool `yaml:"publicMultiDomain"`
	// UsernameUniqueAcrossTenants enforces admin usernames globally.
	UsernameUniqueAcrossTenants bool `yaml:"usernameUniqueAcrossTenants"`
	// DefaultServices are activated for tenants without an origin service.
	DefaultServices []string `yaml:"defaultServices"`
	// CompulsoryServices maps an origin service to services that must be
	// activated alongside it.
	CompulsoryServices map[string][]string `yaml:"compulsoryServices"`
}

type RealmConfig struct {
	StoreType  string            `yaml:"storeType"`
	Connection string            `yaml:"connection"`
	Properties map[string]string `yaml:"properties"`
}

type PagingConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

type CacheConfig struct {
	// Sweep is the interval of the activation cache's full clear.
	Sweep time.Duration `yaml:"sweep"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server:    ServerConfig{Port: "8080"},
		Database:  DatabaseConfig{Path: "provisr.db"},
		Cluster:   ClusterConfig{URL: "http://localhost:8001", Timeout: 30 * time.Second},
		Manifests: ManifestsConfig{Root: "manifests"},
		Registry:  RegistryConfig{Root: "tenants"},
		Tenancy: TenancyConfig{
			RootDomain:      "super.internal",
			DeletionEnabled: true,
			DefaultServices: []string{"gateway", "identity"},
		},
		Realm: RealmConfig{
			StoreType:  "embedded",
			Connection: "default",
		},
		Paging: PagingConfig{DefaultLimit: 50, MaxLimit: 500},
		Cache:  CacheConfig{Sweep: 15 * time.Minute},
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if cfg.Tenancy.RootDomain == "" {
		return fmt.Errorf("tenancy root domain must not be empty")
	}
	if cfg.Paging.DefaultLimit <= 0 || cfg.Paging.MaxLimit <= 0 {
		return fmt.Errorf("paging limits must be positive")
	}
	if cfg.Paging.DefaultLimit > cfg.Paging.MaxLimit {
		return fmt.Errorf("default page size %d exceeds maximum %d",
			cfg.Paging.DefaultLimit, cfg.Paging.MaxLimit)
	}
	return nil
}
