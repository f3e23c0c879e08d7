package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom with missing file: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Tenancy.RootDomain != "super.internal" {
		t.Errorf("Tenancy.RootDomain = %q", cfg.Tenancy.RootDomain)
	}
	if cfg.Paging.DefaultLimit != 50 || cfg.Paging.MaxLimit != 500 {
		t.Errorf("Paging = %+v", cfg.Paging)
	}
	if cfg.Cache.Sweep != 15*time.Minute {
		t.Errorf("Cache.Sweep = %v", cfg.Cache.Sweep)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("NATS.URL = %q, want empty (single-node)", cfg.NATS.URL)
	}
}

func TestYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provisr.yaml")
	yaml := `
server:
  port: "9090"
cluster:
  url: http://orchestrator:6443
  timeout: 5s
tenancy:
  rootDomain: admin.example.com
  deletionEnabled: false
  compulsoryServices:
    crm: [contacts, mail]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Cluster.URL != "http://orchestrator:6443" || cfg.Cluster.Timeout != 5*time.Second {
		t.Errorf("Cluster = %+v", cfg.Cluster)
	}
	if cfg.Tenancy.RootDomain != "admin.example.com" {
		t.Errorf("Tenancy.RootDomain = %q", cfg.Tenancy.RootDomain)
	}
	if cfg.Tenancy.DeletionEnabled {
		t.Error("Tenancy.DeletionEnabled must be overridden to false")
	}
	if got := cfg.Tenancy.CompulsoryServices["crm"]; len(got) != 2 {
		t.Errorf("CompulsoryServices = %v", cfg.Tenancy.CompulsoryServices)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Path != "provisr.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provisr.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PROVISR_PORT", "7070")
	t.Setenv("PROVISR_ROOT_DOMAIN", "root.example.org")
	t.Setenv("PROVISR_TENANT_DELETION_ENABLED", "false")
	t.Setenv("NATS_URL", "nats://bus:4222")
	t.Setenv("PROVISR_CACHE_SWEEP", "1m")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Tenancy.RootDomain != "root.example.org" {
		t.Errorf("Tenancy.RootDomain = %q", cfg.Tenancy.RootDomain)
	}
	if cfg.Tenancy.DeletionEnabled {
		t.Error("deletion must be disabled via env")
	}
	if cfg.NATS.URL != "nats://bus:4222" {
		t.Errorf("NATS.URL = %q", cfg.NATS.URL)
	}
	if cfg.Cache.Sweep != time.Minute {
		t.Errorf("Cache.Sweep = %v", cfg.Cache.Sweep)
	}
}

func TestValidateRejectsBadPaging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provisr.yaml")
	if err := os.WriteFile(path, []byte("paging:\n  defaultLimit: 600\n  maxLimit: 500\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error for default limit above maximum")
	}
}

func TestMalformedYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provisr.yaml")
	if err := os.WriteFile(path, []byte("server: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}
