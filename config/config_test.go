package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || cfg.Environment != "dev" || cfg.InMemory {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
DataDir = "/var/lib/nftmarket"
Environment = "prod"
PausedModules = ["marketplace"]
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "/var/lib/nftmarket" {
		t.Fatalf("data dir = %q", cfg.DataDir)
	}
	if cfg.Environment != "prod" {
		t.Fatalf("environment = %q", cfg.Environment)
	}
	if !cfg.IsPaused("marketplace") {
		t.Fatalf("expected marketplace paused")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("DataDir = \"  \"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation failure")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"persistent with dir", &Config{DataDir: "./data"}, false},
		{"persistent without dir", &Config{DataDir: "   "}, true},
		{"in-memory without dir", &Config{InMemory: true}, false},
		{"nil", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsPausedMatchesCaseInsensitive(t *testing.T) {
	cfg := &Config{PausedModules: []string{" Marketplace "}}
	if !cfg.IsPaused("marketplace") {
		t.Fatalf("expected paused match")
	}
	if cfg.IsPaused("assets") {
		t.Fatalf("unexpected pause")
	}
}
