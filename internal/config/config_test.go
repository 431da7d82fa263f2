package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/CageChen/cratedeck/internal/app"
	"github.com/CageChen/cratedeck/internal/apperr"
	"github.com/CageChen/cratedeck/internal/archive"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cratedeck.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mode != ModeTerminal {
		t.Errorf("expected mode terminal, got %s", cfg.Mode)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if !cfg.Watch {
		t.Error("expected watch to be true")
	}
	if cfg.Policy() != app.PickLastWriteWins {
		t.Errorf("expected last-write-wins, got %s", cfg.Policy())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadArgs_FileThenFlags(t *testing.T) {
	path := writeConfig(t, `
mode: web
port: 9000
source: ./crate
pick_policy: cancel
export:
  format: tar.gz
  name: snapshot
fetch:
  resource: https://example.com/notes.md
  fold_errors: true
`)

	cfg, err := LoadArgs([]string{"-config", path, "-port", "9100", "-watch=false"})
	if err != nil {
		t.Fatalf("LoadArgs failed: %v", err)
	}
	if cfg.Mode != ModeWeb {
		t.Errorf("expected mode web, got %s", cfg.Mode)
	}
	if cfg.Port != 9100 {
		t.Errorf("flag should override port, got %d", cfg.Port)
	}
	if cfg.Watch {
		t.Error("flag should disable watch")
	}
	if cfg.Source != "./crate" {
		t.Errorf("expected source ./crate, got %s", cfg.Source)
	}
	if cfg.Policy() != app.PickCancel {
		t.Errorf("expected cancel policy, got %s", cfg.Policy())
	}
	if cfg.ExportFormat() != archive.FormatTarGz || cfg.Export.Name != "snapshot" {
		t.Errorf("unexpected export config %+v", cfg.Export)
	}
	if !cfg.Fetch.FoldErrors {
		t.Error("expected fold_errors from file")
	}
	// Fields absent from the file keep their defaults.
	if cfg.LogFile != "cratedeck.log" {
		t.Errorf("expected default log file, got %s", cfg.LogFile)
	}
	if cfg.GetConfigFilePath() != path {
		t.Errorf("config path = %s", cfg.GetConfigFilePath())
	}
}

func TestLoadArgs_ExplicitFileErrors(t *testing.T) {
	_, err := LoadArgs([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindConfig {
		t.Errorf("expected a config error, got %v", err)
	}

	bad := writeConfig(t, "mode: [unclosed")
	if _, err := LoadArgs([]string{"-config", bad}); err == nil {
		t.Error("expected a parse error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "gui" }},
		{"port", func(c *Config) { c.Port = 0 }},
		{"format", func(c *Config) { c.Export.Format = "rar" }},
		{"policy", func(c *Config) { c.PickPolicy = "first-wins" }},
		{"name", func(c *Config) { c.Export.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.configPath = tmpFile
	cfg.Port = 9999
	cfg.Exclude = []string{"target/**"}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg2 := &Config{}
	if err := cfg2.loadFromFile(tmpFile); err != nil {
		t.Fatalf("loadFromFile failed: %v", err)
	}
	if cfg2.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg2.Port)
	}
	if len(cfg2.Exclude) != 1 || cfg2.Exclude[0] != "target/**" {
		t.Errorf("exclude loading failed: %v", cfg2.Exclude)
	}
	if cfg2.Export.Format != "zip" {
		t.Errorf("expected export format zip, got %s", cfg2.Export.Format)
	}
}

func TestLoadArgs_SaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cratedeck.yaml")
	if err := os.WriteFile(path, []byte("port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadArgs([]string{"-config", path, "-mode", "web", "-save-config"})
	if err != nil {
		t.Fatalf("LoadArgs failed: %v", err)
	}
	if !cfg.SaveRequested() {
		t.Fatal("expected -save-config to request a save")
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	again, err := LoadArgs([]string{"-config", path})
	if err != nil {
		t.Fatalf("reloading saved config: %v", err)
	}
	if again.Mode != ModeWeb || again.Port != 9000 {
		t.Errorf("saved config lost flags: mode=%s port=%d", again.Mode, again.Port)
	}
	if again.SaveRequested() {
		t.Error("save request must not persist")
	}
}
