package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
store:
  driver: memory
  seedFile: ./seed.yaml
database:
  host: db.internal
  port: 6543
polymorphic:
  allowedTypes:
    - api::article.article
  reverseScanLimit: 50
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("POLYREL_DATABASE_HOST", "override")
	t.Setenv("POLYREL_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Source != file {
		t.Fatalf("expected source %s, got %s", file, cfg.Source)
	}
	if cfg.Server.Addr != ":9090" || cfg.Store.Driver != DriverMemory || cfg.Store.SeedFile != "./seed.yaml" {
		t.Fatalf("unexpected server/store config %+v %+v", cfg.Server, cfg.Store)
	}
	if cfg.Database.Host != "override" || cfg.Database.Port != 6543 {
		t.Fatalf("expected env to override file, got %+v", cfg.Database)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level from env, got %s", cfg.LogLevel)
	}
	if diff := cmp.Diff([]string{"api::article.article"}, cfg.Polymorphic.AllowedTypes); diff != "" {
		t.Fatalf("allowed types mismatch (-want +got):\n%s", diff)
	}
	if cfg.Polymorphic.ReverseScanLimit != 50 || cfg.Polymorphic.PushdownScanLimit != 10000 {
		t.Fatalf("unexpected limits %+v", cfg.Polymorphic)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("POLYREL_STORE_DRIVER", "mongo")
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatalf("expected an error for an unknown driver")
	}
}
