package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/batchkit/pipeline"
)

func TestBaseConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := BaseConfig{Name: "trainer"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := BaseConfig{Name: "trainer", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})
}

func TestBaseConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BaseConfig
		wantErr bool
		errMsg  string
	}{
		{"valid development", BaseConfig{Name: "trainer", Environment: "development"}, false, ""},
		{"valid staging", BaseConfig{Name: "trainer", Environment: "staging"}, false, ""},
		{"valid production", BaseConfig{Name: "trainer", Environment: "production"}, false, ""},
		{"missing name", BaseConfig{Environment: "production"}, true, "base.name: is required"},
		{"invalid environment", BaseConfig{Name: "trainer", Environment: "qa"}, true, "base.environment: must be one of"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), tc.errMsg) {
					t.Errorf("expected error containing %q, got %q", tc.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadConfigRunSection(t *testing.T) {
	path := writeConfigFile(t, `
name: trainer
environment: staging
version: "0.4.2"
logging:
  level: debug
  format: json
run:
  batch_size: 32
  shuffle: true
  epochs: 2
  drop_last: true
  prefetch: 8
  workers: threads
  seed: 7
`)

	var cfg ServiceConfig
	if err := LoadConfig("trainer", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Name != "trainer" || cfg.Environment != "staging" {
		t.Errorf("identity = %q/%q, want trainer/staging", cfg.Name, cfg.Environment)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q, want debug", cfg.Logging.Level)
	}
	want := pipeline.RunConfig{
		BatchSize: 32, Shuffle: true, Epochs: 2, DropLast: true,
		Prefetch: 8, Workers: pipeline.WorkersThreads, Seed: 7,
	}
	if cfg.Run != want {
		t.Errorf("run section = %+v, want %+v", cfg.Run, want)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
name: trainer
environment: staging
run:
  batch_size: 32
  workers: threads
`)

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RUN_WORKERS", "processes")

	var cfg ServiceConfig
	if err := LoadConfig("trainer", &cfg, WithConfigFile(path)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("environment = %q, want production (env override)", cfg.Environment)
	}
	if cfg.Run.Workers != pipeline.WorkersProcesses {
		t.Errorf("run.workers = %q, want processes (nested env override)", cfg.Run.Workers)
	}
}

func TestLoadConfigMissingFileIsNotFatal(t *testing.T) {
	var cfg ServiceConfig
	err := LoadConfig("trainer", &cfg, WithConfigFile("/nonexistent/config.yml"))
	if err != nil {
		t.Fatalf("expected LoadConfig to tolerate a missing file, got %v", err)
	}
}

func TestServiceConfigDefaults(t *testing.T) {
	cfg := ServiceConfig{BaseConfig: BaseConfig{Name: "trainer"}}
	cfg.ApplyDefaults()

	if cfg.Run.BatchSize != 1 {
		t.Errorf("default batch size = %d, want 1", cfg.Run.BatchSize)
	}
	if cfg.Run.Workers != pipeline.WorkersThreads {
		t.Errorf("default workers = %q, want threads", cfg.Run.Workers)
	}
	if cfg.Logging.ServiceName != "trainer" {
		t.Errorf("logging service name = %q, want trainer", cfg.Logging.ServiceName)
	}
}

func TestServiceConfigValidateRun(t *testing.T) {
	cfg := ServiceConfig{BaseConfig: BaseConfig{Name: "trainer", Environment: "development"}}
	cfg.ApplyDefaults()
	cfg.Run.BatchSize = 0
	cfg.Run.Prefetch = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "run.batch_size") || !strings.Contains(err.Error(), "run.prefetch") {
		t.Errorf("expected run field errors, got %q", err.Error())
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool   { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }
func (m *mockFS) Getwd() (string, error)    { return "/mock", nil }

func TestResolverPrefersCmdDir(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/trainer/config.yml": true,
		"./config/config.yml":      true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("trainer", LoaderConfig{})
	if files.ConfigFile != "./cmd/trainer/config.yml" {
		t.Errorf("config file = %q, want ./cmd/trainer/config.yml", files.ConfigFile)
	}
}

func TestResolverFindsServiceEnvFile(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./.env.trainer": true,
		"./.env":         true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("trainer", LoaderConfig{})
	if files.EnvFile != "./.env.trainer" {
		t.Errorf("env file = %q, want ./.env.trainer", files.EnvFile)
	}
}

func TestResolverDashSuffixMatches(t *testing.T) {
	fs := &mockFS{files: map[string]bool{
		"./cmd/worker/config.yml": true,
	}}
	resolver := &Resolver{FileSystem: fs}
	files := resolver.ResolveFiles("trainer-worker", LoaderConfig{})
	if files.ConfigFile != "./cmd/worker/config.yml" {
		t.Errorf("config file = %q, want ./cmd/worker/config.yml", files.ConfigFile)
	}
}

func TestLoaderOptions(t *testing.T) {
	var lc LoaderConfig
	fs := &mockFS{}
	WithFileSystem(fs)(&lc)
	WithConfigFile("/etc/trainer/config.yml")(&lc)
	WithEnvFile("/etc/trainer/.env")(&lc)

	if lc.FileSystem == nil {
		t.Error("expected FileSystem to be set")
	}
	if lc.ConfigFile != "/etc/trainer/config.yml" {
		t.Errorf("config file = %q", lc.ConfigFile)
	}
	if lc.EnvFile != "/etc/trainer/.env" {
		t.Errorf("env file = %q", lc.EnvFile)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("RUN_BATCH_SIZE")
	wantAll := []string{"run_batch_size", "run.batch.size", "run.batch_size"}
	for _, w := range wantAll {
		found := false
		for _, g := range got {
			if g == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("variants of RUN_BATCH_SIZE missing %q (got %v)", w, got)
		}
	}

	if got := envKeyVariants("DEBUG"); len(got) != 1 || got[0] != "debug" {
		t.Errorf("variants of DEBUG = %v, want [debug]", got)
	}
}
