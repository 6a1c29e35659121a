package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes yaml into a temp dir and returns the file path.
func writeConfig(t *testing.T, yamlContent string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// clearEnv unsets variables a developer shell might export.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "ENVIRONMENT", "BASE_URL", "STORE", "PGHOST", "REDIS_HOST",
		"STORAGE_BACKEND", "MINIO_ENDPOINT", "LLM_PROVIDER", "LLM_ENDPOINT", "LLM_MODEL",
		"UPLOAD_ALLOWED_EXTENSIONS", "UPLOAD_MAX_BYTES", "AUTH_ENABLE_VERIFICATION", "JWKS_ENDPOINTS",
		"SWEEPER_ENABLED", "SWEEPER_GRACE_PERIOD", "DEAL_LOCK_TTL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadFile_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
port: "8081"
env: "test"
store: memory
database:
  host: "db.example.com"
  port: 5432
  user: "testuser"
  database: "testdb"
redis:
  host: "redis.example.com"
  port: 6379
`)

	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := LoadFile(path, "test-version")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected Port=9090 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}
	if cfg.BaseURL != "http://localhost:9090" {
		t.Errorf("expected BaseURL derived from PORT, got %s", cfg.BaseURL)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("expected Store=memory (from yaml), got %s", cfg.Store)
	}
	if !IsRunningInDocker() && cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Redis.Addr() != "redis.example.com:6379" {
		t.Errorf("expected redis addr from yaml, got %s", cfg.Redis.Addr())
	}
}

func TestLoadFile_MissingFileUsesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE", "memory")
	t.Setenv("LLM_PROVIDER", "stub")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), "v")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}

	if cfg.Store != StoreMemory {
		t.Errorf("expected Store=memory, got %s", cfg.Store)
	}
	if cfg.Upload.MaxBytes != 100*1024*1024 {
		t.Errorf("expected 100 MiB upload limit, got %d", cfg.Upload.MaxBytes)
	}
	if strings.Join(cfg.Upload.AllowedExtensions, ",") != "pdf,docx,txt" {
		t.Errorf("unexpected default extensions %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.LockTTL != 2*time.Minute {
		t.Errorf("expected LockTTL=2m, got %s", cfg.LockTTL)
	}
	if cfg.LLM.Timeout != 90*time.Second {
		t.Errorf("expected LLM timeout 90s, got %s", cfg.LLM.Timeout)
	}
	if cfg.Sweeper.GracePeriod != 24*time.Hour {
		t.Errorf("expected grace period 24h, got %s", cfg.Sweeper.GracePeriod)
	}
	if cfg.Auth.DevActorHeader != "X-Dev-Actor" || cfg.Auth.DevActor != "dev" {
		t.Errorf("unexpected dev actor defaults %q %q", cfg.Auth.DevActorHeader, cfg.Auth.DevActor)
	}
}

func TestLoadFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown store", "store: mongo\n", "store must be"},
		{"unknown storage backend", "storage:\n  backend: s3\n", "storage.backend must be"},
		{"minio without endpoint", "storage:\n  backend: minio\n", "minio_endpoint"},
		{"unknown provider", "llm:\n  provider: gemini\n", "llm.provider"},
		{"openai without endpoint", "llm:\n  provider: openai\n  model: gpt-4o\n", "llm.endpoint"},
		{"anthropic without model", "llm:\n  provider: anthropic\n", "llm.model"},
		{"verification without jwks", "auth:\n  enable_verification: true\n", "jwks_endpoints"},
		{"no extensions", "upload:\n  allowed_extensions: \" , \"\n", "allowed_extensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadFile(writeConfig(t, tt.yaml), "v")
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFile_ProviderIsCaseInsensitive(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, "llm:\n  provider: Anthropic\n  model: claude-sonnet-4-5\n"), "v")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.LLM.Provider != ProviderAnthropic {
		t.Errorf("expected provider anthropic, got %s", cfg.LLM.Provider)
	}
}

func TestParseJWKSEndpoints(t *testing.T) {
	got := parseJWKSEndpoints("https://a.example=https://a.example/jwks.json, https://b.example=https://b.example/keys")
	if len(got) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(got))
	}
	if got["https://b.example"] != "https://b.example/keys" {
		t.Errorf("unexpected endpoint for b: %q", got["https://b.example"])
	}
	if len(parseJWKSEndpoints("")) != 0 {
		t.Error("expected empty map for empty input")
	}
}

func TestParseExtensions(t *testing.T) {
	got := parseExtensions(" PDF, .docx ,txt,pdf,")
	if strings.Join(got, ",") != "pdf,docx,txt" {
		t.Errorf("unexpected extensions %v", got)
	}
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p@ss", Database: "deals", SSLMode: "require"}
	want := "postgres://u:p%40ss@db:5433/deals?sslmode=require"
	if got := c.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}
