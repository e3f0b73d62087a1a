package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadConfig_MergesEnvironmentAndSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${PF_TEST_DB_PASSWORD}
workflow:
  max_attempts: 3
`)
	writeFile(t, dir, "staging.yaml", `
db:
  host: db.staging
workflow:
  max_attempts: 5
`)
	writeFile(t, dir, "secrets.env", "# comment\nPF_TEST_DB_PASSWORD=\"s3cret\"\n")

	cfgMap, err := LoadConfig("staging", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg, err := Decode(cfgMap)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if cfg.DB.Host != "db.staging" && os.Getenv("DB_HOST") == "" {
		t.Fatalf("expected env override of host, got %q", cfg.DB.Host)
	}
	if cfg.DB.Port != 5432 && os.Getenv("DB_PORT") == "" {
		t.Fatalf("expected base port to survive merge, got %d", cfg.DB.Port)
	}
	if cfg.DB.Password != "s3cret" && os.Getenv("DB_PASSWORD") == "" {
		t.Fatalf("expected placeholder substituted from secrets.env, got %q", cfg.DB.Password)
	}
	if cfg.Workflow.MaxAttempts != 5 {
		t.Fatalf("expected max_attempts 5, got %d", cfg.Workflow.MaxAttempts)
	}
}

func TestLoadConfig_SystemEnvWinsOverSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "jwt:\n  secret: ${PF_TEST_JWT}\n")
	writeFile(t, dir, "secrets.env", "PF_TEST_JWT=from-file\n")
	t.Setenv("PF_TEST_JWT", "from-env")

	cfgMap, err := LoadConfig("", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	jwt := cfgMap["jwt"].(map[string]interface{})
	if jwt["secret"] != "from-env" {
		t.Fatalf("expected system env to win, got %v", jwt["secret"])
	}
}

func TestLoadConfig_UnknownPlaceholderKept(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "mq:\n  url: ${PF_TEST_UNSET_VARIABLE}\n")

	cfgMap, err := LoadConfig("local", dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	mq := cfgMap["mq"].(map[string]interface{})
	if mq["url"] != "${PF_TEST_UNSET_VARIABLE}" {
		t.Fatalf("expected placeholder kept, got %v", mq["url"])
	}
}

func TestDecode_AppliesDefaults(t *testing.T) {
	cfg, err := Decode(map[string]interface{}{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Workflow.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", cfg.Workflow.MaxAttempts)
	}
	if cfg.Outbox.BatchSize != 100 {
		t.Fatalf("expected default outbox batch 100, got %d", cfg.Outbox.BatchSize)
	}
	if cfg.Mail.MaxRetries != 3 {
		t.Fatalf("expected default mail retries 3, got %d", cfg.Mail.MaxRetries)
	}
}

func TestLoadConfig_MissingBase(t *testing.T) {
	if _, err := LoadConfig("local", t.TempDir()); err == nil {
		t.Fatalf("expected error when base.yaml is missing")
	}
}
