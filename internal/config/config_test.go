package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_NegativeWindow(t *testing.T) {
	cfg := Defaults()
	cfg.Buffer.ObserveWindowMs = -1
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for negative observe window")
	}
}

func TestValidate_ZeroWindowsAreValid(t *testing.T) {
	// Both windows at zero is the documented "buffering disabled" setting.
	cfg := Defaults()
	cfg.Buffer.ObserveWindowMs = 0
	cfg.Buffer.FullWindowMs = 0
	if err := Validate(cfg); err != nil {
		t.Fatalf("zero windows should validate: %v", err)
	}
}

func TestValidate_WindowTooLarge(t *testing.T) {
	cfg := Defaults()
	cfg.Buffer.FullWindowMs = 120_000
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for 120s window")
	}
}

func TestValidate_Workers(t *testing.T) {
	cfg := Defaults()
	cfg.Convert.Workers = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for workers=0")
	}
	cfg.Convert.Workers = 16
	if err := Validate(cfg); err != nil {
		t.Fatalf("workers=16 should be valid: %v", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.General.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

// --- Durations ---

func TestBufferWindowDurations(t *testing.T) {
	b := BufferConfig{ObserveWindowMs: 800, FullWindowMs: 2500}
	if b.ObserveWindow().Milliseconds() != 800 {
		t.Fatalf("observe window = %v", b.ObserveWindow())
	}
	if b.FullWindow().Milliseconds() != 2500 {
		t.Fatalf("full window = %v", b.FullWindow())
	}
}

// --- Load / Save ---

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Defaults()
	cfg.Buffer.FullWindowMs = 4000
	cfg.Channels.Telegram.Token = "tok-123"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Buffer.FullWindowMs != 4000 {
		t.Fatalf("fullWindowMs = %d", loaded.Buffer.FullWindowMs)
	}
	if loaded.Channels.Telegram.Token != "tok-123" {
		t.Fatalf("token = %q", loaded.Channels.Telegram.Token)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	os.Setenv("OFFICE_TEST_TOKEN", "secret-token")
	defer os.Unsetenv("OFFICE_TEST_TOKEN")

	cfg := Defaults()
	cfg.Channels.Telegram.Token = "${OFFICE_TEST_TOKEN}"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Channels.Telegram.Token != "secret-token" {
		t.Fatalf("env var not expanded: %q", loaded.Channels.Telegram.Token)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("OFFICE_TEST_MISSING")
	out := ExpandEnvVars("${OFFICE_TEST_MISSING:-fallback}")
	if out != "fallback" {
		t.Fatalf("expected fallback, got %q", out)
	}
}

// --- FlexStringList ---

func TestFlexStringList_MixedTypes(t *testing.T) {
	var f FlexStringList
	if err := json.Unmarshal([]byte(`["123", 456]`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(f) != 2 || f[0] != "123" || f[1] != "456" {
		t.Fatalf("unexpected result: %v", f)
	}
}

// --- Accessor ---

func TestGetSetByPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "buffer.fullWindowMs", "3000"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Buffer.FullWindowMs != 3000 {
		t.Fatalf("fullWindowMs = %d", cfg.Buffer.FullWindowMs)
	}

	val, err := GetByPath(cfg, "buffer.fullWindowMs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n, ok := val.(float64); !ok || n != 3000 {
		t.Fatalf("unexpected value: %v", val)
	}
}

func TestSanitizeMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.APIKey = "sk-really-long-secret-key"
	cfg.Channels.Telegram.Token = "short"

	s := Sanitize(cfg)
	if s.Provider.APIKey == cfg.Provider.APIKey {
		t.Fatal("api key not masked")
	}
	if s.Channels.Telegram.Token != "***" {
		t.Fatalf("short token should be fully masked, got %q", s.Channels.Telegram.Token)
	}
	// Original must be untouched.
	if cfg.Provider.APIKey != "sk-really-long-secret-key" {
		t.Fatal("sanitize mutated the original config")
	}
}
