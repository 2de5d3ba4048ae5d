package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the office assistant.
type Config struct {
	General    GeneralConfig    `json:"general"`
	Buffer     BufferConfig     `json:"buffer"`
	Trigger    TriggerConfig    `json:"trigger"`
	Permission PermissionConfig `json:"permission"`
	Features   FeatureConfig    `json:"features"`
	Provider   ProviderConfig   `json:"provider"`
	Channels   ChannelsConfig   `json:"channels"`
	Storage    StorageConfig    `json:"storage"`
	Convert    ConvertConfig    `json:"convert"`
}

type GeneralConfig struct {
	Workspace   string `json:"workspace"`   // where generated files live
	TemplateDir string `json:"templateDir"` // YAML document templates
	LogLevel    string `json:"logLevel"`
	LogFile     string `json:"logFile,omitempty"`
	QueueSize   int    `json:"queueSize"` // inbound event queue depth
}

// BufferConfig tunes the message coalescing windows. Setting both windows to
// zero disables buffering entirely.
type BufferConfig struct {
	ObserveWindowMs int  `json:"observeWindowMs"` // short wait before a file is seen
	FullWindowMs    int  `json:"fullWindowMs"`    // wait once a file has arrived
	DropTextOnly    bool `json:"dropTextOnly"`    // discard observe-only texts instead of passing through
}

func (b BufferConfig) ObserveWindow() time.Duration {
	return time.Duration(b.ObserveWindowMs) * time.Millisecond
}

func (b BufferConfig) FullWindow() time.Duration {
	return time.Duration(b.FullWindowMs) * time.Millisecond
}

type TriggerConfig struct {
	AutoDetectInPrivate   bool `json:"autoDetectInPrivate"`
	AutoDetectInGroup     bool `json:"autoDetectInGroup"`
	RequireMentionInGroup bool `json:"requireMentionInGroup"`
	MinMessageLength      int  `json:"minMessageLength"`
	ReplyToUser           bool `json:"replyToUser"`
}

type PermissionConfig struct {
	RequireAdmin   bool           `json:"requireAdmin"`
	WhitelistUsers FlexStringList `json:"whitelistUsers,omitempty"`
}

type FeatureConfig struct {
	EnableOfficeFiles bool `json:"enableOfficeFiles"`
	EnablePDFConvert  bool `json:"enablePdfConvert"`
	EnablePreview     bool `json:"enablePreview"`
	MaxFileSizeMB     int  `json:"maxFileSizeMB"`
}

type ProviderConfig struct {
	APIBase        string `json:"apiBase"`
	APIKey         string `json:"apiKey,omitempty"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled   bool           `json:"enabled"`
	Token     string         `json:"token"`
	AllowFrom FlexStringList `json:"allowFrom"`
	ParseMode string         `json:"parseMode"`
}

type StorageConfig struct {
	DBPath string `json:"dbPath"`
}

// ConvertConfig configures the PDF conversion backends.
type ConvertConfig struct {
	LibreOfficePath string `json:"libreOfficePath,omitempty"` // override auto-detection
	TimeoutSeconds  int    `json:"timeoutSeconds"`
	EnableChrome    bool   `json:"enableChrome"` // headless-Chrome HTML/Markdown backend
	Workers         int    `json:"workers"`      // bounded pool shared by generation and conversion
}

// FlexStringList is a []string that can unmarshal from JSON arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	// Fallback: array of mixed types
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

// DefaultConfigDir returns the default config directory (~/.office-assistant).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".office-assistant"
	}
	return filepath.Join(home, ".office-assistant")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.Workspace = ExpandPath(cfg.General.Workspace)
	cfg.General.TemplateDir = ExpandPath(cfg.General.TemplateDir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Storage.DBPath = ExpandPath(cfg.Storage.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Buffer.ObserveWindowMs < 0 {
		errs = append(errs, "buffer.observeWindowMs must be >= 0")
	}
	if cfg.Buffer.FullWindowMs < 0 {
		errs = append(errs, "buffer.fullWindowMs must be >= 0")
	}
	if cfg.Buffer.ObserveWindowMs > 60_000 || cfg.Buffer.FullWindowMs > 60_000 {
		errs = append(errs, "buffer windows must stay below 60s")
	}
	if cfg.General.QueueSize < 1 || cfg.General.QueueSize > 10_000 {
		errs = append(errs, "general.queueSize must be between 1 and 10000")
	}
	if cfg.Trigger.MinMessageLength < 0 {
		errs = append(errs, "trigger.minMessageLength must be >= 0")
	}
	if cfg.Features.MaxFileSizeMB < 1 || cfg.Features.MaxFileSizeMB > 2048 {
		errs = append(errs, "features.maxFileSizeMB must be between 1 and 2048")
	}
	if cfg.Convert.TimeoutSeconds < 1 {
		errs = append(errs, "convert.timeoutSeconds must be >= 1")
	}
	if cfg.Convert.Workers < 1 || cfg.Convert.Workers > 16 {
		errs = append(errs, "convert.workers must be between 1 and 16")
	}
	if cfg.Provider.TimeoutSeconds < 1 {
		errs = append(errs, "provider.timeoutSeconds must be >= 1")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
