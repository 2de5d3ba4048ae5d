package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			Workspace:   "~/.office-assistant/workspace",
			TemplateDir: "~/.office-assistant/templates",
			LogLevel:    "info",
			QueueSize:   100,
		},
		Buffer: BufferConfig{
			ObserveWindowMs: 800,
			FullWindowMs:    2500,
			DropTextOnly:    false,
		},
		Trigger: TriggerConfig{
			AutoDetectInPrivate:   true,
			AutoDetectInGroup:     false,
			RequireMentionInGroup: true,
			MinMessageLength:      15,
			ReplyToUser:           true,
		},
		Permission: PermissionConfig{
			RequireAdmin: false,
		},
		Features: FeatureConfig{
			EnableOfficeFiles: true,
			EnablePDFConvert:  true,
			EnablePreview:     false,
			MaxFileSizeMB:     20,
		},
		Provider: ProviderConfig{
			APIBase:        "http://localhost:11434/v1",
			Model:          "llama3.1:8b",
			TimeoutSeconds: 120,
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
		},
		Storage: StorageConfig{
			DBPath: "~/.office-assistant/history.db",
		},
		Convert: ConvertConfig{
			TimeoutSeconds: 120,
			EnableChrome:   false,
			Workers:        2,
		},
	}
}
