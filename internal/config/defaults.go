package config

const (
	defaultDataDir            = "~/.local/share/bhasha/data"
	defaultMediaDir           = "~/.local/share/bhasha/media"
	defaultLogDir             = "~/.local/share/bhasha/logs"
	defaultAPIBind            = "127.0.0.1:7643"
	defaultCaptureDevice      = "default"
	defaultMaxDurationSeconds = 300
	defaultFragmentPeriodMS   = 1000
	defaultMaxSizeMB          = 25
	defaultUploadTimeout      = 120
	defaultListLimit          = 50
	defaultSummaryWindowDays  = 30
	defaultTrendMonths        = 6
	defaultAssistantBaseURL   = "https://api.openai.com/v1/chat/completions"
	defaultAssistantModel     = "gpt-4o"
	defaultAssistantTimeout   = 60
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

func defaultAllowedTypes() []string {
	return []string{
		"audio/webm",
		"audio/ogg",
		"audio/mpeg",
		"image/jpeg",
		"image/png",
		"image/webp",
		"text/plain",
		"application/pdf",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			MediaDir: defaultMediaDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Capture: Capture{
			Device:             defaultCaptureDevice,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			FragmentPeriodMS:   defaultFragmentPeriodMS,
		},
		Upload: Upload{
			MaxSizeMB:      defaultMaxSizeMB,
			AllowedTypes:   defaultAllowedTypes(),
			TimeoutSeconds: defaultUploadTimeout,
			ListLimit:      defaultListLimit,
		},
		Analytics: Analytics{
			SummaryWindowDays: defaultSummaryWindowDays,
			TrendMonths:       defaultTrendMonths,
		},
		Assistant: Assistant{
			BaseURL:        defaultAssistantBaseURL,
			Model:          defaultAssistantModel,
			TimeoutSeconds: defaultAssistantTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Published:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
