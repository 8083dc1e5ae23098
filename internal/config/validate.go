package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration values that cannot support daemon operation.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		return errors.New("paths.media_dir is required")
	}
	if c.Capture.MaxDurationSeconds <= 0 {
		return fmt.Errorf("capture.max_duration_seconds must be positive, got %d", c.Capture.MaxDurationSeconds)
	}
	if c.Capture.FragmentPeriodMS <= 0 {
		return fmt.Errorf("capture.fragment_period_ms must be positive, got %d", c.Capture.FragmentPeriodMS)
	}
	if c.Upload.MaxSizeMB <= 0 {
		return fmt.Errorf("upload.max_size_mb must be positive, got %d", c.Upload.MaxSizeMB)
	}
	if len(c.Upload.AllowedTypes) == 0 {
		return errors.New("upload.allowed_types must list at least one content type")
	}
	if c.Upload.TimeoutSeconds <= 0 {
		return fmt.Errorf("upload.timeout_seconds must be positive, got %d", c.Upload.TimeoutSeconds)
	}
	if c.Analytics.SummaryWindowDays <= 0 {
		return fmt.Errorf("analytics.summary_window_days must be positive, got %d", c.Analytics.SummaryWindowDays)
	}
	if c.Analytics.TrendMonths <= 0 {
		return fmt.Errorf("analytics.trend_months must be positive, got %d", c.Analytics.TrendMonths)
	}
	if c.Assistant.Enabled && strings.TrimSpace(c.Assistant.APIKey) == "" {
		return errors.New("assistant.api_key is required when the assistant is enabled")
	}
	return nil
}
