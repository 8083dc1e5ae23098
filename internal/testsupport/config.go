package testsupport

import (
	"path/filepath"
	"testing"

	"bhasha/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Capture.Device = "stub"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMaxUploadMB overrides the upload size ceiling on the test config.
func WithMaxUploadMB(mb int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxSizeMB = mb
	}
}

// WithAllowedTypes overrides the upload content-type allow list.
func WithAllowedTypes(types ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.AllowedTypes = types
	}
}

// WithMaxDurationSeconds overrides the recording auto-stop ceiling.
func WithMaxDurationSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.MaxDurationSeconds = seconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
