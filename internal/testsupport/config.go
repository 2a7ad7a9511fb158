package testsupport

import (
	"path/filepath"
	"testing"

	"kicomport/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.UploadsDir = filepath.Join(base, "uploads")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.InboxDir = filepath.Join(base, "inbox")
	cfg.Paths.SymbolDir = filepath.Join(base, "kicad", "symbols")
	cfg.Paths.FootprintDir = filepath.Join(base, "kicad", "footprints")
	cfg.Paths.ModelDir = filepath.Join(base, "kicad", "models")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Ollama.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLibraryIdentity overrides the destination library identity.
func WithLibraryIdentity(identity string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Library.Identity = identity
	}
}

// WithOllama enables AI scoring against the given base URL.
func WithOllama(baseURL, model string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ollama.Enabled = true
		cfg.Ollama.BaseURL = baseURL
		cfg.Ollama.Model = model
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.UploadsDir)
}
