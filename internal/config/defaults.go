package config

const (
	defaultUploadsDir   = "~/.local/share/kicomport/uploads"
	defaultTempDir      = "~/.local/share/kicomport/tmp"
	defaultDataDir      = "~/.local/share/kicomport/data"
	defaultLogDir       = "~/.local/share/kicomport/logs"
	defaultSymbolDir    = "~/kicad/symbols"
	defaultFootprintDir = "~/kicad/footprints"
	defaultModelDir     = "~/kicad/3dmodels"
	defaultAPIBind      = "127.0.0.1:8747"

	// DefaultLibraryIdentity is the stem under which imported assets
	// accumulate when no identity is configured.
	DefaultLibraryIdentity = "~KiComport"

	defaultMaxExtractFiles     = 20_000
	defaultMaxExtractBytes     = 2 << 30   // 2 GiB
	defaultMaxExtractFileBytes = 512 << 20 // 512 MiB
	defaultMaxUploadBytes      = 512 << 20 // 512 MiB

	defaultOllamaBaseURL    = "http://localhost:11434"
	defaultOllamaModel      = "qwen2.5:7b"
	defaultOllamaTimeoutSec = 30
	defaultOllamaMaxRetries = 2

	defaultRetentionDays          = 30
	defaultRetentionSweepInterval = 3600

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadsDir:   defaultUploadsDir,
			TempDir:      defaultTempDir,
			DataDir:      defaultDataDir,
			LogDir:       defaultLogDir,
			SymbolDir:    defaultSymbolDir,
			FootprintDir: defaultFootprintDir,
			ModelDir:     defaultModelDir,
			APIBind:      defaultAPIBind,
		},
		Library: Library{
			Identity: DefaultLibraryIdentity,
		},
		Limits: Limits{
			MaxExtractFiles:     defaultMaxExtractFiles,
			MaxExtractBytes:     defaultMaxExtractBytes,
			MaxExtractFileBytes: defaultMaxExtractFileBytes,
			MaxUploadBytes:      defaultMaxUploadBytes,
		},
		Ollama: Ollama{
			Enabled:    false,
			BaseURL:    defaultOllamaBaseURL,
			Model:      defaultOllamaModel,
			TimeoutSec: defaultOllamaTimeoutSec,
			MaxRetries: defaultOllamaMaxRetries,
		},
		Retention: Retention{
			Days:          defaultRetentionDays,
			SweepInterval: defaultRetentionSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
