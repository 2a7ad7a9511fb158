package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := map[string]string{
		"paths.uploads_dir":   c.Paths.UploadsDir,
		"paths.temp_dir":      c.Paths.TempDir,
		"paths.data_dir":      c.Paths.DataDir,
		"paths.log_dir":       c.Paths.LogDir,
		"paths.symbol_dir":    c.Paths.SymbolDir,
		"paths.footprint_dir": c.Paths.FootprintDir,
		"paths.model_dir":     c.Paths.ModelDir,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.Identity == "" {
		return errors.New("library.identity must be set")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxExtractFiles <= 0 {
		return errors.New("limits.max_extract_files must be positive")
	}
	if c.Limits.MaxExtractBytes <= 0 {
		return errors.New("limits.max_extract_bytes must be positive")
	}
	if c.Limits.MaxExtractFileBytes <= 0 {
		return errors.New("limits.max_extract_file_bytes must be positive")
	}
	if c.Limits.MaxExtractFileBytes > c.Limits.MaxExtractBytes {
		return errors.New("limits.max_extract_file_bytes must not exceed limits.max_extract_bytes")
	}
	if c.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_bytes must be positive")
	}
	return nil
}

func (c *Config) validateOllama() error {
	if !c.Ollama.Enabled {
		return nil
	}
	if c.Ollama.BaseURL == "" {
		return errors.New("ollama.base_url must be set when ollama.enabled is true")
	}
	if c.Ollama.Model == "" {
		return errors.New("ollama.model must be set when ollama.enabled is true")
	}
	if c.Ollama.TimeoutSec <= 0 {
		return errors.New("ollama.timeout_sec must be positive")
	}
	if c.Ollama.MaxRetries < 0 {
		return errors.New("ollama.max_retries must not be negative")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.Days < 0 {
		return errors.New("retention.days must not be negative")
	}
	if c.Retention.SweepInterval < 0 {
		return errors.New("retention.sweep_interval must not be negative")
	}
	return nil
}
