package config

import "strings"

// normalize expands and absolutizes every path field and trims string fields
// that are compared elsewhere.
func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.UploadsDir,
		&c.Paths.TempDir,
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.SymbolDir,
		&c.Paths.FootprintDir,
		&c.Paths.ModelDir,
	}
	for _, field := range pathFields {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	// Inbox is optional; leave empty to disable the watcher.
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		expanded, err := expandPath(c.Paths.InboxDir)
		if err != nil {
			return err
		}
		c.Paths.InboxDir = expanded
	} else {
		c.Paths.InboxDir = ""
	}

	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	c.Library.Identity = strings.TrimSpace(c.Library.Identity)
	c.Ollama.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ollama.BaseURL), "/")
	c.Ollama.Model = strings.TrimSpace(c.Ollama.Model)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}
