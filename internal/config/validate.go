package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateOrganize(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CacheFile) == "" {
		return errors.New("paths.cache_file must be set")
	}
	if strings.TrimSpace(c.Paths.JournalFile) == "" {
		return errors.New("paths.journal_file must be set")
	}
	if c.Paths.CacheFile == c.Paths.JournalFile {
		return errors.New("paths.cache_file and paths.journal_file must differ")
	}
	return nil
}

func (c *Config) validateLLM() error {
	parsed, err := url.Parse(c.LLM.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("llm.base_url must be an absolute URL, got %q", c.LLM.BaseURL)
	}
	if c.LLM.RetryBaseMS > 0 && c.LLM.RetryMaxMS < c.LLM.RetryBaseMS {
		return errors.New("llm.retry_max_ms must be >= llm.retry_base_ms")
	}
	return nil
}

func (c *Config) validateOrganize() error {
	if c.Organize.MaxConcurrent > maxAllowedConcurrency {
		return fmt.Errorf("organize.max_concurrent must be <= %d", maxAllowedConcurrency)
	}
	for _, category := range c.Organize.Categories {
		if strings.ContainsAny(category, `/\`) || category == "." || category == ".." {
			return fmt.Errorf("organize.categories: %q is not a valid folder name", category)
		}
	}
	if c.Organize.Offline && c.Organize.DeepInspection {
		return errors.New("organize.deep_inspection requires the categorization service; disable organize.offline")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
