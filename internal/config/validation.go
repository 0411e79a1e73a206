package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidServerName indicates the server name is empty.
	ErrInvalidServerName = errors.New("invalid server name")

	// ErrInvalidShellTimeout indicates the shell timeout is out of range.
	ErrInvalidShellTimeout = errors.New("invalid shell timeout")

	// ErrInvalidMaxOutput indicates the shell output cap is out of range.
	ErrInvalidMaxOutput = errors.New("invalid shell max output")

	// ErrInvalidScholarURL indicates a scholar API base URL is unusable.
	ErrInvalidScholarURL = errors.New("invalid scholar API URL")

	// ErrInvalidScholarTimeout indicates the scholar timeout is out of range.
	ErrInvalidScholarTimeout = errors.New("invalid scholar timeout")

	// ErrInvalidRequestRate indicates the scholar request rate is out of range.
	ErrInvalidRequestRate = errors.New("invalid scholar request rate")

	// ErrInvalidQueueSize indicates the MCP queue size is out of range.
	ErrInvalidQueueSize = errors.New("invalid MCP queue size")

	// ErrInvalidCallTimeout indicates the MCP call timeout is negative.
	ErrInvalidCallTimeout = errors.New("invalid MCP call timeout")

	// ErrInvalidLogLevel indicates an unknown log level string.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Validate performs range and sanity checks on the whole configuration.
// It fails fast: the first violated rule is returned.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Server.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidServerName)
	}

	if c.Shell.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidShellTimeout, c.Shell.TimeoutSeconds)
	}
	if c.Shell.MaxOutputChars <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidMaxOutput, c.Shell.MaxOutputChars)
	}

	if err := validateBaseURL(c.Scholar.SemanticScholarURL); err != nil {
		return fmt.Errorf("%w: semantic_scholar_url: %v", ErrInvalidScholarURL, err)
	}
	if err := validateBaseURL(c.Scholar.UnpaywallURL); err != nil {
		return fmt.Errorf("%w: unpaywall_url: %v", ErrInvalidScholarURL, err)
	}
	if c.Scholar.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidScholarTimeout, c.Scholar.TimeoutSeconds)
	}
	if c.Scholar.RequestsPerSecond <= 0 {
		return fmt.Errorf("%w: %g (must be positive)", ErrInvalidRequestRate, c.Scholar.RequestsPerSecond)
	}

	if c.MCP.QueueSize <= 0 {
		return fmt.Errorf("%w: %d (must be positive)", ErrInvalidQueueSize, c.MCP.QueueSize)
	}
	if c.MCP.CallTimeoutSeconds < 0 {
		return fmt.Errorf("%w: %d (must be zero or positive)", ErrInvalidCallTimeout, c.MCP.CallTimeoutSeconds)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Log.Level) {
		return fmt.Errorf("%w: %q (want one of %v)", ErrInvalidLogLevel, c.Log.Level, validLevels)
	}

	return nil
}

// validateBaseURL requires an absolute http(s) URL.
func validateBaseURL(s string) error {
	if s == "" {
		return errors.New("URL cannot be empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
