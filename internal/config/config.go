// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (TOOLHUB_* runtime override)
//  2. Config file (~/.toolhub/config.yaml, or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: protocol identity reported by the MCP initialize handshake
//   - Workspace: root directory the file tools are confined to
//   - Shell: working directory and limits for the shell tool
//   - Scholar: endpoints and pacing for the scientific search tools
//   - MCP: message queue sizing and the per-call tool timeout
//   - Log: level and format
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default limits carried over from the shell and scholar tool contracts.
const (
	// DefaultShellTimeoutSeconds bounds a shell command run.
	DefaultShellTimeoutSeconds = 100

	// DefaultShellMaxOutputChars truncates each captured stream.
	DefaultShellMaxOutputChars = 5000

	// DefaultQueueSize is the capacity of the transport's inbound queue.
	DefaultQueueSize = 64

	// DefaultCallTimeoutSeconds bounds a single tools/call execution.
	// Zero disables the bound.
	DefaultCallTimeoutSeconds = 120
)

// Config stores the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Workspace WorkspaceConfig `mapstructure:"workspace" json:"workspace"`
	Shell     ShellConfig     `mapstructure:"shell" json:"shell"`
	Scholar   ScholarConfig   `mapstructure:"scholar" json:"scholar"`
	MCP       MCPConfig       `mapstructure:"mcp" json:"mcp"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
}

// ServerConfig identifies the server in the MCP initialize result.
type ServerConfig struct {
	Name string `mapstructure:"name" json:"name"`
}

// WorkspaceConfig controls the file tools' path confinement.
type WorkspaceConfig struct {
	// Root is the directory file tools operate under. Empty means the
	// process working directory.
	Root string `mapstructure:"root" json:"root"`

	// Unrestricted disables path confinement. Trusted local runs only.
	Unrestricted bool `mapstructure:"unrestricted" json:"unrestricted"`
}

// ShellConfig controls the shell tool.
type ShellConfig struct {
	// WorkDir is the default working directory for commands. Empty means
	// the process working directory.
	WorkDir string `mapstructure:"work_dir" json:"work_dir"`

	// TimeoutSeconds bounds a command run; commands may lower it per call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`

	// MaxOutputChars truncates captured stdout and stderr independently.
	MaxOutputChars int `mapstructure:"max_output_chars" json:"max_output_chars"`
}

// Timeout returns the configured shell timeout as a duration.
func (c ShellConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScholarConfig controls the scientific search tools.
type ScholarConfig struct {
	// SemanticScholarURL is the API base, overridable for tests.
	SemanticScholarURL string `mapstructure:"semantic_scholar_url" json:"semantic_scholar_url"`

	// UnpaywallURL is the API base, overridable for tests.
	UnpaywallURL string `mapstructure:"unpaywall_url" json:"unpaywall_url"`

	// Email identifies the caller to Unpaywall (required by their API).
	Email string `mapstructure:"email" json:"email"`

	// TimeoutSeconds bounds a single API request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" json:"timeout_seconds"`

	// RequestsPerSecond paces outbound API calls.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
}

// Timeout returns the configured scholar request timeout as a duration.
func (c ScholarConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MCPConfig controls the MCP server and its transport.
type MCPConfig struct {
	// QueueSize is the capacity of the inbound message queue.
	QueueSize int `mapstructure:"queue_size" json:"queue_size"`

	// CallTimeoutSeconds bounds one tools/call; zero disables the bound.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" json:"call_timeout_seconds"`
}

// CallTimeout returns the per-call timeout as a duration; zero means none.
func (c MCPConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"` // debug, info, warn, error
	JSON  bool   `mapstructure:"json" json:"json"`
}

// Load reads the configuration from defaults, an optional config file, and
// TOOLHUB_* environment variables, then validates it.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".toolhub")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("TOOLHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every known key with its default so AutomaticEnv
// can resolve overrides for all of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "toolhub")

	v.SetDefault("workspace.root", "")
	v.SetDefault("workspace.unrestricted", false)

	v.SetDefault("shell.work_dir", "")
	v.SetDefault("shell.timeout_seconds", DefaultShellTimeoutSeconds)
	v.SetDefault("shell.max_output_chars", DefaultShellMaxOutputChars)

	v.SetDefault("scholar.semantic_scholar_url", "https://api.semanticscholar.org")
	v.SetDefault("scholar.unpaywall_url", "https://api.unpaywall.org")
	v.SetDefault("scholar.email", "")
	v.SetDefault("scholar.timeout_seconds", 30)
	v.SetDefault("scholar.requests_per_second", 1.0)

	v.SetDefault("mcp.queue_size", DefaultQueueSize)
	v.SetDefault("mcp.call_timeout_seconds", DefaultCallTimeoutSeconds)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}
