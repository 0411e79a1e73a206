package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a configuration that passes Validate, for tests to
// mutate one field at a time.
func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Name: "toolhub"},
		Workspace: WorkspaceConfig{},
		Shell: ShellConfig{
			TimeoutSeconds: DefaultShellTimeoutSeconds,
			MaxOutputChars: DefaultShellMaxOutputChars,
		},
		Scholar: ScholarConfig{
			SemanticScholarURL: "https://api.semanticscholar.org",
			UnpaywallURL:       "https://api.unpaywall.org",
			TimeoutSeconds:     30,
			RequestsPerSecond:  1,
		},
		MCP: MCPConfig{
			QueueSize:          DefaultQueueSize,
			CallTimeoutSeconds: DefaultCallTimeoutSeconds,
		},
		Log: LogConfig{Level: "info"},
	}
}

func TestLoadDefaults(t *testing.T) {
	// Load reads the real environment; not parallel on purpose.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "toolhub", cfg.Server.Name)
	assert.Equal(t, DefaultShellTimeoutSeconds, cfg.Shell.TimeoutSeconds)
	assert.Equal(t, DefaultShellMaxOutputChars, cfg.Shell.MaxOutputChars)
	assert.Equal(t, "https://api.semanticscholar.org", cfg.Scholar.SemanticScholarURL)
	assert.Equal(t, "https://api.unpaywall.org", cfg.Scholar.UnpaywallURL)
	assert.Equal(t, DefaultQueueSize, cfg.MCP.QueueSize)
	assert.Equal(t, DefaultCallTimeoutSeconds, cfg.MCP.CallTimeoutSeconds)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TOOLHUB_SERVER_NAME", "custom-hub")
	t.Setenv("TOOLHUB_SHELL_TIMEOUT_SECONDS", "7")
	t.Setenv("TOOLHUB_WORKSPACE_UNRESTRICTED", "true")
	t.Setenv("TOOLHUB_SCHOLAR_EMAIL", "dev@example.org")
	t.Setenv("TOOLHUB_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "custom-hub", cfg.Server.Name)
	assert.Equal(t, 7, cfg.Shell.TimeoutSeconds)
	assert.True(t, cfg.Workspace.Unrestricted)
	assert.Equal(t, "dev@example.org", cfg.Scholar.Email)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TOOLHUB_MCP_QUEUE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty server name",
			mutate:  func(c *Config) { c.Server.Name = "" },
			wantErr: ErrInvalidServerName,
		},
		{
			name:    "zero shell timeout",
			mutate:  func(c *Config) { c.Shell.TimeoutSeconds = 0 },
			wantErr: ErrInvalidShellTimeout,
		},
		{
			name:    "negative max output",
			mutate:  func(c *Config) { c.Shell.MaxOutputChars = -1 },
			wantErr: ErrInvalidMaxOutput,
		},
		{
			name:    "empty semantic scholar URL",
			mutate:  func(c *Config) { c.Scholar.SemanticScholarURL = "" },
			wantErr: ErrInvalidScholarURL,
		},
		{
			name:    "bad unpaywall scheme",
			mutate:  func(c *Config) { c.Scholar.UnpaywallURL = "ftp://api.unpaywall.org" },
			wantErr: ErrInvalidScholarURL,
		},
		{
			name:    "zero scholar timeout",
			mutate:  func(c *Config) { c.Scholar.TimeoutSeconds = 0 },
			wantErr: ErrInvalidScholarTimeout,
		},
		{
			name:    "zero request rate",
			mutate:  func(c *Config) { c.Scholar.RequestsPerSecond = 0 },
			wantErr: ErrInvalidRequestRate,
		},
		{
			name:    "zero queue size",
			mutate:  func(c *Config) { c.MCP.QueueSize = 0 },
			wantErr: ErrInvalidQueueSize,
		},
		{
			name:    "negative call timeout",
			mutate:  func(c *Config) { c.MCP.CallTimeoutSeconds = -5 },
			wantErr: ErrInvalidCallTimeout,
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()
		var cfg *Config
		assert.ErrorIs(t, cfg.Validate(), ErrConfigNil)
	})
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	assert.Equal(t, time.Duration(DefaultShellTimeoutSeconds)*time.Second, cfg.Shell.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Scholar.Timeout())
	assert.Equal(t, time.Duration(DefaultCallTimeoutSeconds)*time.Second, cfg.MCP.CallTimeout())

	cfg.MCP.CallTimeoutSeconds = 0
	assert.Equal(t, time.Duration(0), cfg.MCP.CallTimeout())
}
