package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/koopa0/toolhub/internal/config"
	"github.com/koopa0/toolhub/internal/log"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything it printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	if err := w.Close(); err != nil {
		t.Fatalf("closing pipe writer: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading captured output: %v", err)
	}
	return string(data)
}

// withArgs swaps os.Args for the duration of fn.
func withArgs(t *testing.T, args []string, fn func()) {
	t.Helper()
	old := os.Args
	os.Args = args
	defer func() { os.Args = old }()
	fn()
}

// testConfig builds a configuration that needs no config file, no
// environment, and no network.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:    config.ServerConfig{Name: "toolhub-test"},
		Workspace: config.WorkspaceConfig{Root: t.TempDir()},
		Shell: config.ShellConfig{
			TimeoutSeconds: 5,
			MaxOutputChars: 1000,
		},
		Scholar: config.ScholarConfig{
			Email:             "dev@example.com",
			TimeoutSeconds:    5,
			RequestsPerSecond: 1,
		},
		MCP: config.MCPConfig{QueueSize: 8, CallTimeoutSeconds: 5},
		Log: config.LogConfig{Level: "error"},
	}
}

func TestBuildRegistry(t *testing.T) {
	reg, err := buildRegistry(testConfig(t), log.NewNop())
	if err != nil {
		t.Fatalf("buildRegistry() unexpected error: %v", err)
	}

	want := []string{
		"read_file",
		"create_file",
		"modify_file",
		"run_shell_command",
		"search_semantic_scholar",
		"search_unpaywall",
	}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("registered tools = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tool %d = %q, want %q", i, got[i], want[i])
		}
	}

	flattened := registryTools(reg)
	if len(flattened) != len(want) {
		t.Fatalf("registryTools() = %d tools, want %d", len(flattened), len(want))
	}
	for i, tool := range flattened {
		if tool.Name() != want[i] {
			t.Errorf("flattened tool %d = %q, want %q", i, tool.Name(), want[i])
		}
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	withArgs(t, []string{"toolhub", "bogus"}, func() {
		err := Execute()
		if err == nil {
			t.Fatal("Execute(bogus) expected error, got nil")
		}
		if !strings.Contains(err.Error(), "unknown command: bogus") {
			t.Errorf("error = %v, want unknown command", err)
		}
	})
}

func TestExecute_Version(t *testing.T) {
	withArgs(t, []string{"toolhub", "version"}, func() {
		out := captureStdout(t, func() {
			if err := Execute(); err != nil {
				t.Errorf("Execute(version) unexpected error: %v", err)
			}
		})
		if want := fmt.Sprintf("toolhub %s\n", Version); out != want {
			t.Errorf("version output = %q, want %q", out, want)
		}
	})
}

func TestExecute_NoArgsShowsHelp(t *testing.T) {
	withArgs(t, []string{"toolhub"}, func() {
		out := captureStdout(t, func() {
			if err := Execute(); err != nil {
				t.Errorf("Execute() unexpected error: %v", err)
			}
		})
		for _, want := range []string{"Usage:", "toolhub serve", "toolhub tools"} {
			if !strings.Contains(out, want) {
				t.Errorf("help output missing %q:\n%s", want, out)
			}
		}
	})
}
