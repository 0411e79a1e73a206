package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/koopa0/toolhub/internal/config"
	"github.com/koopa0/toolhub/internal/log"
	"github.com/koopa0/toolhub/internal/security"
	"github.com/koopa0/toolhub/internal/tools"
)

// buildRegistry wires the security guards and the three toolsets from
// configuration and registers everything in a function-calling registry.
func buildRegistry(cfg *config.Config, logger log.Logger) (*tools.Registry, error) {
	ws, err := security.NewWorkspace(cfg.Workspace.Root, cfg.Workspace.Unrestricted)
	if err != nil {
		return nil, fmt.Errorf("creating workspace guard: %w", err)
	}
	fileTools, err := tools.NewFileToolset(ws, logger.With("toolset", tools.FileToolsetName))
	if err != nil {
		return nil, fmt.Errorf("creating file toolset: %w", err)
	}

	shellTools, err := tools.NewShellToolset(security.NewShell(), tools.ShellConfig{
		WorkDir:   cfg.Shell.WorkDir,
		Timeout:   cfg.Shell.Timeout(),
		MaxOutput: cfg.Shell.MaxOutputChars,
	}, logger.With("toolset", tools.ShellToolsetName))
	if err != nil {
		return nil, fmt.Errorf("creating shell toolset: %w", err)
	}

	guard := security.NewHTTP(cfg.Scholar.Timeout())
	scholarTools, err := tools.NewScholarToolset(guard.Client(), guard, tools.ScholarConfig{
		SemanticScholarURL: cfg.Scholar.SemanticScholarURL,
		UnpaywallURL:       cfg.Scholar.UnpaywallURL,
		Email:              cfg.Scholar.Email,
		RequestsPerSecond:  cfg.Scholar.RequestsPerSecond,
	}, logger.With("toolset", tools.ScholarToolsetName))
	if err != nil {
		return nil, fmt.Errorf("creating scholar toolset: %w", err)
	}

	reg, err := tools.NewRegistry(logger.With("component", "registry"))
	if err != nil {
		return nil, err
	}
	for _, ts := range []tools.Toolset{fileTools, shellTools, scholarTools} {
		if err := reg.RegisterToolset(ts); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// registryTools flattens the registry back to a tool slice in registration
// order, the shape the MCP server consumes.
func registryTools(reg *tools.Registry) []tools.Tool {
	out := make([]tools.Tool, 0, reg.Len())
	for _, name := range reg.Names() {
		if t, ok := reg.Get(name); ok {
			out = append(out, t)
		}
	}
	return out
}

// runTools prints the function-calling description of every registered tool
// as indented JSON, the payload an OpenAI-style client would send.
func runTools() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	data, err := json.MarshalIndent(reg.Descriptions(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tool descriptions: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
