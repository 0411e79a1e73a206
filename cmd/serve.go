package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/koopa0/toolhub/internal/config"
	"github.com/koopa0/toolhub/internal/log"
	"github.com/koopa0/toolhub/internal/mcp"
)

// runServe initializes and starts the MCP server on the process's standard
// streams. Stdout carries protocol frames only; all logging goes to stderr.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := buildRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("building tool registry: %w", err)
	}

	server, err := mcp.NewServer(mcp.Config{
		Name:        cfg.Server.Name,
		Version:     Version,
		Tools:       registryTools(reg),
		CallTimeout: cfg.MCP.CallTimeout(),
		Logger:      logger.With("component", "mcp"),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	transport, err := mcp.NewStdio(os.Stdin, os.Stdout, cfg.MCP.QueueSize,
		logger.With("component", "transport"))
	if err != nil {
		return fmt.Errorf("creating stdio transport: %w", err)
	}

	logger.Info("MCP server ready",
		"name", cfg.Server.Name, "version", Version,
		"transport", "stdio", "tool_count", reg.Len())

	if err := server.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
