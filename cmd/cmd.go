// Package cmd provides the CLI commands for toolhub.
//
// Commands:
//   - serve: MCP server over stdio (for Claude Desktop, Cursor, and other
//     MCP clients)
//   - tools: print the function-calling descriptions of all registered tools
//
// Signal handling and graceful shutdown are implemented for serve via
// context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the toolhub CLI.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "tools":
		return runTools()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("toolhub - tool-calling adapters for LLM agents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  toolhub serve      Start the MCP server on stdio (for Claude Desktop/Cursor)")
	fmt.Println("  toolhub tools      Print the function-calling descriptions of all tools")
	fmt.Println("  toolhub --version  Show version information")
	fmt.Println("  toolhub --help     Show this help")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  ~/.toolhub/config.yaml or ./config.yaml, overridable via TOOLHUB_* variables")
	fmt.Println("  Examples: TOOLHUB_WORKSPACE_ROOT, TOOLHUB_SCHOLAR_EMAIL, TOOLHUB_LOG_LEVEL")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/koopa0/toolhub")
}
