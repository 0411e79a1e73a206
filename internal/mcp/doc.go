// Package mcp implements a Model Context Protocol (MCP) server.
//
// The MCP server exposes toolhub's tool capabilities via the Model Context
// Protocol, enabling integration with Claude Desktop, Cursor, and other MCP
// clients. External LLM applications can discover and call the registered
// tools (file operations, shell commands, scholarly search) through a
// standardized protocol interface.
//
// # Overview
//
// MCP is a protocol for exposing tools and resources to language models and
// AI assistants. The mcp package implements the server-side protocol handler
// directly on JSON-RPC 2.0, without an SDK dependency:
//
//   - Accepts newline-delimited JSON-RPC messages from clients
//   - Dispatches initialize, tools/list, and tools/call
//   - Translates tool descriptors and results between the protocol and the
//     internal tools.Tool interface
//   - Returns results and errors in MCP protocol format
//
// # Architecture
//
// Messages flow through three layers, each testable on its own:
//
//	MCP Client (Claude Desktop, Cursor, etc.)
//	     |
//	     | (JSON-RPC 2.0 over stdio, one message per line)
//	     |
//	     v
//	Stdio transport (background read loop, bounded queue, serialized writes)
//	     |
//	     v
//	Server (method dispatch, request/notification semantics, error codes)
//	     |
//	     v
//	Adapter (name lookup, per-call timeout, descriptor conversion)
//	     |
//	     v
//	tools.Tool implementations
//
// The transport owns the pipes: a goroutine reads stdin line by line,
// validates that each line is JSON, and enqueues raw messages on a bounded
// channel. Undecodable lines are answered with a parse error directly from
// the transport and never reach the server. Writes to stdout are serialized
// under a mutex so concurrent senders cannot interleave bytes.
//
// The server consumes the queue one message at a time via RunMessageLoop,
// so responses always leave in the order their requests arrived.
//
// # Supported Methods
//
//   - initialize: protocol handshake, reports server name and version
//   - tools/list: describes every registered tool with its input schema
//   - tools/call: executes a tool by name and returns its text output
//
// Requests carry an id and always receive exactly one response with the
// same id. Notifications (no id) are processed but never answered, whatever
// the outcome.
//
// # Error Handling
//
// Failures map onto standard JSON-RPC error codes:
//
//   - -32700 Parse error: line is not valid JSON (sent by the transport)
//   - -32600 Invalid Request: message has no method
//   - -32601 Method not found: method outside the dispatch table
//   - -32602 Invalid params: unknown tool or rejected arguments
//   - -32603 Internal error: the tool itself failed
//
// Tool failures never crash the session; they are logged, converted to an
// error response, and the loop moves on to the next message.
//
// # Example Usage
//
//	package main
//
//	import (
//	    "context"
//	    "os"
//
//	    "github.com/koopa0/toolhub/internal/log"
//	    "github.com/koopa0/toolhub/internal/mcp"
//	    "github.com/koopa0/toolhub/internal/security"
//	    "github.com/koopa0/toolhub/internal/tools"
//	)
//
//	func main() {
//	    ctx := context.Background()
//	    logger := log.New(log.Config{})
//
//	    ws, err := security.NewWorkspace(".", false)
//	    if err != nil {
//	        panic(err)
//	    }
//	    fileTools, err := tools.NewFileToolset(ws, logger)
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    server, err := mcp.NewServer(mcp.Config{
//	        Name:    "toolhub",
//	        Version: "1.0.0",
//	        Tools:   fileTools.Tools(),
//	        Logger:  logger,
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    transport, err := mcp.NewStdio(os.Stdin, os.Stdout, mcp.DefaultQueueSize, logger)
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    // Blocks until stdin closes or ctx is canceled.
//	    if err := server.Run(ctx, transport); err != nil {
//	        panic(err)
//	    }
//	}
//
// Logging goes to stderr; stdout carries protocol messages only.
//
// # Thread Safety
//
// The transport is safe for concurrent Send calls. The server handles one
// message at a time, so tool implementations are never called concurrently
// by a single server instance.
package mcp
