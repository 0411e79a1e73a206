package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/koopa0/toolhub/internal/log"
	"github.com/koopa0/toolhub/internal/tools"
)

// handlerFunc processes the params of one recognized method.
type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Config holds the MCP server configuration.
type Config struct {
	// Name and Version identify the server in the initialize handshake.
	Name    string
	Version string

	// Tools are the capabilities exposed over the protocol.
	Tools []tools.Tool

	// CallTimeout bounds one tools/call execution; zero disables the bound.
	CallTimeout time.Duration

	Logger log.Logger
}

// Server implements the MCP JSON-RPC method surface over a Transport:
// initialize, tools/list, and tools/call. The dispatch table and the server
// identity are fixed at construction; each message is handled statelessly.
type Server struct {
	name     string
	version  string
	adapter  *Adapter
	handlers map[string]handlerFunc
	logger   log.Logger
}

// NewServer builds a server and its tool adapter.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	adapter, err := NewAdapter(cfg.Tools, cfg.CallTimeout, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating adapter: %w", err)
	}

	s := &Server{
		name:    cfg.Name,
		version: cfg.Version,
		adapter: adapter,
		logger:  cfg.Logger,
	}
	s.handlers = map[string]handlerFunc{
		"initialize": s.handleInitialize,
		"tools/list": s.handleListTools,
		"tools/call": s.handleCallTool,
	}

	s.logger.Info("MCP server initialized",
		"name", cfg.Name, "version", cfg.Version, "tool_count", len(cfg.Tools))
	return s, nil
}

// Run starts the transport and serves messages until the input closes or the
// context is canceled. The transport is stopped before Run returns, whatever
// the exit path.
func (s *Server) Run(ctx context.Context, t Transport) error {
	if t == nil {
		return fmt.Errorf("transport is required")
	}

	s.logger.Info("starting MCP server", "server", s.name)
	if err := t.Start(ctx); err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}

	err := RunMessageLoop(ctx, t, s.handleMessage, s.logger)
	s.logger.Info("MCP server stopped", "server", s.name)
	return err
}

// handleMessage decodes one incoming message and routes it through the
// dispatch table.
//
// Requests (id present) always produce exactly one response carrying the
// same id. Notifications (method present, id absent or null) never produce
// a response, not even for unknown methods or failed handlers; those
// failures are only logged. A message with no method is not a valid
// notification and is answered with an invalid-request error.
func (s *Server) handleMessage(ctx context.Context, raw json.RawMessage) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		s.logger.Error("undecodable message", "error", err)
		return errorResponse(nil, CodeParseError, "Parse error")
	}

	id := normalizeID(req.ID)

	if req.Method == "" {
		s.logger.Warn("message without method")
		return errorResponse(id, CodeInvalidRequest, "Invalid Request")
	}
	notification := id == nil

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.logger.Warn("unknown method", "method", req.Method)
		if notification {
			return nil
		}
		return errorResponse(id, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	s.logger.Debug("handling request", "method", req.Method, "id", string(id))

	result, err := handler(ctx, req.Params)
	if err != nil {
		s.logger.Error("handler failed", "method", req.Method, "error", err)
		if notification {
			return nil
		}
		return wireError(id, err)
	}

	if notification {
		return nil
	}
	return resultResponse(id, result)
}

// wireError maps a handler failure onto a protocol error response. Adapter
// rejections (unknown tool, bad arguments) are the caller's fault and map to
// invalid params with the rejection text; everything else is a failure
// inside the server or the tool and maps to an internal error.
func wireError(id json.RawMessage, err error) *Response {
	if errors.Is(err, tools.ErrNotFound) || errors.Is(err, tools.ErrInvalidArguments) {
		return errorResponse(id, CodeInvalidParams, err.Error())
	}
	return errorResponse(id, CodeInternalError, fmt.Sprintf("Internal error: %v", err))
}

// initializeParams is the subset of the initialize request the server reads.
type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"clientInfo"`
}

// handleInitialize answers the handshake with the fixed server identity.
// The client's declared info is logged and otherwise ignored.
func (s *Server) handleInitialize(_ context.Context, params json.RawMessage) (any, error) {
	var p initializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("decoding initialize params: %w", err)
		}
	}

	client := p.ClientInfo.Name
	if client == "" {
		client = "unknown"
	}
	s.logger.Info("client initializing", "client", client)

	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		ServerInfo:      ServerInfo{Name: s.name, Version: s.version},
	}, nil
}

// handleListTools reports every exposed tool.
func (s *Server) handleListTools(_ context.Context, _ json.RawMessage) (any, error) {
	list := s.adapter.ListTools()
	s.logger.Debug("listing tools", "count", len(list))
	return ListToolsResult{Tools: list}, nil
}

// callToolParams is the tools/call parameter shape.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// handleCallTool executes a tool and wraps its text result in a content
// block. Adapter and tool errors propagate unchanged for handleMessage to
// map onto wire codes.
func (s *Server) handleCallTool(ctx context.Context, params json.RawMessage) (any, error) {
	var p callToolParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: decoding params: %v", tools.ErrInvalidArguments, err)
		}
	}
	if p.Name == "" {
		return nil, fmt.Errorf("%w: tool name is required", tools.ErrInvalidArguments)
	}
	if p.Arguments == nil {
		p.Arguments = map[string]any{}
	}

	s.logger.Info("calling tool", "tool", p.Name)
	result, err := s.adapter.CallTool(ctx, p.Name, p.Arguments)
	if err != nil {
		return nil, err
	}

	return CallToolResult{
		Content: []ContentBlock{{Type: "text", Text: result}},
	}, nil
}
