package mcp

import (
	"bytes"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSON-RPC 2.0 error codes used on the wire.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// jsonRPCVersion tags every message envelope.
const jsonRPCVersion = "2.0"

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// Request is the decoded JSON-RPC request envelope. Params stays raw so each
// handler can decode its own parameter shape.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the JSON-RPC response envelope.
//
// The ID is kept as raw bytes so the client's id comes back exactly as it
// arrived, string or number. A nil ID omits the field entirely, which is the
// shape used when no id could be extracted; an id of 0 is still emitted.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// errorResponse builds an error response. A nil id omits the id field.
func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// resultResponse wraps a handler result for the given request id.
func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// normalizeID maps an absent or literal null id to nil so the rest of the
// server can treat both as "no id". Anything else is echoed byte for byte.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		return nil
	}
	return id
}

// InitializeResult is the fixed reply to the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what the server supports. Tools marshals to an
// empty object: tools are supported, with no optional sub-features.
type Capabilities struct {
	Tools struct{} `json:"tools"`
}

// ServerInfo identifies the server to the client.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ListToolsResult is the tools/list reply.
type ListToolsResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// ToolDescriptor is the wire form of a single tool.
type ToolDescriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the {type, properties, required} projection of a tool's
// argument schema. Properties and Required are always present on the wire,
// empty when the tool takes no arguments.
type InputSchema struct {
	Type       string                        `json:"type"`
	Properties map[string]*jsonschema.Schema `json:"properties"`
	Required   []string                      `json:"required"`
}

// CallToolResult is the tools/call reply.
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
}

// ContentBlock is one piece of tool output. This server only produces text
// blocks.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
