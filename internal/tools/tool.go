package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Error kinds shared by every layer that dispatches tools. Adapters classify
// failures with errors.Is and map them to their protocol's error shape.
var (
	// ErrNotFound reports a lookup for an unregistered tool name.
	ErrNotFound = errors.New("tool not found")

	// ErrInvalidArguments reports arguments that do not satisfy the tool's
	// input schema (missing required keys, wrong types, malformed shapes).
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Tool is the capability every adapter in this repository consumes: a named
// operation with a declared input schema and a synchronous text-producing
// execution entry point.
//
// Any type with these four methods is a Tool; there is no base type to embed.
//
// Call contract:
//   - Business-level failures (file missing, command failed, API miss) are
//     reported inside the returned string, formatted for an LLM to read.
//   - Go errors are reserved for invalid arguments (ErrInvalidArguments),
//     context cancellation, and infrastructure faults.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string

	// Description returns what the tool does. The LLM uses this to decide
	// when to call it.
	Description() string

	// InputSchema returns the JSON schema of the arguments object.
	InputSchema() *jsonschema.Schema

	// Call validates args against the input schema and executes the tool.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Toolset groups related tools behind a single constructor so dependencies
// (validators, configuration, logger) are injected once.
type Toolset interface {
	// Name returns the unique identifier of the toolset.
	Name() string

	// Tools returns the toolset's tools. Pure query, stable order.
	Tools() []Tool
}

// typedTool implements Tool for a concrete input struct type.
// Type erasure happens at the Call boundary: the arguments map is validated
// against the derived schema and then converted to In via a JSON round-trip.
type typedTool[In any] struct {
	name        string
	description string
	schema      *jsonschema.Schema
	resolved    *jsonschema.Resolved
	fn          func(context.Context, In) (string, error)
}

// New creates a Tool whose input schema is derived from the In struct type.
//
// Fields of In use json tags for wire names; fields tagged ",omitempty" are
// optional, all others are required. Validation happens before fn is ever
// invoked, so fn can trust its input.
//
// Example:
//
//	type echoInput struct {
//	    Text string `json:"text"`
//	}
//	echo, err := tools.New("simple", "Echoes the input text.",
//	    func(ctx context.Context, in echoInput) (string, error) {
//	        return "Echo: " + in.Text, nil
//	    })
func New[In any](name, description string, fn func(context.Context, In) (string, error)) (Tool, error) {
	if name == "" {
		return nil, errors.New("tool name is required")
	}
	if description == "" {
		return nil, errors.New("tool description is required")
	}
	if fn == nil {
		return nil, errors.New("tool handler is required")
	}

	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("deriving input schema for %q: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolving input schema for %q: %w", name, err)
	}

	return &typedTool[In]{
		name:        name,
		description: description,
		schema:      schema,
		resolved:    resolved,
		fn:          fn,
	}, nil
}

// Name returns the tool's unique identifier.
func (t *typedTool[In]) Name() string {
	return t.name
}

// Description returns the tool's functionality description.
func (t *typedTool[In]) Description() string {
	return t.description
}

// InputSchema returns the schema derived from In.
func (t *typedTool[In]) InputSchema() *jsonschema.Schema {
	return t.schema
}

// Call validates args, converts them to In, and runs the tool function.
func (t *typedTool[In]) Call(ctx context.Context, args map[string]any) (string, error) {
	if args == nil {
		args = map[string]any{}
	}

	if err := t.resolved.Validate(args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	// The schema accepted the map; convert it to the typed input.
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	return t.fn(ctx, in)
}
