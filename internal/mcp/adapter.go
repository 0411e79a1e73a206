package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/koopa0/toolhub/internal/log"
	"github.com/koopa0/toolhub/internal/tools"
)

// Adapter translates between the generic Tool capability and the MCP wire
// shapes: tool descriptors for tools/list and dispatched execution for
// tools/call. The tool table is fixed at construction and read-only after,
// so lookups need no locking.
type Adapter struct {
	byName      map[string]tools.Tool
	order       []string
	callTimeout time.Duration
	logger      log.Logger
}

// NewAdapter indexes the given tools by name. callTimeout bounds a single
// CallTool execution; zero leaves tool calls unbounded.
func NewAdapter(ts []tools.Tool, callTimeout time.Duration, logger log.Logger) (*Adapter, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	a := &Adapter{
		byName:      make(map[string]tools.Tool, len(ts)),
		callTimeout: callTimeout,
		logger:      logger,
	}
	for _, t := range ts {
		if t == nil {
			return nil, fmt.Errorf("tool is required")
		}
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if _, dup := a.byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool name: %s", name)
		}
		a.byName[name] = t
		a.order = append(a.order, name)
	}

	a.logger.Info("MCP adapter initialized", "tool_count", len(a.order), "tools", a.order)
	return a, nil
}

// ListTools returns the wire descriptor of every tool in registration order.
// Properties and required are always present, empty for argument-free tools.
func (a *Adapter) ListTools() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(a.order))
	for _, name := range a.order {
		t := a.byName[name]

		in := InputSchema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
			Required:   []string{},
		}
		if schema := t.InputSchema(); schema != nil {
			if len(schema.Properties) > 0 {
				in.Properties = schema.Properties
			}
			if len(schema.Required) > 0 {
				in.Required = schema.Required
			}
		}

		out = append(out, ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: in,
		})
	}
	return out
}

// CallTool runs the named tool and returns its text result.
//
// Unknown names come back tagged tools.ErrNotFound with the available names
// in the message; rejected arguments keep their tools.ErrInvalidArguments
// tag from the tool itself. Any other failure is the tool's own and
// propagates unchanged for the caller to classify.
func (a *Adapter) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := a.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: '%s'. Available tools: %s",
			tools.ErrNotFound, name, strings.Join(a.order, ", "))
	}

	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}

	a.logger.Info("executing tool", "tool", name)
	result, err := t.Call(ctx, args)
	if err != nil {
		return "", err
	}

	a.logger.Info("tool executed", "tool", name, "result_length", len(result))
	return result, nil
}

// ValidateArguments reports whether args carries every required key of the
// named tool's schema, and false for unknown tools. It checks presence only;
// value types are left to Call, which validates against the full schema.
func (a *Adapter) ValidateArguments(name string, args map[string]any) bool {
	t, ok := a.byName[name]
	if !ok {
		return false
	}
	schema := t.InputSchema()
	if schema == nil {
		return true
	}
	for _, key := range schema.Required {
		if _, present := args[key]; !present {
			return false
		}
	}
	return true
}
