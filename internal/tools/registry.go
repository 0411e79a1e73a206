package tools

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/koopa0/toolhub/internal/log"
)

// FunctionDescription is the function-calling wire shape shared by the
// OpenAI-compatible APIs: {"type":"function","function":{...}}.
type FunctionDescription struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec carries the function block of a FunctionDescription.
type FunctionSpec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Registry is the integration gateway for callers driving tools from native
// LLM APIs or custom agent loops. It indexes tools by name, projects them
// into provider wire formats, and dispatches calls through a single entry
// point that never fails with a Go error.
//
// Register everything during setup. Once registration is finished the
// registry is read-only and safe for concurrent use.
type Registry struct {
	logger log.Logger
	byName map[string]Tool
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry(logger log.Logger) (*Registry, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Registry{
		logger: logger,
		byName: make(map[string]Tool),
	}, nil
}

// Register adds a tool under its own name. Names are unique per registry;
// registering a second tool with an already-taken name is an error rather
// than a silent replacement.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is required")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("duplicate tool name: %s", name)
	}

	r.byName[name] = t
	r.order = append(r.order, name)
	r.logger.Debug("tool registered", "tool", name)
	return nil
}

// RegisterToolset registers every tool the toolset provides.
func (r *Registry) RegisterToolset(ts Toolset) error {
	if ts == nil {
		return fmt.Errorf("toolset is required")
	}
	for _, t := range ts.Tools() {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("toolset %s: %w", ts.Name(), err)
		}
	}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Descriptions returns the OpenAI-style function description of every
// registered tool, in registration order. This is the payload handed to the
// model during the request phase.
func (r *Registry) Descriptions() []FunctionDescription {
	out := make([]FunctionDescription, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		out = append(out, FunctionDescription{
			Type: "function",
			Function: FunctionSpec{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.InputSchema(),
			},
		})
	}
	return out
}

// GeminiDeclarations returns the typed Gemini function declaration of every
// registered tool, in registration order.
func (r *Registry) GeminiDeclarations() []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  geminiSchema(t.InputSchema()),
		})
	}
	return out
}

// Callables returns each tool's Call entry point keyed by tool name, for
// callers that want plain functions with no framework in between.
func (r *Registry) Callables() map[string]func(context.Context, map[string]any) (string, error) {
	out := make(map[string]func(context.Context, map[string]any) (string, error), len(r.order))
	for _, name := range r.order {
		out[name] = r.byName[name].Call
	}
	return out
}

// Execute dispatches a parsed model tool call and always reports the outcome
// as a string the model can read. Unknown tools, rejected arguments, and
// runtime failures come back as in-band ERROR / FATAL ERROR text, never as
// Go errors.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) string {
	t, ok := r.byName[name]
	if !ok {
		r.logger.Warn("tool call for unknown tool", "tool", name)
		return fmt.Sprintf("ERROR: Tool '%s' not found. Available tools: %s",
			name, strings.Join(r.order, ", "))
	}

	r.logger.Info("executing tool", "tool", name, "args", len(args))

	result, err := t.Call(ctx, args)
	if err != nil {
		if errors.Is(err, ErrInvalidArguments) {
			r.logger.Warn("tool call arguments rejected", "tool", name, "error", err)
			return fmt.Sprintf("ERROR: Invalid arguments for tool '%s': %v", name, err)
		}
		r.logger.Error("tool execution failed", "tool", name, "error", err)
		return fmt.Sprintf("FATAL ERROR: An unexpected error occurred during tool execution: %v", err)
	}

	r.logger.Info("tool executed", "tool", name, "result_length", len(result))
	return result
}

// geminiSchema converts a JSON schema into the typed shape the Gemini API
// accepts. Only the keywords Gemini understands are carried over; everything
// else is dropped.
func geminiSchema(js *jsonschema.Schema) *genai.Schema {
	if js == nil {
		return nil
	}

	out := &genai.Schema{
		Title:       js.Title,
		Description: js.Description,
		Format:      js.Format,
		Pattern:     js.Pattern,
		Minimum:     js.Minimum,
		Maximum:     js.Maximum,
		Required:    slices.Clone(js.Required),
	}

	switch {
	case js.Type != "":
		out.Type = geminiType(js.Type)
	case len(js.Types) > 0:
		// A ["null", T] union maps to a nullable T.
		for _, t := range js.Types {
			if t == "null" {
				out.Nullable = genai.Ptr(true)
				continue
			}
			if out.Type == "" {
				out.Type = geminiType(t)
			}
		}
	}

	for _, v := range js.Enum {
		if s, ok := v.(string); ok {
			out.Enum = append(out.Enum, s)
			continue
		}
		out.Enum = append(out.Enum, fmt.Sprint(v))
	}

	if js.Items != nil {
		out.Items = geminiSchema(js.Items)
	}
	if len(js.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(js.Properties))
		for name, prop := range js.Properties {
			out.Properties[name] = geminiSchema(prop)
		}
	}
	for _, sub := range js.AnyOf {
		out.AnyOf = append(out.AnyOf, geminiSchema(sub))
	}

	return out
}

// geminiType maps a JSON schema type name onto the Gemini enum.
func geminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	case "null":
		return genai.TypeNULL
	default:
		return genai.TypeUnspecified
	}
}
