package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

// newFailTool builds a tool whose handler always reports an infrastructure
// failure as a Go error.
func newFailTool(t *testing.T) Tool {
	t.Helper()
	type empty struct{}
	tool, err := New("boom", "Always fails",
		func(ctx context.Context, _ empty) (string, error) {
			return "", fmt.Errorf("backend unavailable")
		})
	require.NoError(t, err)
	return tool
}

// stubToolset groups prebuilt tools under a fixed name.
type stubToolset struct {
	name  string
	tools []Tool
}

func (s *stubToolset) Name() string  { return s.name }
func (s *stubToolset) Tools() []Tool { return s.tools }

func newTestRegistry(t *testing.T, toolsToAdd ...Tool) *Registry {
	t.Helper()
	reg, err := NewRegistry(testLogger())
	require.NoError(t, err)
	for _, tool := range toolsToAdd {
		require.NoError(t, reg.Register(tool))
	}
	return reg
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		reg, err := NewRegistry(testLogger())
		require.NoError(t, err)
		require.NotNil(t, reg)
		assert.Zero(t, reg.Len())
	})

	t.Run("nil logger fails", func(t *testing.T) {
		t.Parallel()
		_, err := NewRegistry(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("registers and looks up", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t, newEchoTool(t))

		assert.Equal(t, 1, reg.Len())
		got, ok := reg.Get("simple")
		require.True(t, ok)
		assert.Equal(t, "simple", got.Name())
	})

	t.Run("unknown lookup misses", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t)
		_, ok := reg.Get("nope")
		assert.False(t, ok)
	})

	t.Run("duplicate name fails", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t, newEchoTool(t))

		err := reg.Register(newEchoTool(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate tool name: simple")
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("nil tool fails", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t)
		err := reg.Register(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tool is required")
	})

	t.Run("names keep registration order", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t, newFailTool(t), newEchoTool(t))
		assert.Equal(t, []string{"boom", "simple"}, reg.Names())
	})

	t.Run("names returns a copy", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t, newEchoTool(t))

		names := reg.Names()
		names[0] = "mutated"
		assert.Equal(t, []string{"simple"}, reg.Names())
	})
}

func TestRegistry_RegisterToolset(t *testing.T) {
	t.Parallel()

	t.Run("registers every tool", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t)
		ts := &stubToolset{name: "stub", tools: []Tool{newEchoTool(t), newFailTool(t)}}

		require.NoError(t, reg.RegisterToolset(ts))
		assert.Equal(t, []string{"simple", "boom"}, reg.Names())
	})

	t.Run("duplicate inside toolset names the toolset", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t, newEchoTool(t))
		ts := &stubToolset{name: "stub", tools: []Tool{newEchoTool(t)}}

		err := reg.RegisterToolset(ts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "toolset stub")
		assert.Contains(t, err.Error(), "duplicate tool name: simple")
	})

	t.Run("nil toolset fails", func(t *testing.T) {
		t.Parallel()
		reg := newTestRegistry(t)
		require.Error(t, reg.RegisterToolset(nil))
	})
}

func TestRegistry_Descriptions(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, newEchoTool(t), newFailTool(t))

	descs := reg.Descriptions()
	require.Len(t, descs, 2)

	assert.Equal(t, "function", descs[0].Type)
	assert.Equal(t, "simple", descs[0].Function.Name)
	assert.Equal(t, "A simple tool for testing", descs[0].Function.Description)
	require.NotNil(t, descs[0].Function.Parameters)
	assert.Equal(t, "object", descs[0].Function.Parameters.Type)
	assert.Equal(t, []string{"text"}, descs[0].Function.Parameters.Required)

	assert.Equal(t, "function", descs[1].Type)
	assert.Equal(t, "boom", descs[1].Function.Name)
}

func TestRegistry_GeminiDeclarations(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, newEchoTool(t))

	decls := reg.GeminiDeclarations()
	require.Len(t, decls, 1)

	decl := decls[0]
	assert.Equal(t, "simple", decl.Name)
	assert.Equal(t, "A simple tool for testing", decl.Description)
	require.NotNil(t, decl.Parameters)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	assert.Equal(t, []string{"text"}, decl.Parameters.Required)
	require.Contains(t, decl.Parameters.Properties, "text")
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["text"].Type)
}

func TestGeminiSchema(t *testing.T) {
	t.Parallel()

	t.Run("nil passes through", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, geminiSchema(nil))
	})

	t.Run("scalar keywords carry over", func(t *testing.T) {
		t.Parallel()
		got := geminiSchema(&jsonschema.Schema{
			Type:        "string",
			Description: "a name",
			Format:      "hostname",
			Pattern:     "^[a-z]+$",
		})
		assert.Equal(t, genai.TypeString, got.Type)
		assert.Equal(t, "a name", got.Description)
		assert.Equal(t, "hostname", got.Format)
		assert.Equal(t, "^[a-z]+$", got.Pattern)
	})

	t.Run("null union becomes nullable", func(t *testing.T) {
		t.Parallel()
		got := geminiSchema(&jsonschema.Schema{Types: []string{"null", "integer"}})
		assert.Equal(t, genai.TypeInteger, got.Type)
		require.NotNil(t, got.Nullable)
		assert.True(t, *got.Nullable)
	})

	t.Run("enum values become strings", func(t *testing.T) {
		t.Parallel()
		got := geminiSchema(&jsonschema.Schema{
			Type: "string",
			Enum: []any{"a", "b", 3},
		})
		assert.Equal(t, []string{"a", "b", "3"}, got.Enum)
	})

	t.Run("items convert recursively", func(t *testing.T) {
		t.Parallel()
		got := geminiSchema(&jsonschema.Schema{
			Type:  "array",
			Items: &jsonschema.Schema{Type: "number"},
		})
		assert.Equal(t, genai.TypeArray, got.Type)
		require.NotNil(t, got.Items)
		assert.Equal(t, genai.TypeNumber, got.Items.Type)
	})

	t.Run("anyOf converts recursively", func(t *testing.T) {
		t.Parallel()
		got := geminiSchema(&jsonschema.Schema{
			AnyOf: []*jsonschema.Schema{{Type: "string"}, {Type: "boolean"}},
		})
		require.Len(t, got.AnyOf, 2)
		assert.Equal(t, genai.TypeString, got.AnyOf[0].Type)
		assert.Equal(t, genai.TypeBoolean, got.AnyOf[1].Type)
	})
}

func TestRegistry_Execute(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, newEchoTool(t), newFailTool(t))
	ctx := context.Background()

	t.Run("returns the tool result", func(t *testing.T) {
		t.Parallel()
		out := reg.Execute(ctx, "simple", map[string]any{"text": "hi"})
		assert.Equal(t, "Echo: hi", out)
	})

	t.Run("unknown tool reports the available names", func(t *testing.T) {
		t.Parallel()
		out := reg.Execute(ctx, "nope", nil)
		assert.Equal(t, "ERROR: Tool 'nope' not found. Available tools: simple, boom", out)
	})

	t.Run("invalid arguments become an in-band error", func(t *testing.T) {
		t.Parallel()
		out := reg.Execute(ctx, "simple", map[string]any{})
		assert.Contains(t, out, "ERROR: Invalid arguments for tool 'simple':")
	})

	t.Run("tool failure becomes a fatal error string", func(t *testing.T) {
		t.Parallel()
		out := reg.Execute(ctx, "boom", map[string]any{})
		assert.Contains(t, out, "FATAL ERROR: An unexpected error occurred during tool execution:")
		assert.Contains(t, out, "backend unavailable")
	})
}

func TestRegistry_Callables(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t, newEchoTool(t))
	callables := reg.Callables()
	require.Len(t, callables, 1)

	call, ok := callables["simple"]
	require.True(t, ok)

	out, err := call(context.Background(), map[string]any{"text": "direct"})
	require.NoError(t, err)
	assert.Equal(t, "Echo: direct", out)
}
