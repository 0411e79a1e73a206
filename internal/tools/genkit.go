package tools

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RegisterGenkit defines every registered tool as a Genkit tool, so Genkit
// flows can hand the whole registry to a model in one call.
//
// Tools are defined with a raw map input and string output. Argument
// validation stays inside Tool.Call, which checks the map against the tool's
// schema before the handler runs.
func RegisterGenkit(g *genkit.Genkit, reg *Registry) error {
	if g == nil {
		return fmt.Errorf("genkit instance is required")
	}
	if reg == nil {
		return fmt.Errorf("registry is required")
	}

	for _, name := range reg.Names() {
		tool, ok := reg.Get(name)
		if !ok {
			continue
		}
		genkit.DefineTool(g, tool.Name(), tool.Description(),
			func(toolCtx *ai.ToolContext, args map[string]any) (string, error) {
				ctx := toolCtx.Context
				if ctx == nil {
					ctx = context.Background()
				}
				return tool.Call(ctx, args)
			})
	}

	reg.logger.Info("tools registered with genkit", "count", reg.Len())
	return nil
}
