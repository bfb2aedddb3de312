package claude

import (
	"github.com/huyly0909/chainchat/pkg/tools"
)

// ToolsFromDefinitions converts registry tool definitions into the Messages
// API tool format.
func ToolsFromDefinitions(defs []tools.ToolDefinition) []Tool {
	ret := make([]Tool, 0, len(defs))
	for _, def := range defs {
		ret = append(ret, Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.Parameters,
		})
	}
	return ret
}
