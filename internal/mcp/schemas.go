package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.NewTool("rebuild_index",
		mcp.WithDescription("Rebuild the exported-function index from every configured source root. Runs in the background unless wait is set."),
		mcp.WithBoolean("wait", mcp.Description("Block until the rebuild has finished and return its statistics (default: false)")),
		mcp.WithNumber("timeout_seconds", mcp.Description("With wait, stop waiting after this many seconds; the rebuild itself continues (default: 300)")),
	)
}

// completeModuleTool returns the tool definition for complete_module
func completeModuleTool() mcp.Tool {
	return mcp.NewTool("complete_module",
		mcp.WithDescription("Completion entries for every exported function of a module, as \"fun/arity\\tMethod\" labels with snippet templates."),
		mcp.WithString("module", mcp.Required(), mcp.Description("Module name, e.g. lists")),
	)
}

// listModulesTool returns the tool definition for list_modules
func listModulesTool() mcp.Tool {
	return mcp.NewTool("list_modules",
		mcp.WithDescription("Lists every indexed module as \"mod\\tModule\" labels."),
		mcp.WithString("prefix", mcp.Description("Optional module name prefix filter")),
	)
}

// findFunctionTool returns the tool definition for find_function
func findFunctionTool() mcp.Tool {
	return mcp.NewTool("find_function",
		mcp.WithDescription("Locates the definitions of an exported function, one entry per arity, with file path and 1-based line."),
		mcp.WithString("module", mcp.Required(), mcp.Description("Module name")),
		mcp.WithString("function", mcp.Required(), mcp.Description("Function name")),
	)
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.NewTool("get_status",
		mcp.WithDescription("Reports cache state, readiness, symbol counts and the last build."),
	)
}
