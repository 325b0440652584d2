package main

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/coderun/internal/execution"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the runner as an MCP tool over stdio",
	Long: `Expose a single "run_code" tool over the Model Context Protocol on
stdin/stdout. Logs are written to stderr.

Examples:
  coderun mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	_, _, handler, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return mcpserver.ServeStdio(newMCPServer(handler))
}

func newMCPServer(handler *execution.Handler) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("coderun", version)

	s.AddTool(mcp.Tool{
		Name:        "run_code",
		Description: "Execute a snippet with the configured interpreter under a hard timeout. Returns stdout followed by stderr.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
			},
			Required: []string{"code"},
		},
	}, runCodeTool(handler))

	return s
}

func runCodeTool(handler *execution.Handler) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		code, _ := args["code"].(string)

		resp := handler.Handle(ctx, execution.Request{Code: code})
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: resp.Body}},
			IsError: resp.Status != http.StatusOK,
		}, nil
	}
}
