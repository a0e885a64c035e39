package main

import (
	"github.com/fpang/leafscan/internal/auth"
	"github.com/fpang/leafscan/internal/chat"
	"github.com/fpang/leafscan/internal/mcpserver"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis workflow as MCP tools over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing select_image, submit,
reset, get_state and wait. When a Gemini API key is available,
suggest_remedy is offered as well. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, sess := loadSession()
			wf := newWorkflow(sess)

			var adviser mcpserver.Remedier
			if apiKey, err := auth.GetAPIKey(); err == nil {
				client, err := chat.NewGeminiClient(ctx, apiKey)
				if err != nil {
					return err
				}
				adviser = chat.NewAdviser(client.Models, cfg.GeminiModel)
			}

			log.Info().
				Bool("session", sess != nil).
				Bool("sessionStore", store != nil).
				Bool("gemini", adviser != nil).
				Msg("Starting MCP server over stdio")

			srv := mcpserver.NewServer(version, wf, adviser)
			defer wf.Reset()
			return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
		},
	}
	cmd.Flags().String("model", chat.DefaultModelName, "Gemini model for suggest_remedy")
	return cmd
}
