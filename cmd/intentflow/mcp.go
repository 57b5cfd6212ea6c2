package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/aretw0/intentflow"
	"github.com/aretw0/intentflow/internal/cli"
	"github.com/aretw0/intentflow/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the lifecycle actions of a workspace as MCP tools and its state
as the intentflow://state resource.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := mcp.NewServer(rt.Manager, intentflow.Version,
			mcp.WithWorkspace(rt.Config.Workspace),
			mcp.WithLogger(rt.Logger),
		)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			rt.Logger.Info("Starting intentflow MCP server (stdio)", "workspace", rt.Config.Workspace)
			return srv.ServeStdio()
		case "sse":
			addr := fmt.Sprintf(":%d", port)
			baseURL := fmt.Sprintf("http://localhost:%d", port)
			rt.Logger.Info("Starting intentflow MCP server (SSE)", "addr", addr)

			sc := cli.NewSignalContext(cmd.Context())
			defer sc.Cancel()
			if err := srv.ServeSSE(sc, addr, baseURL); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			rt.Logger.Info("MCP server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
