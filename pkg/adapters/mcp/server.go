// Package mcp exposes workspace lifecycles as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/intentflow/internal/logging"
	"github.com/aretw0/intentflow/pkg/domain"
	"github.com/aretw0/intentflow/pkg/lifecycle"
	"github.com/aretw0/intentflow/pkg/parser"
	"github.com/aretw0/intentflow/pkg/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StateURI is the resource holding the default workspace snapshot.
const StateURI = "intentflow://state"

// Server exposes a workspace manager as an MCP server.
type Server struct {
	sessions  *session.Manager
	workspace string
	clock     func() time.Time
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithWorkspace sets the workspace used when a tool call names none.
func WithWorkspace(name string) Option {
	return func(s *Server) { s.workspace = name }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithClock sets the clock used to stamp intents built from text.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) { s.clock = clock }
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		sessions:  sessions,
		workspace: domain.DefaultKey,
		clock:     time.Now,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("intentflow-mcp", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func workspaceArg() mcp.ToolOption {
	return mcp.WithString("workspace", mcp.Description("Workspace name (optional, defaults to the server workspace)"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the current snapshot of a workspace."),
		workspaceArg(),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		return nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("set_intent",
		mcp.WithDescription("Store an intent and open the auction. Pass either text (parsed locally) or an explicit intent_id."),
		workspaceArg(),
		mcp.WithString("text", mcp.Description("Natural-language request, e.g. 'supply my USDC at the highest APY'")),
		mcp.WithString("user", mcp.Description("0x-prefixed user address, required with text")),
		mcp.WithString("intent_id", mcp.Description("Intent id when no text is given")),
		mcp.WithString("commitment", mcp.Description("Opaque commitment")),
		mcp.WithString("encrypted_payload", mcp.Description("Opaque encrypted payload")),
		mcp.WithString("original_text", mcp.Description("Original request text")),
		mcp.WithObject("parsed_intent", mcp.Description("Structured intent: goal, assets, constraints")),
	), s.handle(s.setIntent))

	s.mcpServer.AddTool(mcp.NewTool("set_auction_results",
		mcp.WithDescription("Store solver bids and the winner; completes the auction."),
		workspaceArg(),
		mcp.WithArray("bids", mcp.Required(), mcp.Description("Solver bids")),
		mcp.WithString("winner_id", mcp.Required(), mcp.Description("solver_id of the winning bid")),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		var args struct {
			Bids     []domain.SolverBid `json:"bids"`
			WinnerID string             `json:"winner_id"`
		}
		if err := req.BindArguments(&args); err != nil {
			return err
		}
		i := domain.FindBid(args.Bids, args.WinnerID)
		if i < 0 {
			return fmt.Errorf("%w: %q", domain.ErrWinnerNotInBids, args.WinnerID)
		}
		return st.SetAuctionResults(ctx, args.Bids, args.Bids[i])
	}))

	s.mcpServer.AddTool(mcp.NewTool("set_authorization",
		mcp.WithDescription("Record the authorization transaction."),
		workspaceArg(),
		mcp.WithString("tx", mcp.Required(), mcp.Description("Transaction reference")),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		tx, err := req.RequireString("tx")
		if err != nil {
			return err
		}
		return st.SetAuthorization(ctx, tx)
	}))

	s.mcpServer.AddTool(mcp.NewTool("start_execution",
		mcp.WithDescription("Create the execution steps from the configured templates."),
		workspaceArg(),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		return st.StartExecution(ctx)
	}))

	s.mcpServer.AddTool(mcp.NewTool("update_execution_step",
		mcp.WithDescription("Set the status of one execution step and merge optional fields."),
		workspaceArg(),
		mcp.WithNumber("step", mcp.Required(), mcp.Description("1-based step number")),
		mcp.WithString("status", mcp.Required(), mcp.Enum("pending", "in-progress", "completed", "failed")),
		mcp.WithObject("patch", mcp.Description("Step fields: via, source_tx, dest_tx, source_chain, dest_chain, amount, fee")),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		n, err := req.RequireInt("step")
		if err != nil {
			return err
		}
		status, err := req.RequireString("status")
		if err != nil {
			return err
		}
		var patch *domain.StepPatch
		if raw, ok := req.GetArguments()["patch"].(map[string]any); ok && len(raw) > 0 {
			p, err := domain.DecodeStepPatch(raw)
			if err != nil {
				return err
			}
			patch = &p
		}
		return st.UpdateExecutionStep(ctx, n, domain.StepStatus(status), patch)
	}))

	s.mcpServer.AddTool(mcp.NewTool("set_final_result",
		mcp.WithDescription("Store the execution summary and complete execution."),
		workspaceArg(),
		mcp.WithObject("result", mcp.Description("initial_assets, total_gas_fees, final_position, expected_monthly_yield, net_return")),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		raw, ok := req.GetArguments()["result"].(map[string]any)
		if !ok {
			return st.SetFinalResult(ctx, nil)
		}
		result, err := domain.DecodeFinalResult(raw)
		if err != nil {
			return err
		}
		return st.SetFinalResult(ctx, &result)
	}))

	s.mcpServer.AddTool(mcp.NewTool("add_zk_proof",
		mcp.WithDescription("Append a proof record."),
		workspaceArg(),
		mcp.WithString("type", mcp.Required()),
		mcp.WithString("hash"),
		mcp.WithString("tx"),
		mcp.WithString("verifier"),
		mcp.WithString("status", mcp.Required(), mcp.Enum("pending", "verified")),
		mcp.WithString("block"),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		args := req.GetArguments()
		fields := make(map[string]any, len(args))
		for k, v := range args {
			if k != "workspace" {
				fields[k] = v
			}
		}
		proof, err := domain.DecodeProof(fields)
		if err != nil {
			return err
		}
		return st.AddZkProof(ctx, proof)
	}))

	s.mcpServer.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Restore the initial state and advance the epoch."),
		workspaceArg(),
	), s.handle(func(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
		return st.Reset(ctx)
	}))
}

func (s *Server) setIntent(ctx context.Context, st *lifecycle.Store, req mcp.CallToolRequest) error {
	if text := req.GetString("text", ""); text != "" {
		parsed, err := parser.Parse(text)
		if err != nil {
			return err
		}
		in, err := parsed.Intent(req.GetString("user", ""), s.clock())
		if err != nil {
			return err
		}
		return st.SetIntent(ctx, in)
	}

	var args struct {
		IntentID         string              `json:"intent_id"`
		Commitment       string              `json:"commitment"`
		EncryptedPayload string              `json:"encrypted_payload"`
		OriginalText     string              `json:"original_text"`
		ParsedIntent     domain.ParsedIntent `json:"parsed_intent"`
	}
	if err := req.BindArguments(&args); err != nil {
		return err
	}
	return st.SetIntent(ctx, domain.Intent{
		IntentID:         args.IntentID,
		Commitment:       args.Commitment,
		EncryptedPayload: args.EncryptedPayload,
		OriginalText:     args.OriginalText,
		ParsedIntent:     args.ParsedIntent,
	})
}

// handle opens the requested workspace, runs fn and answers with the
// resulting snapshot. Failures are reported as tool errors so the model can
// read them.
func (s *Server) handle(fn func(context.Context, *lifecycle.Store, mcp.CallToolRequest) error) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("workspace", s.workspace)
		st, err := s.sessions.Open(ctx, name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("open workspace: %v", err)), nil
		}
		if err := fn(ctx, st, req); err != nil {
			if !domain.IsValidation(err) && !errors.Is(err, domain.ErrStaleEpoch) {
				s.logger.Warn("MCP tool failed", "tool", req.Params.Name, "workspace", name, "err", err)
			}
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", req.Params.Name, err)), nil
		}
		data, err := json.Marshal(st.Snapshot())
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Current intent lifecycle state",
		mcp.WithResourceDescription("Snapshot of the default workspace"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := s.sessions.Open(ctx, s.workspace)
		if err != nil {
			return nil, fmt.Errorf("failed to open workspace: %w", err)
		}
		data, err := json.Marshal(st.Snapshot())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StateURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
