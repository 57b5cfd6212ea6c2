package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/intentflow"
	"github.com/aretw0/intentflow/internal/cli"
	api "github.com/aretw0/intentflow/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes every workspace over a JSON API, with Server-Sent Events and
WebSocket streams of state changes and Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		addr := rt.Config.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		handler := api.NewHandler(rt.Manager,
			api.WithMetrics(rt.Metrics),
			api.WithVersion(intentflow.Version),
			api.WithLogger(rt.Logger),
		)
		srv := api.NewHTTPServer(addr, handler)

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			rt.Logger.Info("Starting intentflow server", "addr", addr, "store", rt.Config.Store.Backend, "replication", rt.Config.Replication.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-sc.Done():
			rt.Logger.Info("Shutting down", "signal", sc.Signal())
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				rt.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			rt.Logger.Info("Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
