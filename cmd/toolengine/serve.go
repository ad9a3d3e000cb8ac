package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolengine/mcpserver"
	"github.com/jonwraymond/toolengine/opsapi"
)

// version is set at build time via ldflags.
var version = "dev"

func newServeMCPCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve registered tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(a *app) error {
				s := mcpserver.New(a.exec, mcpserver.Options{Version: version, Logger: a.logger})
				return s.Run(cmd.Context(), &mcp.StdioTransport{})
			})
		},
	}
}

func newServeHTTPCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve-http",
		Short: "Serve the HTTP ops API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withApp(cmd, func(a *app) error {
				if addr == "" {
					addr = a.cfg.HTTP.Addr
				}
				gin.SetMode(gin.ReleaseMode)
				opts := opsapi.Options{Logger: a.logger}
				if a.store != nil {
					opts.Store = a.store
				}
				srv := &http.Server{
					Addr:              addr,
					Handler:           opsapi.NewRouter(a.exec, opts),
					ReadHeaderTimeout: 10 * time.Second,
				}
				return serveUntilDone(cmd.Context(), srv, a)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func serveUntilDone(ctx context.Context, srv *http.Server, a *app) error {
	errc := make(chan error, 1)
	go func() {
		a.logger.Logf("http: listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	a.exec.Monitor().CancelAll()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
