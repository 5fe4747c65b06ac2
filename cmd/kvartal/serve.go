package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hylla/kvartal/internal/adapters/server/mcpapi"
)

const serveShutdownGrace = 5 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		listen   string
		endpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph over MCP streamable HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := flags.newRuntime()
			if err != nil {
				return err
			}
			defer rt.closer()

			if listen == "" {
				listen = rt.cfg.Server.Listen
			}
			if endpoint == "" {
				endpoint = rt.cfg.Server.EndpointPath
			}

			handler, err := mcpapi.NewHandler(mcpapi.Config{
				ServerName:    "kvartal",
				ServerVersion: version,
				EndpointPath:  endpoint,
			}, rt.svc)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              listen,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("mcp server listening", "addr", listen, "endpoint", endpoint)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownGrace)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to server.listen)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "MCP endpoint path (defaults to server.endpoint_path)")
	return cmd
}
