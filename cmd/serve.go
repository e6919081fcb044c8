package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/salesloom-cli/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis and Q&A API over HTTP",
	Example: `  salesloom serve
  salesloom serve --addr 127.0.0.1:9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.ServeAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		gov := newGovernor()
		asst, err := newAssistant(gov)
		if err != nil {
			return err
		}
		h := api.NewHandler(asst, gov, loadOptions(), logger)
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewRouter(h, cfg.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx := background(cmd.Context())
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe() }()
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Listening on http://%s\n", addr)
		logger.Info("server started", zap.String("addr", addr))

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides serve_addr)")
}
