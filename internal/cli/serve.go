package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revgate/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server exposing the revgate review engine.

Endpoints:
  GET  /health          Health check
  POST /api/review      Review a diff and return the report
  POST /api/parse       Parse a diff into changed files
  GET  /api/analyzers   List the registry
  GET  /api/ws          WebSocket streaming per-analyzer progress`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "address to listen on (default from config, 127.0.0.1)")
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default from config, 6142)")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.lggr.Sync() //nolint:errcheck

	if cmd.Flags().Changed("addr") {
		e.cfg.Serve.Addr, _ = cmd.Flags().GetString("addr")
	}
	if cmd.Flags().Changed("port") {
		e.cfg.Serve.Port, _ = cmd.Flags().GetInt("port")
	}

	eng, c, err := e.newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	listen := fmt.Sprintf("%s:%d", e.cfg.Serve.Addr, e.cfg.Serve.Port)
	srv := api.New(listen, eng, e.lggr)
	return srv.ListenAndServe()
}
