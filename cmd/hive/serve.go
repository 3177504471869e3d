package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hive/internal/httpapi"
	"github.com/ShayCichocki/hive/internal/logging"
	"github.com/ShayCichocki/hive/internal/version"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the board over HTTP",
	Long: `Run the coordinator headless and serve the board over HTTP.

Endpoints:
  GET    /version
  GET    /api/board
  GET    /api/events                      server-sent board events
  POST   /api/tasks                       {"title": "...", "description": "..."}
  GET    /api/tasks/{id}
  DELETE /api/tasks/{id}
  GET    /api/tasks/{id}/diff
  GET    /api/tasks/{id}/runs
  GET    /api/tasks/{id}/runs/{run}/log?tail=N
  POST   /api/tasks/{id}/assign           {"agent": "..."}
  POST   /api/tasks/{id}/stop
  POST   /api/tasks/{id}/move             {"direction": "forward"|"backward"}
  POST   /api/tasks/{id}/merge
  POST   /api/tasks/{id}/pr

The address defaults to server.addr in the config (127.0.0.1:7420).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return withHive(ctx, func(h *hive) error {
			addr := h.cfg.Server.Addr
			if serveAddr != "" {
				addr = serveAddr
			}
			srv := httpapi.New(h.coord, httpapi.Options{
				Addr:      addr,
				Version:   version.String(),
				Heartbeat: 15 * time.Second,
				Logger:    logging.Component(h.log, "http"),
			})
			return srv.ListenAndServe(ctx)
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}
