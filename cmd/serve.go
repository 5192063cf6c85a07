package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/satstitch/internal/server"
	"github.com/kiesman99/satstitch/internal/stitcher"
	"github.com/kiesman99/satstitch/pkg/tile"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the stitching API",
	Long: `Start an HTTP server that provides a REST API for tile stitching.

Endpoints (under /api/v1):
  GET  /health   service health
  GET  /grid     tile range and raster size of a bounding box
  POST /stitch   download and stitch a bounding box, returns the image

Examples:
  # Start server on default port 8080
  satstitch serve

  # Start server with custom bind address
  satstitch serve --bind 0.0.0.0 --port 8080 --timeout 5m`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 2*time.Minute, "request timeout, including tile downloads")
	serveCmd.Flags().Int("workers", 0, "tile rows downloaded concurrently per request (default: number of CPUs)")

	bindFlags(serveCmd, map[string]string{
		"server.bind":    "bind",
		"server.port":    "port",
		"server.timeout": "timeout",
		"server.workers": "workers",
	})
}

// newHTTPServer builds the API server from the server.* settings in v.
func newHTTPServer(v *viper.Viper, logger *slog.Logger) *http.Server {
	timeout := v.GetDuration("server.timeout")

	apiServer := server.NewServer(Version,
		server.WithLogger(logger),
		server.WithFetcher(tile.NewProcessor(tile.WithTimeout(v.GetDuration("timeout")))),
		server.WithStitcherOptions(stitcher.WithWorkers(v.GetInt("server.workers"))),
	)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", v.GetString("server.bind"), v.GetInt("server.port")),
		Handler:           server.NewRouter(apiServer, timeout),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeout + 10*time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := tile.Logger()
	httpServer := newHTTPServer(viper.GetViper(), logger)
	addr := httpServer.Addr

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting satstitch server on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s%s/health\n", addr, server.BasePath)
	fmt.Fprintf(cmd.ErrOrStderr(), "Grid endpoint: http://%s%s/grid\n", addr, server.BasePath)
	fmt.Fprintf(cmd.ErrOrStderr(), "Stitch endpoint: http://%s%s/stitch\n", addr, server.BasePath)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
