package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	httptransport "github.com/example/visitor-desk/internal/http"
	"github.com/example/visitor-desk/internal/logging"
)

func newKioskCommand(d *desk) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kiosk",
		Short: "Run the visitor check-in kiosk",
	}
	cmd.AddCommand(newKioskServeCommand(d))
	return cmd
}

func newKioskServeCommand(d *desk) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan and check-out endpoints for kiosk scanners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := d.auth.Whoami(ctx); err != nil {
				return err
			}
			logger := logging.New(os.Stdout, logging.FormatJSON, d.cfg.LogLevel)
			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           kioskHandler(d, logger),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			return serve(ctx, server, logger)
		},
	}
	cmd.Flags().IntVar(&port, "port", d.cfg.KioskPort, "listen port")
	return cmd
}

func kioskHandler(d *desk, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Kiosk:   httptransport.NewKioskHandler(d.visitors, d.metrics, logger),
		Metrics: d.metrics,
		Limiter: httptransport.NewClientRateLimiter(d.cfg.ScanRatePerMinute),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestID,
			httptransport.RequestLogger(logger),
		},
	})
}

// serve runs server until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown kiosk server", "error", err)
		}
	}()

	logger.Info("kiosk listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("kiosk server encountered error", "error", err)
		return err
	}
	return nil
}
