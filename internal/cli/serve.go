package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/venus-kyc/caseflow/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow over HTTP",
	Long: `Starts the JSON API. Requests name their user in the X-Actor header.
Prometheus metrics are served on /metrics. Pending screenings are
refreshed every screening.sweep_interval.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := mustApp()
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	handler := api.New(a.engine, api.Options{
		Screening: a.screening,
		Risk:      a.risk,
		Dossier:   a.dossier(),
		Metrics:   a.metrics.Handler(),
		Logger:    a.log,
	}).Routes()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval, err := a.cfg.Screening.Interval()
	if err != nil {
		return err
	}
	if interval > 0 {
		go a.sweeper().Run(ctx, interval)
		a.log.Info("screening sweep enabled", "interval", interval)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
