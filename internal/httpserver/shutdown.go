package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// CleanupFunc releases a resource once the server stopped accepting requests.
type CleanupFunc func(ctx context.Context) error

// Run serves until ctx is canceled, SIGINT/SIGTERM arrives or the listener
// fails. It then drains in-flight requests and runs cleanups in order, all
// within ShutdownTimeout.
func Run(ctx context.Context, srv *Server, logger *slog.Logger, cleanups ...CleanupFunc) error {
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	errs := []error{runErr}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	for _, cleanup := range cleanups {
		if err := cleanup(shutdownCtx); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
