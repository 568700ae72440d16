package httpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStopsOnContextAndRunsCleanups(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	var order []string
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, srv, logger,
			func(context.Context) error { order = append(order, "janitor"); return nil },
			func(context.Context) error { order = append(order, "views"); return nil },
		)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Equal(t, []string{"janitor", "views"}, order)
}

func TestRunReportsCleanupErrors(t *testing.T) {
	srv := New(0, http.NotFoundHandler())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("drain failed")
	err := Run(ctx, srv, logger, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestNewAppliesTimeouts(t *testing.T) {
	srv := New(8080, http.NotFoundHandler())
	assert.Equal(t, ":8080", srv.Addr())
	assert.Equal(t, 30*time.Second, srv.inner.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.inner.ReadHeaderTimeout)
}
