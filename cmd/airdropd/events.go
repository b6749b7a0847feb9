package main

import (
	"context"
	"net/http"

	"airdrop/internal/daemon"
)

// serveEventbus mounts the daemon's eventbus router (websocket event feed
// at /events, Prometheus scrape at /metrics) and serves it until ctx is
// cancelled.
func serveEventbus(ctx context.Context, addr string, app *daemon.App) error {
	srv := &http.Server{Addr: addr, Handler: app.Bus.Router()}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
