package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jengzang/gpx-tracks-etl/internal/api"
	"github.com/jengzang/gpx-tracks-etl/internal/config"
	"github.com/jengzang/gpx-tracks-etl/internal/handler"
	"github.com/jengzang/gpx-tracks-etl/internal/service"
)

// listenFn is replaced in tests
var listenFn = func(srv *http.Server) error {
	return srv.ListenAndServe()
}

func runServe(ctx context.Context, cfg *config.Config) error {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	p, err := b.pipeline(cfg, "")
	if err != nil {
		return err
	}

	var recent handler.RecentLister
	if b.notifier != nil {
		recent = b.notifier
	}
	tracks := handler.NewTrackHandler(service.NewTrackService(b.repo), p, recent, cfg.MaxUploadBytes)

	// 初始化路由
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           api.SetupRouter(cfg, tracks),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[gpxetl] server starting on %s (driver %s)", cfg.Port, cfg.DBDriver)
		errCh <- listenFn(srv)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Printf("[gpxetl] shutting down")
	return srv.Shutdown(shutdownCtx)
}
