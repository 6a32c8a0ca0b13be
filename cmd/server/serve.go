package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/soaringjerry/Canvass/internal/api"
	"github.com/soaringjerry/Canvass/internal/cache"
	"github.com/soaringjerry/Canvass/internal/middleware"
	"github.com/soaringjerry/Canvass/internal/services"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, f *rootFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, f)
	if err != nil {
		return err
	}
	defer a.close()

	secret, dev := a.cfg.Secret()
	if dev {
		a.log.Warn("CANVASS_JWT_SECRET not set, using the development secret")
	}
	auth := middleware.NewAuth(secret)

	var summaries services.SummaryCache
	if a.cfg.Redis.Addr != "" {
		client := cache.NewClient(cache.Options{Addr: a.cfg.Redis.Addr, Password: a.cfg.Redis.Password, DB: a.cfg.Redis.DB})
		defer client.Close()
		if err := cache.Ping(ctx, client); err != nil {
			a.log.Warn("redis unavailable, summaries will not be cached until it recovers",
				zap.String("addr", a.cfg.Redis.Addr), zap.Error(err))
		}
		summaries = cache.NewSummaryCache(client, a.cfg.SummaryTTL, a.log)
	}

	svc := api.Services{
		Auth:      services.NewAuthService(a.store, auth.SignToken, a.cfg.TokenTTL),
		Surveys:   services.NewSurveyService(a.store, a.log.Named("surveys")),
		Responses: services.NewResponseService(a.store, a.log.Named("responses")),
		Analytics: services.NewAnalyticsService(a.store, summaries, a.log.Named("analytics")),
		Export:    services.NewExportService(a.store, a.log.Named("export")),
		Feed:      services.NewFeedService(a.store),
		Admin:     services.NewAdminService(a.store),
	}
	router := api.NewRouter(svc, api.Options{
		Logger:    a.log,
		Ping:      a.store.Ping,
		Commit:    a.cfg.Commit,
		BuildTime: a.cfg.BuildTime,
	})

	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           router.Handler(auth, a.cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("canvass listening",
			zap.String("addr", a.cfg.Addr),
			zap.String("db_driver", a.cfg.Database.Driver),
			zap.Bool("summary_cache", summaries != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
