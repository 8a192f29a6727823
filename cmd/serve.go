package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "propertyhub/docs"
	"propertyhub/internal/caching"
	"propertyhub/internal/handlers"
	"propertyhub/internal/jobs"
	"propertyhub/internal/middleware"
	"propertyhub/internal/repositories"
	"propertyhub/internal/services"
	"propertyhub/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(ctx context.Context, c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Prepare the database and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(ctx, c)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port")
	_ = c.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(ctx context.Context, c *cli) error {
	cfg, log := c.cfg, c.log
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx, cfg, log)
	if err != nil {
		log.Error("Database lifecycle failed, refusing to start", zap.Error(err))
		return err
	}
	defer rt.Close()

	jwtConfig, stopJWKS, err := middleware.JWTConfig(ctx, middleware.AuthOptions{
		JWTSecret: cfg.Auth.JWTSecret,
		JWKSURL:   cfg.Auth.JWKSURL,
	}, log)
	if err != nil {
		return err
	}
	defer stopJWKS()

	var cache caching.CacheService
	if cfg.Redis.Addr != "" {
		cache = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SessionTTL, log)
	}

	registry := services.NewRegistry(rt.store, cache, services.EntityOptions{SoftDelete: cfg.Database.SoftDelete}, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.RequestID())
	e.Use(logger.Middleware(log))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(rt.metrics.Middleware())

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	handlers.RegisterRoutes(e, handlers.Dependencies{
		Store:    rt.store,
		Cache:    cache,
		Backups:  rt.backups,
		Services: registry,
		Version:  version,
	}, []echo.MiddlewareFunc{
		middleware.VersionHeader("v1", version),
		echojwt.WithConfig(jwtConfig),
		middleware.Authenticate(registry.Users, registry.Contexts, log),
	}, log)

	scheduler, err := jobs.NewScheduler(rt.backups, repositories.NewInvoiceSweepRepo(rt.store), rt.metrics, jobs.Options{
		BackupInterval:       cfg.Jobs.BackupInterval,
		OverdueSweepInterval: cfg.Jobs.OverdueSweepInterval,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create job scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("Server starting", zap.String("addr", addr), zap.String("version", version), zap.String("driver", rt.store.Driver()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		if stopErr := scheduler.Stop(); err == nil {
			err = stopErr
		}
		return err
	})
	return g.Wait()
}
