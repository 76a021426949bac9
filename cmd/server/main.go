package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"cracksql/internal/bootstrap"
	"cracksql/internal/config"
	"cracksql/internal/controller"
	"cracksql/internal/middleware"
	"cracksql/internal/security"
)

func main() {
	cfg, err := config.Load(os.Getenv("CRACKSQL_CONFIG"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := bootstrap.Build(cfg, log, bootstrap.Options{})
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize")
	}
	defer app.Close()

	middleware.InitMetrics(nil)

	routes := controller.Routes{
		Health:      controller.NewHealthController(app.DB, bootstrap.Version, app.Manager.SupportedDialects()),
		Translation: controller.NewTranslationController(app.Translations),
	}
	if app.DataSources != nil {
		routes.DataSources = controller.NewDataSourceController(app.DataSources)
		routes.Database = controller.NewDatabaseController(app.Pool)
	}
	if cfg.Security.EnableAuth {
		jwtManager := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTExpiration)
		routes.Protect = append(routes.Protect, security.NewAuthMiddleware(jwtManager).RequireAuth())
	}
	if cfg.Security.EnableRateLimit {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPM:             cfg.Security.RateLimitPerMinute,
			Burst:           cfg.Security.RateLimitBurst,
			CleanupInterval: 5 * time.Minute,
		})
		defer limiter.Close()
		routes.Protect = append(routes.Protect, limiter.RateLimit())
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.PrometheusMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	routes.Register(router)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     srv.Addr,
			"database": cfg.Database.Enabled,
			"execute":  cfg.Engine.Execute,
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Graceful shutdown failed")
	}
}
