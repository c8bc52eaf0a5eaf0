package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sector-view-api/internal/cache"
	"sector-view-api/internal/config"
	"sector-view-api/internal/discovery"
	"sector-view-api/internal/providers/yahoo"
	"sector-view-api/internal/refresh"
	"sector-view-api/internal/storage"
	"sector-view-api/internal/ws"
)

// universeSource adapts the discovery fetchers to the refresh service
type universeSource struct {
	client     *http.Client
	sp500URL   string
	russellURL string
}

func (u *universeSource) SP500(ctx context.Context) ([]discovery.Constituent, error) {
	return discovery.FetchSP500(ctx, u.client, u.sp500URL)
}

func (u *universeSource) Russell2000(ctx context.Context) ([]discovery.Constituent, error) {
	return discovery.FetchRussell2000(ctx, u.client, u.russellURL)
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("configuration invalid")
	}

	log := logrus.New()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	entry := log.WithField("service", "sector-view-api")

	store, err := storage.New(storage.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		entry.WithError(err).Fatal("database initialization failed")
	}
	defer store.Close()

	// Redis is optional: without it, summaries are computed per request
	var summaryCache refresh.SummaryCache
	redisCache, err := cache.NewSummaryCache(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, cfg.Redis.SummaryTTL)
	if err != nil {
		entry.WithError(err).Warn("redis unavailable, summary caching disabled")
	} else {
		summaryCache = redisCache
		defer redisCache.Close()
	}

	quotes := yahoo.NewClient(&yahoo.Config{
		ChartBaseURL: cfg.Yahoo.ChartBaseURL,
		QuoteBaseURL: cfg.Yahoo.QuoteBaseURL,
		AuthBaseURL:  cfg.Yahoo.AuthBaseURL,
		Timeout:      cfg.Yahoo.Timeout,
		RateLimit:    cfg.Yahoo.RateLimit,
	})

	universes := &universeSource{
		client:     &http.Client{Timeout: cfg.Discovery.Timeout},
		sp500URL:   cfg.Discovery.SP500URL,
		russellURL: cfg.Discovery.RussellURL,
	}

	hub := ws.NewHub(entry.WithField("component", "ws"))
	service := refresh.NewService(store, quotes, universes, summaryCache, hub, entry.WithField("component", "refresh"))
	defer service.Stop()

	if cfg.Scheduler.Enabled {
		if err := service.StartScheduler(cfg.Scheduler.CronSpec); err != nil {
			entry.WithError(err).Fatal("scheduler initialization failed")
		}
		entry.WithField("cron", cfg.Scheduler.CronSpec).Info("scheduled refresh enabled")
	}

	srv := newServer(cfg, service, store, hub, entry)

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		entry.WithFields(logrus.Fields{
			"addr":        addr,
			"environment": cfg.Environment,
		}).Info("server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			entry.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	entry.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		entry.WithError(err).Error("forced shutdown")
	}

	entry.Info("server exited")
}
