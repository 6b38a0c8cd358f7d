package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"newswatch/internal/cache"
	"newswatch/internal/config"
	"newswatch/internal/content"
	cronrunner "newswatch/internal/cron"
	"newswatch/internal/db"
	"newswatch/internal/dispatch"
	"newswatch/internal/engine"
	"newswatch/internal/handler"
	"newswatch/internal/logger"
	"newswatch/internal/metric"
	"newswatch/internal/metrics"
	"newswatch/internal/models"
	gormrepository "newswatch/internal/repository/gorm"
	"newswatch/internal/selection"
	"newswatch/internal/service"
	"newswatch/internal/summarizer"

	_ "newswatch/docs"
)

func main() {
	cfgPath := os.Getenv("NW_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("NW_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
	}

	metrics.Init()

	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(context.Background()); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	hub := content.NewHub()
	source := &content.Store{
		Repo:    store,
		Logger:  logger,
		MaxScan: cfg.Engine.MaxScan,
	}

	var metricCache cache.Store
	if strings.EqualFold(cfg.Cache.Backend, "redis") {
		metricCache = cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	} else {
		metricCache = cache.NewMemory()
	}
	sampler := &metric.Sampler{
		Source:   source,
		Cache:    metricCache,
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	}

	selector := &selection.Resolver{Logger: logger, Limit: cfg.Engine.SelectionLimit}
	if cfg.Summarizer.BaseURL != "" {
		selector.Summarizer = &summarizer.Client{
			BaseURL: cfg.Summarizer.BaseURL,
			APIKey:  cfg.Summarizer.APIKey,
			HTTP:    &http.Client{Timeout: cfg.Summarizer.Timeout},
		}
	}

	sendHTTP := &http.Client{Timeout: cfg.Dispatch.Timeout}
	dispatcher := &dispatch.Dispatcher{
		Repo: store,
		Transports: dispatch.Registry{
			models.ContactPointTypeWebhook:  dispatch.WebhookTransport{HTTP: sendHTTP},
			models.ContactPointTypeTelegram: dispatch.TelegramTransport{HTTP: sendHTTP},
			models.ContactPointTypeSlack:    dispatch.SlackTransport{HTTP: sendHTTP},
		},
		Logger:      logger,
		Hub:         hub,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		BaseBackoff: cfg.Dispatch.BaseBackoff,
		MaxBackoff:  cfg.Dispatch.MaxBackoff,
		Timeout:     cfg.Dispatch.Timeout,
		LeaseTTL:    cfg.Dispatch.LeaseTTL,
		ResumeBatch: cfg.Dispatch.ResumeBatch,
		Reveal:      service.RevealSettingValue,
	}

	eng := &engine.Engine{
		Repo:              store,
		Source:            source,
		Sampler:           sampler,
		Selector:          selector,
		Dispatcher:        dispatcher,
		Hub:               hub,
		Flags:             settingsSvc,
		Logger:            logger,
		TickInterval:      cfg.Engine.TickInterval,
		Workers:           cfg.Engine.Workers,
		ImmediateDebounce: cfg.Engine.ImmediateDebounce,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(handler.RequireBearer(cfg.Auth.BearerToken))
	router.Use(handler.WriteAuditMiddleware(logger))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(router)

	statsSvc := &service.TriggerStatsService{Repo: store}
	v2Signals := &handler.V2SignalHandler{Repo: store, Stats: statsSvc}
	v2Signals.Register(router)
	v2Notifications := &handler.V2NotificationHandler{Repo: store}
	v2Notifications.Register(router)
	v2Articles := &handler.V2ArticleHandler{Repo: store, Hub: hub}
	v2Articles.Register(router)
	v2Points := &handler.V2ContactPointHandler{Repo: store}
	v2Points.Register(router)
	v2Settings := &handler.V2SystemSettingsHandler{Repo: store, Settings: settingsSvc}
	v2Settings.Register(router)
	v2Stats := &handler.V2StatsHandler{Stats: statsSvc}
	v2Stats.Register(router)
	v2Stream := &handler.V2StreamHandler{Hub: hub, Logger: logger}
	v2Stream.Register(router)

	router.GET("/metrics", metrics.Handler())
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweep := &service.SweepService{Dispatcher: dispatcher, Logger: logger, Flags: settingsSvc}
	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		if _, err := cronRunner.Add(cfg.Cron.Sweep, func(ctx context.Context) {
			if err := sweep.RunOnce(ctx); err != nil {
				logger.Warn("resume sweep failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register resume sweep failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	// Recover leases orphaned by an earlier crash before the first cron tick.
	go func() {
		if err := sweep.RunOnce(ctx); err != nil {
			logger.Warn("startup resume sweep failed", zap.Error(err))
		}
	}()

	go func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("signal engine stopped", zap.Error(err))
		}
	}()

	retention := &service.RetentionService{
		Repo:             store,
		Logger:           logger,
		Flags:            settingsSvc,
		ArticleDays:      cfg.Retention.ArticleDays,
		NotificationDays: cfg.Retention.NotificationDays,
	}
	go func() {
		if err := retention.Run(ctx, cfg.Retention.Interval); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("retention service stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
