package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callastar_back_end/internal/cache"
	"callastar_back_end/internal/config"
	"callastar_back_end/internal/database"
	"callastar_back_end/internal/events"
	"callastar_back_end/internal/handlers"
	"callastar_back_end/internal/ledger"
	"callastar_back_end/internal/middleware"
	"callastar_back_end/internal/payments"
	"callastar_back_end/internal/routes"
	"callastar_back_end/internal/scheduler"
	"callastar_back_end/internal/services"
	"callastar_back_end/internal/store"
	"callastar_back_end/internal/utils"
	"callastar_back_end/internal/video"

	"github.com/gin-gonic/gin"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	config.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("❌ Configuration invalide", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres est la seule dépendance obligatoire.
	pool, err := database.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("❌ Postgres indisponible", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Error("❌ Migration échouée", "error", err)
		os.Exit(1)
	}
	repo := store.NewPostgresRepository(pool)

	sinks := []events.Sink{events.NewLogSink(logger)}

	var redisCache *cache.Cache
	if client, err := database.ConnectRedis(ctx, cfg, logger); err != nil {
		logger.Warn("⚠️ Redis désactivé", "error", err)
	} else {
		defer client.Close()
		redisCache = cache.New(client)
		sinks = append(sinks, cache.NewInvalidationSink(redisCache))
	}

	if session, err := database.ConnectScylla(cfg, logger); err != nil {
		logger.Warn("⚠️ Journal d'audit Scylla désactivé", "error", err)
	} else {
		defer session.Close()
		sinks = append(sinks, events.NewScyllaSink(session))
	}

	var elastic *events.ElasticSink
	if client, err := database.ConnectElastic(cfg, logger); err != nil {
		logger.Warn("⚠️ Indexation Elasticsearch désactivée", "error", err)
	} else {
		elastic = events.NewElasticSink(client, cfg.ElasticIndex)
		sinks = append(sinks, elastic)
	}

	if cfg.RabbitMQURL != "" {
		if rabbit, err := events.NewRabbitSink(cfg.RabbitMQURL, logger); err != nil {
			logger.Warn("⚠️ Publication RabbitMQ désactivée", "error", err)
		} else {
			defer rabbit.Close()
			sinks = append(sinks, rabbit)
		}
	}

	var objects *services.ObjectStore
	if client, err := database.ConnectMinIO(ctx, cfg, logger); err != nil {
		logger.Warn("⚠️ Stockage objet désactivé", "error", err)
	} else {
		objects = services.NewObjectStore(client, cfg.MinIOBucket)
	}

	bus := events.NewBus(logger, cfg.SideEffectTimeout, sinks...)

	deps := ledger.Deps{
		Repo:    repo,
		Emitter: bus,
		Mailer: utils.NewSMTPMailer(utils.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, logger),
		Logger: logger,
	}
	// Les collaborateurs optionnels restent des interfaces nil lorsqu'ils sont absents.
	if cfg.StripeSecretKey != "" {
		deps.Processor = payments.NewStripeProcessor(cfg.StripeSecretKey)
	} else {
		logger.Warn("⚠️ STRIPE_SECRET_KEY absent : transferts et remboursements indisponibles")
	}
	if cfg.DailyAPIKey != "" {
		deps.Rooms = video.NewDailyClient(cfg.DailyAPIURL, cfg.DailyAPIKey)
	} else {
		logger.Warn("⚠️ DAILY_API_KEY absent : salles vidéo non créées")
	}
	if redisCache != nil {
		deps.Deduper = redisCache
	}
	if objects != nil {
		deps.Archiver = objects
		if cfg.StatementPDFEnabled {
			deps.Statements = services.NewStatementGenerator(objects, logger)
		}
	}

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.HoldPeriod = cfg.HoldPeriod()
	ledgerCfg.CreatorShare = cfg.Amounts.CreatorShare
	ledgerCfg.FeeTolerance = cfg.Amounts.FeeTolerance
	ledgerCfg.DebtBlockThreshold = cfg.Amounts.DebtBlockThreshold
	ledgerCfg.ReversalWindow = cfg.ReversalWindow()
	ledgerCfg.MinPayoutAmount = cfg.Amounts.MinPayoutAmount
	ledgerCfg.Currency = cfg.Currency
	ledgerCfg.AutoApprove = cfg.AutomaticPayouts()
	ledgerCfg.SideEffectTimeout = cfg.SideEffectTimeout
	ledgerCfg.AppURL = cfg.AppURL

	svc := ledger.NewService(deps, ledgerCfg)

	sched := scheduler.NewScheduler(scheduler.NewJobs(svc, logger, 0), logger, scheduler.Config{
		ReleaseSchedule:  cfg.ReleaseSweepSchedule,
		PayoutSchedule:   cfg.PayoutSweepSchedule,
		AutomaticPayouts: cfg.AutomaticPayouts(),
	})
	if err := sched.Register(); err != nil {
		logger.Error("❌ Planificateur invalide", "error", err)
		os.Exit(1)
	}
	sched.Start()

	hDeps := handlers.Deps{
		Ledger:        svc,
		WebhookSecret: cfg.StripeWebhookSecret,
		Logger:        logger,
	}
	opts := routes.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
	}
	if redisCache != nil {
		hDeps.Cache = redisCache
		opts.RateCounter = redisCache
	}
	if elastic != nil {
		hDeps.Searcher = elastic
	}
	if objects != nil {
		hDeps.Statements = objects
	}
	if cfg.JWTSecret == "" {
		logger.Warn("⚠️ JWT_SECRET absent : toutes les routes authentifiées seront refusées")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	routes.RegisterRoutes(r, handlers.New(hDeps), opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("🚀 Serveur Call a Star lancé", "port", cfg.Port, "payout_mode", cfg.PayoutMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ Serveur arrêté", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Arrêt en cours")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Arrêt HTTP incomplet", "error", err)
	}
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("⚠️ Tâches planifiées encore en cours à l'arrêt")
	}
	if err := bus.Close(shutdownCtx); err != nil {
		logger.Warn("⚠️ Événements non diffusés à l'arrêt", "error", err)
	}
	logger.Info("👋 Serveur arrêté")
}
