package main

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/internal/alert"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/assets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/config"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/connector"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/db"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/decision"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/lease"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/marketdata"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/orchestrator"
	gormrepository "github.com/KOppong41/ez-pip-razor-sub001/internal/repository/gorm"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/risk"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/scheduler"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/secrets"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/service"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/strategy"
)

// app is the wired pipeline shared by serve and task.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	db       *db.DB
	store    *gormrepository.Store
	switches *service.SystemSettingsService
	board    *marketdata.StaticFeed
	stream   *marketdata.BinanceStream
	locker   lease.Locker
	redis    *lease.RedisLocker

	assets    *assets.Resolver
	guard     *risk.Guard
	registry  *connector.Registry
	orders    *orchestrator.Orchestrator
	decisions *decision.Engine
	runner    *strategy.Runner
	positions *service.PositionManager
	scheduler *scheduler.Scheduler
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(dbConn); err != nil {
			_ = db.Close(dbConn)
			return nil, err
		}
	}

	a := &app{cfg: cfg, logger: logger, db: dbConn}
	a.store = gormrepository.New(dbConn.Gorm)
	a.switches = &service.SystemSettingsService{Repo: a.store}
	if err := a.switches.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default feature switches failed", zap.Error(err))
	}
	if err := a.switches.EnsureDefaultProfiles(ctx); err != nil {
		logger.Warn("init default trading profiles failed", zap.Error(err))
	}

	a.board = marketdata.NewStaticFeed()
	if cfg.PriceFeed.Enabled {
		a.stream = &marketdata.BinanceStream{
			Logger:       logger,
			BaseURL:      cfg.PriceFeed.URL,
			Symbols:      cfg.PriceFeed.Symbols,
			Board:        a.board,
			ReconnectMin: cfg.PriceFeed.ReconnectMin,
			ReconnectMax: cfg.PriceFeed.ReconnectMax,
		}
	}

	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		a.redis = lease.NewRedisLocker(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.locker = a.redis
	} else {
		logger.Info("redis not configured, using in-process leases")
		a.locker = lease.NewMemoryLocker()
	}

	notifiers := alert.Multi{alert.LogNotifier{Logger: logger}}
	if url := strings.TrimSpace(cfg.Alert.WebhookURL); url != "" {
		notifiers = append(notifiers, alert.NewWebhook(url, cfg.Alert.Token, cfg.Alert.Timeout, logger))
	}

	a.assets = assets.NewResolver(a.store, cfg.Executor.AssetCacheTTL, logger)
	a.guard = risk.NewGuard(a.store, logger)
	a.registry = connector.NewRegistry(secrets.FromEnv(), connector.NewPaper(a.board, logger), connector.VenueOptions{
		BinanceBaseURL:         cfg.Connectors.Binance.BaseURL,
		BinancePlaceProtective: cfg.Connectors.Binance.PlaceProtective,
		AlpacaBaseURL:          cfg.Connectors.Alpaca.BaseURL,
		HTTPTimeout:            cfg.Connectors.HTTPTimeout,
	}, logger)
	candles := a.registry.Candles()

	a.orders = &orchestrator.Orchestrator{
		Repo:           a.store,
		Connectors:     a.registry,
		Assets:         a.assets,
		Guard:          a.guard,
		Locker:         a.locker,
		Feed:           a.board,
		Alerts:         notifiers,
		Logger:         logger,
		LeaseTTL:       cfg.Executor.LeaseTTL,
		LeaseWait:      cfg.Executor.LeaseWait,
		ReconcileGrace: cfg.Executor.ReconcileGrace,
	}
	a.decisions = &decision.Engine{
		Repo:         a.store,
		Guard:        a.guard,
		Assets:       a.assets,
		Executor:     a.orders,
		Locker:       a.locker,
		Logger:       logger,
		PendingLimit: cfg.Executor.PendingLimit,
		LeaseTTL:     cfg.Executor.LeaseTTL,
		LeaseWait:    cfg.Executor.LeaseWait,
	}
	a.runner = &strategy.Runner{
		Repo:    a.store,
		Candles: candles,
		Assets:  a.assets,
		Logger:  logger,
		Bars:    cfg.Executor.CandleBars,
	}
	a.positions = &service.PositionManager{
		Repo:    a.store,
		Closer:  a.orders,
		Feed:    a.board,
		Alerts:  notifiers,
		Logger:  logger,
		Candles: candles,
	}

	a.scheduler = scheduler.New(logger, ctx)
	a.scheduler.Switches = a.switches
	a.scheduler.Locker = a.locker
	a.scheduler.LeaseTTL = cfg.Cron.LeaseTTL
	tasks := scheduler.Build(taskSpecs(cfg.Cron.Tasks), scheduler.Deps{
		Decisions:  a.decisions,
		Strategies: a.runner,
		Orders:     a.orders,
		Positions:  a.positions,
	})
	if err := a.scheduler.RegisterAll(tasks); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// taskSpecs overlays configured specs on the defaults. Keys are task names.
func taskSpecs(overrides map[string]string) map[string]string {
	specs := scheduler.DefaultSpecs()
	for name, spec := range overrides {
		specs[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(spec)
	}
	return specs
}

func (a *app) Close() {
	if a == nil {
		return
	}
	if a.stream != nil {
		_ = a.stream.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	_ = db.Close(a.db)
}
