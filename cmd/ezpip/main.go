package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/KOppong41/ez-pip-razor-sub001/docs"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/config"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/db"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/handler"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/logger"
	gormrepository "github.com/KOppong41/ez-pip-razor-sub001/internal/repository/gorm"
	"github.com/KOppong41/ez-pip-razor-sub001/internal/service"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	var envOnly bool

	load := func() (config.Config, *zap.Logger, error) {
		path := cfgPath
		if path == "" {
			path = os.Getenv("EZ_CONFIG")
		}
		if path == "" {
			path = "config/config.yaml"
		}
		only := envOnly
		if raw := os.Getenv("EZ_ENV_ONLY"); raw != "" {
			only = only || strings.EqualFold(raw, "true") || raw == "1"
		}
		cfg, err := config.Load(path, only)
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("load config: %w", err)
		}
		log, err := logger.New(cfg.Log)
		if err != nil {
			return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
		}
		return cfg, log, nil
	}

	root := &cobra.Command{
		Use:           "ezpip",
		Short:         "Signal to order trading pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default $EZ_CONFIG or config/config.yaml)")
	root.PersistentFlags().BoolVar(&envOnly, "env-only", false, "skip the config file and read EZ_* variables only")

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newMigrateCmd(load))
	root.AddCommand(newTaskCmd(load))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

type loader func() (config.Config, *zap.Logger, error)

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the task scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			return serve(cfg, log)
		},
	}
}

func serve(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(handler.WriteAudit(log))

	health := &handler.HealthHandler{DB: a.db.Gorm}
	if a.redis != nil {
		health.Lease = a.redis
	}
	if a.stream != nil {
		health.Stream = a.stream
	}
	health.Register(engine)
	(&handler.BotHandler{Repo: a.store, Guard: a.guard, Decision: a.decisions}).Register(engine)
	(&handler.SignalHandler{Repo: a.store, Decision: a.decisions}).Register(engine)
	(&handler.OrderHandler{Repo: a.store, Orders: a.orders}).Register(engine)
	(&handler.ReferenceHandler{Repo: a.store, Assets: a.assets}).Register(engine)
	(&handler.TaskHandler{Tasks: a.scheduler, Switches: a.switches}).Register(engine)

	if cfg.Server.Swagger {
		docs.SwaggerInfo.Host = ""
		engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	if a.stream != nil {
		go func() {
			if err := a.stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("price stream stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Cron.Enabled {
		a.scheduler.Start()
		defer a.scheduler.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("server error", zap.Error(serveErr))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return serveErr
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed feature switches and trading profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			dbConn, err := db.Open(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close(dbConn)
			if err := db.AutoMigrate(dbConn); err != nil {
				return fmt.Errorf("auto-migrate: %w", err)
			}
			switches := &service.SystemSettingsService{Repo: gormrepository.New(dbConn.Gorm)}
			if err := switches.EnsureDefaultSwitches(cmd.Context()); err != nil {
				return fmt.Errorf("seed feature switches: %w", err)
			}
			if err := switches.EnsureDefaultProfiles(cmd.Context()); err != nil {
				return fmt.Errorf("seed trading profiles: %w", err)
			}
			log.Info("migration complete", zap.String("driver", dbConn.Driver))
			return nil
		},
	}
}

func newTaskCmd(load loader) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "task [NAME]",
		Short: "Run one scheduled task immediately and print its result",
		Long: `Run one task of the scheduler catalog once, regardless of its feature switch.
Example: ezpip task reconcile`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if list || len(args) == 0 {
				return enc.Encode(a.scheduler.List(ctx))
			}
			res, err := a.scheduler.RunNow(ctx, args[0])
			if err != nil {
				return err
			}
			return enc.Encode(res)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the task catalog instead of running")
	return cmd
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
