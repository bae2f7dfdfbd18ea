package main

import (
	"context"
	"errors"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskpilot/api/handler"
	"github.com/fastygo/taskpilot/internal/config"
	boltInfra "github.com/fastygo/taskpilot/internal/infrastructure/bolt"
	"github.com/fastygo/taskpilot/internal/infrastructure/monitor"
	"github.com/fastygo/taskpilot/internal/infrastructure/notify"
	"github.com/fastygo/taskpilot/internal/infrastructure/parser"
	pgInfra "github.com/fastygo/taskpilot/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskpilot/internal/infrastructure/redis"
	"github.com/fastygo/taskpilot/internal/infrastructure/telegram"
	"github.com/fastygo/taskpilot/internal/router"
	"github.com/fastygo/taskpilot/internal/services/lifecycle"
	"github.com/fastygo/taskpilot/internal/services/reminder"
	"github.com/fastygo/taskpilot/internal/services/wellness"
	"github.com/fastygo/taskpilot/pkg/clock"
	"github.com/fastygo/taskpilot/pkg/httpcontext"
	"github.com/fastygo/taskpilot/pkg/keylock"
	"github.com/fastygo/taskpilot/pkg/logger"
	"github.com/fastygo/taskpilot/repository"
	boltRepo "github.com/fastygo/taskpilot/repository/bolt"
	memoryRepo "github.com/fastygo/taskpilot/repository/memory"
	"github.com/fastygo/taskpilot/repository/postgres"
	redisRepo "github.com/fastygo/taskpilot/repository/redis"
	"github.com/fastygo/taskpilot/usecase"
	"github.com/fastygo/taskpilot/usecase/assistant"
	"github.com/fastygo/taskpilot/usecase/clarify"
	taskUC "github.com/fastygo/taskpilot/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	loc, err := cfg.Location()
	if err != nil {
		zapLogger.Fatal("invalid timezone", zap.Error(err))
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(appCtx, cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	clk := clock.Real{}
	locks := &keylock.Map{}
	mon := monitor.New(cfg.Monitor.Interval, zapLogger)

	taskRepo, err := openTaskStore(appCtx, cfg, clk, mon, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("task store unavailable", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	clarifications, err := openClarifications(appCtx, cfg, clk, mon, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("clarification cache unavailable", zap.String("driver", cfg.Clarify.Driver), zap.Error(err))
	}

	httpClient := &fasthttp.Client{Name: cfg.AppName}
	notifier := newNotifier(cfg, httpClient, zapLogger)

	scheduler := reminder.New(taskRepo, notifier, clk, locks, reminder.Config{
		SendTimeout: cfg.Reminder.SendTimeout,
		Location:    loc,
	}, zapLogger)
	manager.Register("reminders", scheduler.Stop)

	armed, err := scheduler.Restore(appCtx)
	if err != nil {
		zapLogger.Error("reminder restore failed", zap.Error(err))
	} else {
		zapLogger.Info("reminders restored", zap.Int("armed", armed))
	}

	taskUseCase := taskUC.New(taskRepo, scheduler, locks, taskUC.Config{
		ConflictPolicy: taskUC.ParseConflictPolicy(cfg.Assistant.ConflictPolicy),
		Location:       loc,
	}, zapLogger)

	intentParser := parser.New(parser.Config{
		URL:         cfg.Parser.URL,
		APIKey:      cfg.Parser.APIKey,
		Model:       cfg.Parser.Model,
		MaxTokens:   cfg.Parser.MaxTokens,
		Temperature: cfg.Parser.Temperature,
		Timeout:     cfg.Parser.Timeout,
		Location:    loc,
	}, httpClient, clk, zapLogger)

	assistantUseCase := assistant.New(
		taskUseCase,
		clarify.NewResolver(clk, loc),
		clarifications,
		intentParser,
		assistant.Config{Location: loc},
		zapLogger,
	)

	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	if cfg.Wellness.Enabled {
		policy := wellness.Policy{
			Interval:           cfg.Wellness.Interval,
			GracePeriod:        cfg.Wellness.GracePeriod,
			ImmediateKeywords:  cfg.Wellness.ImmediateKeywords,
			RequireLowPriority: cfg.Wellness.RequireLowPriority,
		}
		if cfg.Wellness.NotifyPrimary {
			policy.NotifyUserID = cfg.Assistant.PrimaryUserID
		}
		sweeper := wellness.New(taskRepo, scheduler, notifier, mon, clk, locks, policy, zapLogger)
		sweeper.Start()
		manager.Register("wellness", func(ctx context.Context) error {
			sweeper.Stop(ctx)
			return nil
		})
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Message: apiHandler.NewMessageHandler(assistantUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, scheduler, ctxAdapter, zapLogger),
	}

	server := &fasthttp.Server{
		Handler:      router.New(handlers, zapLogger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Go("http_server", func(ctx context.Context) error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	if err := manager.Wait(); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openTaskStore connects the configured task store and registers its health check and
// shutdown hook.
func openTaskStore(
	ctx context.Context,
	cfg *config.Config,
	clk clock.Clock,
	mon *monitor.Monitor,
	manager *lifecycle.Manager,
	zapLogger *zap.Logger,
) (repository.TaskRepository, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
			return nil, err
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			return nil, err
		}
		mon.Register("postgres", true, pgInfra.Check(pool))
		manager.Register("postgres", func(ctx context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		return postgres.NewTaskRepository(pool, clk), nil

	case config.StoreDriverBolt:
		db, err := boltInfra.Open(cfg.Bolt.Path, cfg.Bolt.Timeout, zapLogger)
		if err != nil {
			return nil, err
		}
		mon.Register("bolt", true, func(context.Context) error {
			return boltInfra.Ping(db)
		})
		manager.Register("bolt", func(ctx context.Context) error {
			return db.Close()
		})
		return boltRepo.NewTaskRepository(db, clk), nil

	case config.StoreDriverMemory:
		zapLogger.Warn("using in-memory task store; tasks are lost on restart")
		return memoryRepo.NewTaskRepository(clk), nil
	}
	return nil, errors.New("unknown store driver " + cfg.Store.Driver)
}

func openClarifications(
	ctx context.Context,
	cfg *config.Config,
	clk clock.Clock,
	mon *monitor.Monitor,
	manager *lifecycle.Manager,
	zapLogger *zap.Logger,
) (repository.ClarificationRepository, error) {
	if cfg.Clarify.Driver != config.CacheDriverRedis {
		return memoryRepo.NewClarificationCache(cfg.Clarify.Capacity, cfg.Clarify.TTL, clk), nil
	}
	client, err := redisInfra.NewClient(ctx, cfg.Redis, zapLogger)
	if err != nil {
		return nil, err
	}
	mon.Register("redis", false, func(ctx context.Context) error {
		return redisInfra.Ping(ctx, client)
	})
	manager.Register("redis", func(ctx context.Context) error {
		return client.Close()
	})
	return redisRepo.NewClarificationRepository(client, cfg.Clarify.TTL), nil
}

func newNotifier(cfg *config.Config, httpClient *fasthttp.Client, zapLogger *zap.Logger) usecase.Notifier {
	if cfg.Notifier.Driver == config.NotifierTelegram {
		return telegram.New(telegram.Config{
			Token:     cfg.Telegram.Token,
			APIBase:   cfg.Telegram.APIBase,
			Timeout:   cfg.Telegram.Timeout,
			ParseMode: cfg.Telegram.ParseMode,
		}, httpClient, zapLogger)
	}
	return notify.NewLogNotifier(zapLogger)
}
