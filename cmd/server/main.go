package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"dealerhub/internal/config"
	"dealerhub/internal/infrastructure/logger"
	"dealerhub/internal/infrastructure/mysql"
	"dealerhub/internal/infrastructure/redis"
	paymentservice "dealerhub/internal/payment/service"
	"dealerhub/internal/server"
	"dealerhub/internal/store"
	"dealerhub/internal/workflow"
	"dealerhub/internal/workflow/usecase"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("creating logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx := context.Background()

	var tx store.Manager
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		zapLogger.Warn("using in-memory store, state is lost on restart")
		tx = store.NewMemoryManager()
	default:
		db, err := mysql.NewConnection(cfg.Database)
		if err != nil {
			zapLogger.Fatal("connecting to database", zap.Error(err))
		}
		defer db.Close()
		zapLogger.Info("database connected")

		if cfg.Store.AutoMigrate {
			if err := mysql.Migrate(ctx, db); err != nil {
				zapLogger.Fatal("migrating database", zap.Error(err))
			}
			zapLogger.Info("database schema applied")
		}
		tx = store.NewMySQLManager(db, cfg.Workflow.TxTimeout)
	}

	var callbackLock usecase.CallbackLock = paymentservice.NewLocalCallbackLock()
	if cfg.Redis.URL != "" {
		client, err := redis.Initialize(ctx, cfg.Redis.URL)
		if err != nil {
			zapLogger.Fatal("connecting to redis", zap.Error(err))
		}
		defer client.Close()
		callbackLock = redis.NewCallbackLock(client, cfg.Redis.CallbackLockTTL)
		zapLogger.Info("redis connected, callback lock shared across instances")
	}

	ctrls := workflow.NewModule(tx, cfg, callbackLock, zapLogger)
	router := server.NewRouter(ctrls, zapLogger)
	srv := server.New(cfg.Server, router, zapLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			zapLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	zapLogger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Fatal("server shutdown failed", zap.Error(err))
	}

	zapLogger.Info("server stopped gracefully")
}
