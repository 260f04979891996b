package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/asiradnan/SoulSpeak/internal/api"
	"github.com/asiradnan/SoulSpeak/internal/auth"
	"github.com/asiradnan/SoulSpeak/internal/config"
	"github.com/asiradnan/SoulSpeak/internal/presence"
	"github.com/asiradnan/SoulSpeak/internal/repository"
	"github.com/asiradnan/SoulSpeak/internal/service"
	"github.com/asiradnan/SoulSpeak/internal/ws"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	var logger *zap.Logger
	if cfg.App.Env == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mc, err := repository.NewMongoClient(cfg)
	if err != nil {
		logger.Fatal("mongo init", zap.Error(err))
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.DB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	jv, err := auth.NewValidator(cfg.JWT.Secret)
	if err != nil {
		logger.Fatal("jwt validator init", zap.Error(err))
	}

	online := presence.NewOnlineStore(rdb, cfg.Redis.Prefix, 3*cfg.PingInterval)
	registry := presence.NewRegistry(logger)

	convRepo := repository.NewConversationRepository(db)
	userRepo := repository.NewUserRepository(db, online)

	wsrv := ws.NewServer(registry, jv, userRepo, online, ws.Options{
		PingInterval:  cfg.PingInterval,
		WriteDeadline: cfg.WriteDeadline,
		MaxMsgSize:    cfg.WS.MaxMessageSizeBytes,
	}, logger)

	svc := service.NewChatService(convRepo, userRepo, wsrv, cfg.Chat.MaxContentRunes, logger)

	app := api.NewServer(cfg, svc, wsrv, jv, rdb, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- app.Listen(":" + cfg.App.PortString())
	}()
	logger.Info("soulspeak chat service started", zap.String("port", cfg.App.PortString()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		logger.Fatal("server error", zap.Error(e))
	case s := <-sig:
		logger.Info("signal received", zap.String("signal", s.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	logger.Info("soulspeak chat service stopped")
}
