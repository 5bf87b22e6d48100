package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/rryowa/coachauth/internal/api"
	"github.com/rryowa/coachauth/internal/controller"
	"github.com/rryowa/coachauth/internal/migrations"
	"github.com/rryowa/coachauth/internal/service"
	"github.com/rryowa/coachauth/internal/storage/postgres"
	"github.com/rryowa/coachauth/internal/storage/redis"
	"github.com/rryowa/coachauth/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := util.NewZapLogger(util.GetLogLevel())
	defer logger.Sync() //nolint:errcheck // stdout sync errors are not actionable

	db, dbCleanup, err := util.NewDBConnection(logger, util.NewDBConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	defer dbCleanup()

	if err := migrations.RunMigrations(ctx, db, logger); err != nil {
		logger.Fatal(zap.Error(err))
	}

	redisClient, redisCleanup, err := util.NewRedisClient(logger, util.NewRedisConfig())
	if err != nil {
		logger.Fatal(zap.Error(err))
	}
	defer redisCleanup()

	clk := clock.New()

	apiKeyService := service.NewAPIKeyService(redisClient, clk, logger)
	if err := apiKeyService.SyncAPIKey(ctx, util.GetAPIKey()); err != nil {
		logger.Fatal(zap.Error(err))
	}

	storage := postgres.NewStorage(db)
	revocationCache := redis.NewRevocationCache(redisClient)
	webhookService := service.NewWebhookService(logger, util.GetWebhookURL())

	tokenService := service.NewTokenService(
		util.NewTokenConfig(),
		storage.SessionRepository,
		storage.UserRepository,
		revocationCache,
		webhookService,
		clk,
		logger,
	)
	authService := service.NewAuthService(tokenService, storage.UserRepository, logger)

	sweeper := service.NewSweeper(tokenService, util.NewSweepConfig().Interval, clk, logger)
	go sweeper.Run(ctx)

	ctrl := controller.NewController(authService, logger)
	apiServer := api.NewAPI(ctrl, tokenService, apiKeyService, util.NewServerConfig(), logger)
	if err := apiServer.Run(ctx); err != nil {
		logger.Errorw("server stopped", "error", err)
	}
}
