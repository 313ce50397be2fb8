// Package main provides the standalone API server entry point. It serves the
// administrative endpoints without a gateway connection; role and
// notification calls are disabled.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/helper-ledger/internal/api"
	"github.com/helper-ledger/internal/config"
	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/platform"
	"github.com/helper-ledger/internal/rank"
	"github.com/helper-ledger/internal/service"
	"github.com/helper-ledger/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// nullRoles satisfies platform.RoleManager when no gateway is connected.
// Every member appears to hold every role, so the promotion service never
// attempts a grant from this process.
type nullRoles struct{}

func (nullRoles) HasRole(ctx context.Context, userID, roleID string) (bool, error) { return true, nil }
func (nullRoles) GrantRole(ctx context.Context, userID, roleID string) error       { return nil }
func (nullRoles) RevokeRole(ctx context.Context, userID, roleID string) error      { return nil }
func (nullRoles) RoleName(ctx context.Context, roleID string) (string, error)      { return "", nil }

// nullNotifier drops all messages.
type nullNotifier struct{}

func (nullNotifier) NotifyUser(ctx context.Context, userID, content string) error       { return nil }
func (nullNotifier) NotifyChannel(ctx context.Context, channelID, content string) error { return nil }

var (
	_ platform.RoleManager = nullRoles{}
	_ platform.Notifier    = nullNotifier{}
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Default().WithError(err).Fatal("Failed to load configuration")
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger := logging.Default()
	logger.Info("Helper ledger API server starting")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	ledgerRepo := storage.NewLedgerRepository(postgres)
	threadRepo := storage.NewThreadRepository(postgres)
	boards := storage.NewLeaderboardCache(redis, cfg.Database.Redis.LeaderboardTTL)

	ladder, err := rank.NewLadder(cfg.Discord.RankRoleIDs)
	if err != nil {
		logger.WithError(err).Fatal("Invalid rank ladder configuration")
	}

	points := service.NewPointsService(ledgerRepo, ladder, boards, logger)
	verification := service.NewVerificationService(ledgerRepo, logger)
	promotions := service.NewPromotionService(
		ledgerRepo, verification, ladder, nullRoles{}, nullNotifier{}, "", logger)
	threads := service.NewThreadService(
		threadRepo, points, promotions, nullRoles{}, nullNotifier{},
		cfg.Discord.HelperRoleID, "", logger)

	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   shutdownTimeout,
		RequestsPerSecond: float64(cfg.RateLimit.RequestsPerSecond),
		Burst:             cfg.RateLimit.Burst,
	}, points, promotions, verification, threads, threadRepo)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("API server shutdown failed")
	}
}
