// Package main provides the Discord bot entry point for the helper ledger.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/helper-ledger/internal/api"
	"github.com/helper-ledger/internal/config"
	"github.com/helper-ledger/internal/discord"
	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/notify"
	"github.com/helper-ledger/internal/rank"
	"github.com/helper-ledger/internal/service"
	"github.com/helper-ledger/internal/storage"
	"github.com/helper-ledger/internal/thread"
	"github.com/helper-ledger/internal/worker"
)

const (
	apiReadTimeout     = 15 * time.Second
	apiWriteTimeout    = 15 * time.Second
	apiIdleTimeout     = 60 * time.Second
	apiShutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Default().WithError(err).Fatal("Failed to load configuration")
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), logging.ParseFormat(cfg.Logging.Format))
	logger := logging.Default()
	logger.Info("Helper ledger bot starting")

	if cfg.Discord.Token == "" {
		logger.Fatal("DISCORD_TOKEN is required")
	}

	// Storage
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

	// Discord session and platform adapter
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Discord session")
	}

	adapter := discord.NewAdapter(session, cfg.Discord.GuildID)
	notifier := notify.NewBestEffortNotifier(adapter, notify.DefaultConfig(), logger)

	// Services
	points := service.NewPointsService(ledgerRepo, ladder, boards, logger)
	verification := service.NewVerificationService(ledgerRepo, logger)
	promotions := service.NewPromotionService(
		ledgerRepo, verification, ladder, adapter, notifier,
		cfg.Discord.RankupLogChannelID, logger)
	threads := service.NewThreadService(
		threadRepo, points, promotions, adapter, notifier,
		cfg.Discord.HelperRoleID, cfg.Discord.ThankLogChannelID, logger)

	// Gateway bridge
	bot := discord.NewBot(session, adapter, threads, points, discord.BotConfig{
		GuildID:      cfg.Discord.GuildID,
		HelpForumIDs: cfg.Discord.HelpForumIDs,
		StaffRoleIDs: cfg.Discord.StaffRoleIDs,
	}, logger)

	if err := bot.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Discord")
	}
	defer bot.Stop()

	// Inactivity sweep
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := worker.NewSweeper(threadRepo, thread.SweepPolicy{
		InactivityReminder: cfg.Sweep.InactivityReminder,
		ReminderGrace:      cfg.Sweep.ReminderGrace,
		PendingCloseAfter:  cfg.Sweep.PendingCloseAfter,
	}, notifier, cfg.Sweep.Schedule, logger)

	if err := sweeper.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start thread sweeper")
	}
	defer sweeper.Stop()

	// Administrative API
	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       apiReadTimeout,
		WriteTimeout:      apiWriteTimeout,
		IdleTimeout:       apiIdleTimeout,
		ShutdownTimeout:   apiShutdownTimeout,
		RequestsPerSecond: float64(cfg.RateLimit.RequestsPerSecond),
		Burst:             cfg.RateLimit.Burst,
	}, points, promotions, verification, threads, threadRepo)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("API server stopped")
		}
	}()

	logger.Info("Helper ledger bot is running. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server shutdown failed")
	}
}
