package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"raffle-bot/internal/config"
	"raffle-bot/internal/raffle"
	"raffle-bot/internal/server"
	"raffle-bot/internal/store"
	"raffle-bot/internal/subscription"
	"raffle-bot/internal/telegram"
	"raffle-bot/internal/tgbot"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg)
	if err != nil {
		logger.Error("database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	campaignRepo := &store.CampaignRepository{DB: db}
	participantRepo := &store.ParticipantRepository{DB: db}

	tg, err := telegram.New(cfg.TelegramToken, 10*time.Second)
	if err != nil {
		logger.Error("telegram", "err", err)
		os.Exit(1)
	}

	verifier := &subscription.Verifier{Checker: tg, Log: logger}
	engine := tgbot.NewEngine(participantRepo, tg, verifier, logger)
	raffler := raffle.New(campaignRepo, participantRepo, logger)

	srv := server.New(cfg, campaignRepo, participantRepo, engine, raffler, tg, logger)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("HTTP listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	logger.Info("bye")
}
