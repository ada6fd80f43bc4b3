package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kharkivmetro.dev/metro/bot"
	"kharkivmetro.dev/metro/config"
	"kharkivmetro.dev/metro/storage"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	token, err := config.BotToken()
	if err != nil {
		return err
	}

	// The bot auto-initializes its store; no explicit init required.
	store, err := storage.Shared(cfg.UserDataDBPath())
	if err != nil {
		return err
	}

	router, err := newRouter(store)
	if err != nil {
		return err
	}

	// Seed stations so a fresh store works without running init.
	if err := store.SaveStations(stationList(router.Network())); err != nil {
		return err
	}

	sender, err := bot.NewTelegramSender(token)
	if err != nil {
		return err
	}

	engine := bot.NewEngine(store, router, cfg, sender, slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return bot.Run(ctx, engine, sender, slog.Default())
}
