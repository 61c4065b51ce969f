package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/marketbot/marketbot"
	"github.com/ellavondegurechaff/marketbot/marketbot/commands"
	"github.com/ellavondegurechaff/marketbot/marketbot/config"
	"github.com/ellavondegurechaff/marketbot/marketbot/events"
	"github.com/ellavondegurechaff/marketbot/marketbot/handlers"
	"github.com/ellavondegurechaff/marketbot/marketbot/logger"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	slog.SetDefault(slog.New(logger.NewHandler(os.Stdout, slog.LevelInfo)))

	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := marketbot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("type", "sys"), slog.Any("error", err))
		os.Exit(-1)
	}
	slog.SetDefault(slog.New(logger.New(cfg.Log.Format, cfg.Log.Level, cfg.Log.AddSource)))

	slog.Info("Starting Marketbot",
		slog.String("type", "sys"),
		slog.String("version", version),
		slog.String("commit", commit))

	b := marketbot.New(*cfg, version, commit)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	storageStart := time.Now()
	if err = b.SetupStorage(ctx); err != nil {
		slog.Error("Database connection failed",
			slog.String("type", "db"),
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(storageStart)))
		os.Exit(-1)
	}
	slog.Info("Storage ready",
		slog.String("type", "db"),
		slog.Bool("in_memory", cfg.DB.InMemory),
		slog.Duration("took", time.Since(storageStart)))

	publisher, err := events.New(ctx, cfg.Events.Options())
	if err != nil {
		slog.Error("Failed to connect event publisher",
			slog.String("type", "sys"),
			slog.String("backend", cfg.Events.Backend),
			slog.String("error", err.Error()))
		os.Exit(-1)
	}

	h := handler.New()

	h.Command("/sell/auction", handlers.WrapWithLogging("sell-auction", commands.SellAuctionHandler(b)))
	h.Command("/sell/fixed", handlers.WrapWithLogging("sell-fixed", commands.SellFixedHandler(b)))

	moderationHandler := commands.NewModerationHandler(b)
	moderationHandler.Register(h)

	auctionHandler := commands.NewAuctionHandler(b)
	auctionHandler.Register(h)

	saleHandler := commands.NewSaleHandler(b)
	saleHandler.Register(h)

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("error_details", fmt.Sprintf("%+v", err)),
			slog.String("component", "bot_setup"),
			slog.String("status", "failed"),
		)
		os.Exit(-1)
	}

	b.SetupAuctions(publisher)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		b.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("component", "command_sync"),
				slog.String("status", "failed"),
			)
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
			slog.String("component", "gateway"),
			slog.String("status", "failed"),
		)
		return
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b.AuctionScheduler.Start(runCtx)

	slog.Info("Bot is running. Press CTRL-C to exit.", slog.String("type", "sys"))
	<-runCtx.Done()
	slog.Info("Shutting down bot...", slog.String("type", "sys"))
}
