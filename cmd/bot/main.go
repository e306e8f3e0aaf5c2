package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Yellow-Beans/Booty/internal/bot"
	"github.com/Yellow-Beans/Booty/internal/setup"
	"github.com/Yellow-Beans/Booty/internal/worker/sweep"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "bot",
		Usage: "Track member activity and sweep inactive members",
		Action: func(ctx context.Context, _ *cli.Command) error {
			// Initialize application with required dependencies
			app, err := setup.InitializeApp(ctx, BotLogDir)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup(ctx)

			// Create bot instance
			discordBot, err := bot.New(&app.Config.Bot, app.DB, app.Logger.Named("bot"))
			if err != nil {
				return fmt.Errorf("failed to create bot: %w", err)
			}

			// Start the bot and connect to Discord
			if err := discordBot.Start(ctx); err != nil {
				return fmt.Errorf("failed to start bot: %w", err)
			}

			// Schedule inactivity sweeps against the live gateway view
			sweepLogger := setup.GetWorkerLogger("sweep", BotLogDir, app.Config.Common.Debug.LogLevel)
			sweeper := sweep.New(
				&app.Config.Worker,
				app.DB,
				discordBot.Rest(),
				discordBot.LiveGuildIDs,
				sweepLogger,
			)
			if err := sweeper.Start(ctx); err != nil {
				discordBot.Close(ctx)
				return fmt.Errorf("failed to start sweep worker: %w", err)
			}

			log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

			// Wait for interrupt signal to gracefully shutdown the bot
			// This ensures all pending events are processed before closing
			sc := make(chan os.Signal, 1)
			signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			<-sc

			// Stop scheduling before dropping the gateway connection
			sweeper.Stop()
			discordBot.Close(ctx)

			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}
