package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"go.uber.org/zap"

	memberEvents "github.com/Yellow-Beans/Booty/internal/bot/events"
	"github.com/Yellow-Beans/Booty/internal/database"
	"github.com/Yellow-Beans/Booty/internal/setup/config"
)

// Bot owns the Discord client that keeps the activity store current and the
// slash commands that expose it to moderators.
type Bot struct {
	db      database.Client
	client  bot.Client
	tracker *memberEvents.Handler
	logger  *zap.Logger
}

// New initializes a Bot instance by wiring the member tracking handler and
// configuring the Discord client with the gateway intents needed to observe
// guilds, their members, and their messages.
func New(cfg *config.BotConfig, db database.Client, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		db:     db,
		logger: logger,
	}

	// Tracking handlers run on the gateway event loop and only touch the store
	tracker := memberEvents.New(db, cfg.Discord.ExcludedChannels, logger.Named("events"))
	b.tracker = tracker

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady:                         tracker.OnReady,
			OnGuildJoin:                     tracker.OnGuildJoin,
			OnGuildLeave:                    tracker.OnGuildLeave,
			OnGuildMemberJoin:               tracker.OnGuildMemberJoin,
			OnGuildMemberLeave:              tracker.OnGuildMemberLeave,
			OnMessageCreate:                 tracker.OnMessageCreate,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
		}),
	)
	if err != nil {
		return nil, err
	}

	b.client = client
	return b, nil
}

// Start registers the bot's slash commands globally and opens the gateway
// connection to begin receiving events.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close gracefully shuts down the Discord gateway connection.
// This ensures all pending events are processed before shutdown.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}

// Rest exposes the Discord REST client for components that act outside the
// gateway event loop, like the sweep worker.
func (b *Bot) Rest() rest.Rest {
	return b.client.Rest()
}

// LiveGuildIDs returns the guilds the gateway session currently reports.
func (b *Bot) LiveGuildIDs() map[uint64]struct{} {
	return b.tracker.LiveGuildIDs()
}

// handleApplicationCommandInteraction processes slash commands by first deferring
// the response, then checking permissions before dispatching to the command
// handler in a goroutine. The goroutine approach allows for concurrent
// processing of commands.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		// Defer response to prevent Discord timeout while processing
		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		data := event.SlashCommandInteractionData()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respond(event, "Internal error. Please report this to an administrator.")
			}
			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		// All commands operate on guild members
		if event.GuildID() == nil {
			b.respond(event, "This command can only be used in a server.")
			return
		}

		if event.Member() == nil || !event.Member().Permissions.Has(discord.PermissionKickMembers) {
			b.respond(event, "You need the Kick Members permission to use this command.")
			return
		}

		switch data.CommandName() {
		case WhitelistCommandName:
			b.handleWhitelist(event, data)
		case InactiveCommandName:
			b.handleInactive(event, data)
		case TrackedCommandName:
			b.handleTracked(event)
		default:
			b.respond(event, "This command is not available.")
		}
	}()
}

// respond replaces the deferred interaction response with the given content.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, content string) {
	_, err := event.Client().Rest().UpdateInteractionResponse(
		event.ApplicationID(),
		event.Token(),
		discord.NewMessageUpdateBuilder().SetContent(content).Build(),
	)
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}
