package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"
)

const (
	// WhitelistCommandName manages sweep exemptions for individual members.
	WhitelistCommandName = "whitelist"
	// InactiveCommandName lists members whose last activity is older than a threshold.
	InactiveCommandName = "inactive"
	// TrackedCommandName reports how many members the store tracks for a guild.
	TrackedCommandName = "tracked"
)

// maxListedMembers caps how many members a single response enumerates so the
// message stays within Discord's content limit.
const maxListedMembers = 30

// commands returns the application command definitions registered on startup.
func commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        WhitelistCommandName,
			Description: "Manage members exempt from inactivity sweeps",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "add",
					Description: "Exempt a member from inactivity sweeps",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        "user",
							Description: "The member to exempt",
							Required:    true,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "remove",
					Description: "Remove a member's sweep exemption",
					Options: []discord.ApplicationCommandOption{
						discord.ApplicationCommandOptionUser{
							Name:        "user",
							Description: "The member to stop exempting",
							Required:    true,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "show",
					Description: "List all exempted members",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        InactiveCommandName,
			Description: "List members inactive for a number of days",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionInt{
					Name:        "days",
					Description: "Inactivity threshold in days",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        TrackedCommandName,
			Description: "Show how many members are tracked in this server",
		},
	}
}

// handleWhitelist dispatches the whitelist subcommands. Adding a member
// refreshes their activity timestamp alongside the exemption so they do not
// surface as inactive immediately after the exemption is lifted.
func (b *Bot) handleWhitelist(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	ctx := context.Background()
	guildID := uint64(*event.GuildID())

	var subcommand string
	if data.SubCommandName != nil {
		subcommand = *data.SubCommandName
	}

	switch subcommand {
	case "add":
		user := data.User("user")

		err := b.db.Model().Activity().UpsertActivity(ctx, guildID, uint64(user.ID), time.Now().UnixMilli(), true)
		if err != nil {
			b.logger.Error("Failed to whitelist member",
				zap.Uint64("guildID", guildID),
				zap.Uint64("userID", uint64(user.ID)),
				zap.Error(err))
			b.respond(event, "Failed to update the whitelist. Please try again later.")
			return
		}

		b.respond(event, fmt.Sprintf("<@%d> is now exempt from inactivity sweeps.", user.ID))

	case "remove":
		user := data.User("user")

		err := b.db.Model().Activity().RevokeWhitelist(ctx, guildID, uint64(user.ID))
		if err != nil {
			b.logger.Error("Failed to revoke whitelist",
				zap.Uint64("guildID", guildID),
				zap.Uint64("userID", uint64(user.ID)),
				zap.Error(err))
			b.respond(event, "Failed to update the whitelist. Please try again later.")
			return
		}

		b.respond(event, fmt.Sprintf("<@%d> is no longer exempt from inactivity sweeps.", user.ID))

	case "show":
		memberIDs, err := b.db.Model().Activity().GetWhitelistedMemberIDs(ctx, guildID)
		if err != nil {
			b.logger.Error("Failed to get whitelisted members",
				zap.Uint64("guildID", guildID),
				zap.Error(err))
			b.respond(event, "Failed to look up the whitelist. Please try again later.")
			return
		}

		if len(memberIDs) == 0 {
			b.respond(event, "No members are exempt from inactivity sweeps in this server.")
			return
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d members are exempt from inactivity sweeps:\n", len(memberIDs))

		for i, memberID := range memberIDs {
			if i == maxListedMembers {
				fmt.Fprintf(&sb, "... and %d more", len(memberIDs)-maxListedMembers)
				break
			}
			fmt.Fprintf(&sb, "<@%d>\n", memberID)
		}

		b.respond(event, sb.String())

	default:
		b.respond(event, "Unknown subcommand.")
	}
}

// handleInactive lists members whose last recorded activity is older than the
// requested number of days, most recently active first.
func (b *Bot) handleInactive(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	ctx := context.Background()
	guildID := uint64(*event.GuildID())

	days := data.Int("days")
	if days < 1 {
		b.respond(event, "Days must be at least 1.")
		return
	}

	threshold := time.Now().AddDate(0, 0, -days).UnixMilli()

	members, err := b.db.Model().Activity().GetInactiveMembersWithTimestamps(ctx, guildID, threshold)
	if err != nil {
		b.logger.Error("Failed to get inactive members",
			zap.Uint64("guildID", guildID),
			zap.Int64("threshold", threshold),
			zap.Error(err))
		b.respond(event, "Failed to look up inactive members. Please try again later.")
		return
	}

	if len(members) == 0 {
		b.respond(event, fmt.Sprintf("No members have been inactive for %d days.", days))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d members inactive for %d+ days:\n", len(members), days)

	for i, member := range members {
		if i == maxListedMembers {
			fmt.Fprintf(&sb, "... and %d more", len(members)-maxListedMembers)
			break
		}
		// Discord timestamp markup takes Unix seconds
		fmt.Fprintf(&sb, "<@%d> last active <t:%d:R>\n", member.UserID, member.Timestamp/1000)
	}

	b.respond(event, sb.String())
}

// handleTracked reports the number of members with an activity record.
func (b *Bot) handleTracked(event *events.ApplicationCommandInteractionCreate) {
	ctx := context.Background()
	guildID := uint64(*event.GuildID())

	memberIDs, err := b.db.Model().Activity().GetMemberIDs(ctx, guildID)
	if err != nil {
		b.logger.Error("Failed to get tracked members",
			zap.Uint64("guildID", guildID),
			zap.Error(err))
		b.respond(event, "Failed to look up tracked members. Please try again later.")
		return
	}

	b.respond(event, fmt.Sprintf("Tracking activity for %d members in this server.", len(memberIDs)))
}
