package events

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/Yellow-Beans/Booty/internal/database"
	"github.com/Yellow-Beans/Booty/internal/database/types"
)

// memberPageSize is the maximum page size Discord allows when listing guild members.
const memberPageSize = 1000

// Handler keeps the activity store in sync with what happens on Discord.
// Message authorship refreshes timestamps, membership changes add and remove
// records, and guild changes seed or drop whole guilds. It also tracks which
// guilds the gateway session currently sees so other components can tell
// stored guilds from departed ones.
type Handler struct {
	db       database.Client
	excluded map[uint64]struct{}
	logger   *zap.Logger

	mu   sync.RWMutex
	live map[uint64]struct{}
}

// New creates an event handler that records member activity. Messages in
// excluded channels do not count as activity.
func New(db database.Client, excludedChannels []uint64, logger *zap.Logger) *Handler {
	excluded := make(map[uint64]struct{}, len(excludedChannels))
	for _, channelID := range excludedChannels {
		excluded[channelID] = struct{}{}
	}

	return &Handler{
		db:       db,
		excluded: excluded,
		logger:   logger,
		live:     make(map[uint64]struct{}),
	}
}

// LiveGuildIDs returns a snapshot of the guilds the gateway session currently
// reports. The snapshot is empty until the first Ready event arrives.
func (h *Handler) LiveGuildIDs() map[uint64]struct{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	live := make(map[uint64]struct{}, len(h.live))
	for guildID := range h.live {
		live[guildID] = struct{}{}
	}

	return live
}

// OnReady reconciles the store against the guilds the gateway session reports.
// Records for guilds the bot departed while offline are dropped.
func (h *Handler) OnReady(e *events.Ready) {
	ctx := context.Background()

	current := make(map[uint64]struct{}, len(e.Guilds))
	for _, guild := range e.Guilds {
		current[uint64(guild.ID)] = struct{}{}
	}

	// Store a copy; current stays in local use below
	live := make(map[uint64]struct{}, len(current))
	for guildID := range current {
		live[guildID] = struct{}{}
	}

	h.mu.Lock()
	h.live = live
	h.mu.Unlock()

	stored, err := h.db.Model().Activity().GetAllGuildIDs(ctx)
	if err != nil {
		h.logger.Error("Failed to get stored guilds for reconciliation", zap.Error(err))
		return
	}

	orphaned := make([]uint64, 0, len(stored))
	for _, guildID := range stored {
		if _, ok := current[guildID]; !ok {
			orphaned = append(orphaned, guildID)
		}
	}

	if len(orphaned) > 0 {
		if err := h.db.Model().Activity().DeleteGuilds(ctx, orphaned); err != nil {
			h.logger.Error("Failed to remove records for departed guilds",
				zap.Int("guild_count", len(orphaned)),
				zap.Error(err))
			return
		}

		h.logger.Info("Removed records for guilds departed while offline",
			zap.Int("guild_count", len(orphaned)))
	}

	h.logger.Info("Gateway session ready", zap.Int("guild_count", len(e.Guilds)))
}

// OnMessageCreate refreshes the author's activity timestamp. The message's
// snowflake carries its creation time, so the recorded timestamp is stable
// even when event delivery lags.
func (h *Handler) OnMessageCreate(e *events.MessageCreate) {
	// Skip if this is a DM, a bot or system account, or a webhook message
	if e.GuildID == nil || e.Message.Author.Bot || e.Message.Author.System || e.Message.WebhookID != nil {
		return
	}

	if _, ok := h.excluded[uint64(e.ChannelID)]; ok {
		return
	}

	guildID := uint64(*e.GuildID)
	userID := uint64(e.Message.Author.ID)

	err := h.db.Model().Activity().UpsertActivity(
		context.Background(), guildID, userID, e.MessageID.Time().UnixMilli(), false)
	if err != nil {
		h.logger.Error("Failed to record message activity",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Error(err))
	}
}

// OnGuildMemberJoin starts tracking a member from the moment they join. An
// existing record survives rejoin churn untouched.
func (h *Handler) OnGuildMemberJoin(e *events.GuildMemberJoin) {
	if e.Member.User.Bot || e.Member.User.System {
		return
	}

	guildID := uint64(e.GuildID)
	userID := uint64(e.Member.User.ID)

	err := h.db.Model().Activity().EnsureEntry(context.Background(), guildID, userID, time.Now().UnixMilli())
	if err != nil {
		h.logger.Error("Failed to record joined member",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Error(err))
	}
}

// OnGuildMemberLeave drops the member's record. Deleting an absent record is
// a no-op, so kicks already flushed by the sweep worker are safe to replay.
func (h *Handler) OnGuildMemberLeave(e *events.GuildMemberLeave) {
	if e.User.Bot || e.User.System {
		return
	}

	guildID := uint64(e.GuildID)
	userID := uint64(e.User.ID)

	err := h.db.Model().Activity().DeleteMember(context.Background(), guildID, userID)
	if err != nil {
		h.logger.Error("Failed to remove departed member",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Error(err))
	}
}

// OnGuildJoin seeds a record for every current member of the new guild so
// nobody is invisible to sweeps just because they never spoke after the bot
// arrived. Members already tracked keep their timestamps.
func (h *Handler) OnGuildJoin(e *events.GuildJoin) {
	guildID := uint64(e.Guild.ID)

	h.mu.Lock()
	h.live[guildID] = struct{}{}
	h.mu.Unlock()

	// Page through the full member list using the Discord API
	var members []discord.Member
	var after snowflake.ID

	for {
		chunk, err := e.Client().Rest().GetMembers(e.Guild.ID, memberPageSize, after)
		if err != nil {
			h.logger.Error("Failed to get guild members",
				zap.Uint64("guildID", guildID),
				zap.Error(err))
			return
		}

		members = append(members, chunk...)

		// A short page is the last page
		if len(chunk) < memberPageSize {
			break
		}

		after = chunk[len(chunk)-1].User.ID
	}

	now := time.Now().UnixMilli()

	entries := make([]types.ActivityRecord, 0, len(members))
	for _, member := range members {
		if member.User.Bot || member.User.System {
			continue
		}

		entries = append(entries, types.ActivityRecord{
			GuildID:   guildID,
			UserID:    uint64(member.User.ID),
			Timestamp: now,
		})
	}

	if err := h.db.Model().Activity().EnsureEntries(context.Background(), entries); err != nil {
		h.logger.Error("Failed to seed records for joined guild",
			zap.Uint64("guildID", guildID),
			zap.Int("member_count", len(entries)),
			zap.Error(err))
		return
	}

	h.logger.Info("Seeded activity records for joined guild",
		zap.Uint64("guildID", guildID),
		zap.String("guild_name", e.Guild.Name),
		zap.Int("member_count", len(entries)))
}

// OnGuildLeave drops every record for the departed guild.
func (h *Handler) OnGuildLeave(e *events.GuildLeave) {
	guildID := uint64(e.GuildID)

	h.mu.Lock()
	delete(h.live, guildID)
	h.mu.Unlock()

	if err := h.db.Model().Activity().DeleteGuild(context.Background(), guildID); err != nil {
		h.logger.Error("Failed to remove records for departed guild",
			zap.Uint64("guildID", guildID),
			zap.Error(err))
		return
	}

	h.logger.Info("Removed activity records for departed guild", zap.Uint64("guildID", guildID))
}
