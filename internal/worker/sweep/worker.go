package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Yellow-Beans/Booty/internal/database"
	"github.com/Yellow-Beans/Booty/internal/database/dbretry"
	"github.com/Yellow-Beans/Booty/internal/database/types"
	"github.com/Yellow-Beans/Booty/internal/setup/config"
)

// Worker kicks members whose last recorded activity is older than the
// configured window. Whitelisted members never surface in the inactive
// queries, so they are never touched.
type Worker struct {
	db         database.Client
	rest       rest.Rest
	liveGuilds func() map[uint64]struct{}
	cron       *rcron.Cron
	kickSem    *semaphore.Weighted
	logger     *zap.Logger

	schedule         string
	inactiveDays     int
	guildConcurrency int
	dryRun           bool
	kickReason       string
}

// New creates a sweep worker. liveGuilds must report the guilds the gateway
// session currently sees; it is consulted once per run.
func New(
	cfg *config.WorkerConfig,
	db database.Client,
	restClient rest.Rest,
	liveGuilds func() map[uint64]struct{},
	logger *zap.Logger,
) *Worker {
	return &Worker{
		db:               db,
		rest:             restClient,
		liveGuilds:       liveGuilds,
		cron:             rcron.New(rcron.WithSeconds()),
		kickSem:          semaphore.NewWeighted(max(1, cfg.Sweep.MaxConcurrentKicks)),
		logger:           logger,
		schedule:         cfg.Sweep.Schedule,
		inactiveDays:     cfg.Sweep.InactiveDays,
		guildConcurrency: max(1, cfg.Sweep.MaxConcurrentGuilds),
		dryRun:           cfg.Sweep.DryRun,
		kickReason:       cfg.Sweep.KickReason,
	}
}

// Start schedules sweep runs and returns once the scheduler is running.
func (w *Worker) Start(ctx context.Context) error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		if err := w.Run(ctx); err != nil {
			w.logger.Error("Sweep run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	w.cron.Start()
	w.logger.Info("Sweep worker started",
		zap.String("schedule", w.schedule),
		zap.Int("inactiveDays", w.inactiveDays),
		zap.Bool("dryRun", w.dryRun))

	return nil
}

// Stop halts scheduling and waits for a running sweep to finish, bounded so
// shutdown cannot hang on a stuck run.
func (w *Worker) Stop() {
	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(time.Minute):
		w.logger.Warn("Timed out waiting for running sweep to finish")
	}

	w.logger.Info("Sweep worker stopped")
}

// Run executes a single sweep pass over every guild the gateway reports.
func (w *Worker) Run(ctx context.Context) error {
	logger := w.logger.With(zap.String("runID", uuid.New().String()))

	live := w.liveGuilds()
	if len(live) == 0 {
		// An empty snapshot means the gateway session is not ready yet;
		// treating it as "no guilds" would orphan every stored record.
		logger.Warn("Gateway session not ready, skipping sweep")
		return nil
	}

	stored, err := dbretry.Operation(ctx, func(ctx context.Context) ([]uint64, error) {
		return w.db.Model().Activity().GetAllGuildIDs(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to read stored guilds: %w", err)
	}

	swept, orphaned := partitionGuilds(stored, live)
	w.dropOrphanedGuilds(ctx, logger, orphaned)

	threshold := time.Now().AddDate(0, 0, -w.inactiveDays).UnixMilli()

	var (
		p      = pool.New().WithMaxGoroutines(w.guildConcurrency).WithContext(ctx)
		mu     sync.Mutex
		kicked int
	)

	// Sweep each guild concurrently
	for _, guildID := range swept {
		p.Go(func(ctx context.Context) error {
			n, err := w.sweepGuild(ctx, logger, guildID, threshold)
			if err != nil {
				logger.Error("Failed to sweep guild",
					zap.Uint64("guildID", guildID),
					zap.Error(err))
				return nil // Don't fail the whole run for one guild
			}

			mu.Lock()
			kicked += n
			mu.Unlock()

			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return fmt.Errorf("sweep interrupted: %w", err)
	}

	logger.Info("Sweep finished",
		zap.Int("guilds", len(swept)),
		zap.Int("kicked", kicked),
		zap.Bool("dryRun", w.dryRun))

	return nil
}

// dropOrphanedGuilds removes every record of guilds the bot has departed.
func (w *Worker) dropOrphanedGuilds(ctx context.Context, logger *zap.Logger, orphaned []uint64) {
	if len(orphaned) == 0 {
		return
	}

	if w.dryRun {
		logger.Info("Dry run: would remove records for departed guilds",
			zap.Int("guild_count", len(orphaned)))
		return
	}

	if err := w.db.Model().Activity().DeleteGuilds(ctx, orphaned); err != nil {
		logger.Error("Failed to remove records for departed guilds",
			zap.Int("guild_count", len(orphaned)),
			zap.Error(err))
		return
	}

	logger.Info("Removed records for departed guilds",
		zap.Int("guild_count", len(orphaned)))
}

// sweepGuild kicks every inactive member of one guild and drops the records
// of those actually removed. It returns how many members were kicked, or
// would have been in dry-run mode. A failed kick is logged and the record
// kept, so the member is retried on the next run.
func (w *Worker) sweepGuild(ctx context.Context, logger *zap.Logger, guildID uint64, threshold int64) (int, error) {
	memberIDs, err := dbretry.Operation(ctx, func(ctx context.Context) ([]uint64, error) {
		return w.db.Model().Activity().GetInactiveMemberIDs(ctx, guildID, threshold)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read inactive members: %w", err)
	}

	if len(memberIDs) == 0 {
		return 0, nil
	}

	if w.dryRun {
		logger.Info("Dry run: would kick inactive members",
			zap.Uint64("guildID", guildID),
			zap.Uint64s("userIDs", memberIDs))
		return len(memberIDs), nil
	}

	removed := make([]types.MemberKey, 0, len(memberIDs))

	for _, userID := range memberIDs {
		// Kick concurrency is bounded across all guilds
		if err := w.kickSem.Acquire(ctx, 1); err != nil {
			return len(removed), fmt.Errorf("failed to acquire kick slot: %w", err)
		}

		err := w.rest.RemoveMember(snowflake.ID(guildID), snowflake.ID(userID), rest.WithReason(w.kickReason))
		w.kickSem.Release(1)

		if err != nil {
			logger.Error("Failed to kick inactive member",
				zap.Uint64("guildID", guildID),
				zap.Uint64("userID", userID),
				zap.Error(err))
			continue
		}

		removed = append(removed, types.MemberKey{GuildID: guildID, UserID: userID})
	}

	if len(removed) == 0 {
		return 0, nil
	}

	// The member-remove gateway event usually beats this call; the store
	// treats deleting already-deleted keys as a silent no-op.
	if err := w.db.Model().Activity().DeleteMembers(ctx, removed); err != nil {
		return len(removed), fmt.Errorf("failed to drop kicked members from store: %w", err)
	}

	logger.Info("Swept inactive members",
		zap.Uint64("guildID", guildID),
		zap.Int("kicked", len(removed)))

	return len(removed), nil
}

// partitionGuilds splits stored guild IDs into those the gateway still
// reports (swept) and those it no longer does (orphaned).
func partitionGuilds(stored []uint64, live map[uint64]struct{}) (swept, orphaned []uint64) {
	for _, guildID := range stored {
		if _, ok := live[guildID]; ok {
			swept = append(swept, guildID)
		} else {
			orphaned = append(orphaned, guildID)
		}
	}

	return swept, orphaned
}
