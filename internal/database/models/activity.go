package models

import (
	"context"
	"fmt"
	"time"

	"github.com/Yellow-Beans/Booty/internal/database/types"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ActivityModel handles database operations for member activity records.
// Every operation acquires a pooled connection, runs its statements, and
// releases the connection before returning; no session or transaction spans
// two operations.
type ActivityModel struct {
	pool        *sqlitex.Pool
	busyTimeout time.Duration
	logger      *zap.Logger
}

// NewActivity creates a new activity model instance.
func NewActivity(pool *sqlitex.Pool, busyTimeout time.Duration, logger *zap.Logger) *ActivityModel {
	return &ActivityModel{
		pool:        pool,
		busyTimeout: busyTimeout,
		logger:      logger.Named("db_activity"),
	}
}

// UpsertActivity creates or replaces the record for (guildID, userID) with
// the given timestamp. The whitelist flag is sticky: when the caller does not
// explicitly whitelist, a stored whitelisted=true wins over the caller's
// false. The read runs before the write transaction; two racing upserts on
// one key may both observe the pre-update row, which can stale the timestamp
// but never duplicate the key.
func (m *ActivityModel) UpsertActivity(
	ctx context.Context, guildID, userID uint64, timestamp int64, whitelisted bool,
) error {
	conn, release, err := m.take(ctx, "upsert activity")
	if err != nil {
		return err
	}
	defer release()

	if !whitelisted {
		stored, err := isWhitelistedOn(conn, guildID, userID)
		if err != nil {
			return wrapErr("upsert activity", err)
		}

		whitelisted = stored
	}

	err = m.writeTx(conn, "upsert activity", func(conn *sqlite.Conn) (int, error) {
		err := sqlitex.Execute(conn,
			"INSERT OR REPLACE INTO activity (guild_id, user_id, timestamp, whitelisted) VALUES (?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{int64(guildID), int64(userID), timestamp, boolToInt(whitelisted)},
			})
		if err != nil {
			return 0, err
		}

		return conn.Changes(), nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Upserted activity",
		zap.Uint64("guildID", guildID),
		zap.Uint64("userID", userID),
		zap.Int64("timestamp", timestamp),
		zap.Bool("whitelisted", whitelisted))

	return nil
}

// EnsureEntry inserts (guildID, userID, timestamp, whitelisted=false) only if
// no record exists for that key. An existing row's timestamp and whitelist
// status are never touched; when nothing is inserted the transaction is
// rolled back instead of committed.
func (m *ActivityModel) EnsureEntry(ctx context.Context, guildID, userID uint64, timestamp int64) error {
	var inserted int

	err := m.runWrite(ctx, "ensure entry", func(conn *sqlite.Conn) (int, error) {
		err := sqlitex.Execute(conn,
			"INSERT OR IGNORE INTO activity (guild_id, user_id, timestamp, whitelisted) VALUES (?, ?, ?, 0)",
			&sqlitex.ExecOptions{
				Args: []any{int64(guildID), int64(userID), timestamp},
			})
		if err != nil {
			return 0, err
		}

		inserted = conn.Changes()

		return inserted, nil
	})
	if err != nil {
		return err
	}

	if inserted > 0 {
		m.logger.Debug("Created activity entry",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID),
			zap.Int64("timestamp", timestamp))
	}

	return nil
}

// EnsureEntries inserts each record whose key is absent, leaving existing
// rows untouched. An empty batch is a no-op, and a batch that inserts
// nothing skips the commit.
func (m *ActivityModel) EnsureEntries(ctx context.Context, entries []types.ActivityRecord) error {
	if len(entries) == 0 {
		return nil
	}

	var inserted int

	err := m.runWrite(ctx, "ensure entries", func(conn *sqlite.Conn) (int, error) {
		for _, entry := range entries {
			err := sqlitex.Execute(conn,
				"INSERT OR IGNORE INTO activity (guild_id, user_id, timestamp, whitelisted) VALUES (?, ?, ?, ?)",
				&sqlitex.ExecOptions{
					Args: []any{int64(entry.GuildID), int64(entry.UserID), entry.Timestamp, boolToInt(entry.Whitelisted)},
				})
			if err != nil {
				return 0, err
			}

			inserted += conn.Changes()
		}

		return inserted, nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Ensured activity entries",
		zap.Int("batch", len(entries)),
		zap.Int("inserted", inserted))

	return nil
}

// IsWhitelisted reports whether (guildID, userID) has a record with the
// whitelist flag set. A missing record is not whitelisted.
func (m *ActivityModel) IsWhitelisted(ctx context.Context, guildID, userID uint64) (bool, error) {
	conn, release, err := m.take(ctx, "check whitelist status")
	if err != nil {
		return false, err
	}
	defer release()

	whitelisted, err := isWhitelistedOn(conn, guildID, userID)
	if err != nil {
		return false, wrapErr("check whitelist status", err)
	}

	return whitelisted, nil
}

// RevokeWhitelist clears the whitelist flag for (guildID, userID). When no
// record matches, the update affects zero rows and the commit is skipped;
// this is a silent no-op, not an error.
func (m *ActivityModel) RevokeWhitelist(ctx context.Context, guildID, userID uint64) error {
	var updated int

	err := m.runWrite(ctx, "revoke whitelist", func(conn *sqlite.Conn) (int, error) {
		err := sqlitex.Execute(conn,
			"UPDATE activity SET whitelisted = 0 WHERE guild_id = ? AND user_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{int64(guildID), int64(userID)},
			})
		if err != nil {
			return 0, err
		}

		updated = conn.Changes()

		return updated, nil
	})
	if err != nil {
		return err
	}

	if updated > 0 {
		m.logger.Debug("Revoked whitelist",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))
	}

	return nil
}

// GetMemberIDs returns all userIDs recorded under the guild, in no
// particular order. The result may be empty.
func (m *ActivityModel) GetMemberIDs(ctx context.Context, guildID uint64) ([]uint64, error) {
	conn, release, err := m.take(ctx, "get member ids")
	if err != nil {
		return nil, err
	}
	defer release()

	var userIDs []uint64

	err = sqlitex.Execute(conn,
		"SELECT user_id FROM activity WHERE guild_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(guildID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				userIDs = append(userIDs, uint64(stmt.ColumnInt64(0)))
				return nil
			},
		})
	if err != nil {
		return nil, wrapErr("get member ids", err)
	}

	return userIDs, nil
}

// GetInactiveMemberIDs returns the userIDs under the guild whose timestamp
// is below minTimestamp and whose whitelist flag is clear. No ordering
// guarantee.
func (m *ActivityModel) GetInactiveMemberIDs(
	ctx context.Context, guildID uint64, minTimestamp int64,
) ([]uint64, error) {
	conn, release, err := m.take(ctx, "get inactive member ids")
	if err != nil {
		return nil, err
	}
	defer release()

	var userIDs []uint64

	err = sqlitex.Execute(conn,
		"SELECT user_id FROM activity WHERE guild_id = ? AND timestamp < ? AND NOT whitelisted",
		&sqlitex.ExecOptions{
			Args: []any{int64(guildID), minTimestamp},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				userIDs = append(userIDs, uint64(stmt.ColumnInt64(0)))
				return nil
			},
		})
	if err != nil {
		return nil, wrapErr("get inactive member ids", err)
	}

	return userIDs, nil
}

// GetInactiveMembersWithTimestamps returns the same members as
// GetInactiveMemberIDs together with their timestamps, ordered by timestamp
// descending: the most recently active among the inactive come first.
func (m *ActivityModel) GetInactiveMembersWithTimestamps(
	ctx context.Context, guildID uint64, minTimestamp int64,
) ([]types.MemberActivity, error) {
	conn, release, err := m.take(ctx, "get inactive members with timestamps")
	if err != nil {
		return nil, err
	}
	defer release()

	var members []types.MemberActivity

	err = sqlitex.Execute(conn,
		`SELECT user_id, timestamp FROM activity
		WHERE guild_id = ? AND timestamp < ? AND NOT whitelisted
		ORDER BY timestamp DESC`,
		&sqlitex.ExecOptions{
			Args: []any{int64(guildID), minTimestamp},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				members = append(members, types.MemberActivity{
					UserID:    uint64(stmt.ColumnInt64(0)),
					Timestamp: stmt.ColumnInt64(1),
				})
				return nil
			},
		})
	if err != nil {
		return nil, wrapErr("get inactive members with timestamps", err)
	}

	return members, nil
}

// GetWhitelistedMemberIDs returns the userIDs under the guild whose
// whitelist flag is set.
func (m *ActivityModel) GetWhitelistedMemberIDs(ctx context.Context, guildID uint64) ([]uint64, error) {
	conn, release, err := m.take(ctx, "get whitelisted member ids")
	if err != nil {
		return nil, err
	}
	defer release()

	var userIDs []uint64

	err = sqlitex.Execute(conn,
		"SELECT user_id FROM activity WHERE guild_id = ? AND whitelisted",
		&sqlitex.ExecOptions{
			Args: []any{int64(guildID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				userIDs = append(userIDs, uint64(stmt.ColumnInt64(0)))
				return nil
			},
		})
	if err != nil {
		return nil, wrapErr("get whitelisted member ids", err)
	}

	return userIDs, nil
}

// GetGuildRecords returns every record under the guild, ordered by userID
// for stable output. Used by the export tool.
func (m *ActivityModel) GetGuildRecords(ctx context.Context, guildID uint64) ([]types.ActivityRecord, error) {
	conn, release, err := m.take(ctx, "get guild records")
	if err != nil {
		return nil, err
	}
	defer release()

	var records []types.ActivityRecord

	err = sqlitex.Execute(conn,
		"SELECT guild_id, user_id, timestamp, whitelisted FROM activity WHERE guild_id = ? ORDER BY user_id",
		&sqlitex.ExecOptions{
			Args: []any{int64(guildID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				records = append(records, types.ActivityRecord{
					GuildID:     uint64(stmt.ColumnInt64(0)),
					UserID:      uint64(stmt.ColumnInt64(1)),
					Timestamp:   stmt.ColumnInt64(2),
					Whitelisted: stmt.ColumnInt64(3) != 0,
				})
				return nil
			},
		})
	if err != nil {
		return nil, wrapErr("get guild records", err)
	}

	return records, nil
}

// GetAllGuildIDs returns each distinct guildID present in the store once.
func (m *ActivityModel) GetAllGuildIDs(ctx context.Context) ([]uint64, error) {
	conn, release, err := m.take(ctx, "get all guild ids")
	if err != nil {
		return nil, err
	}
	defer release()

	var guildIDs []uint64

	err = sqlitex.Execute(conn,
		"SELECT DISTINCT guild_id FROM activity",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				guildIDs = append(guildIDs, uint64(stmt.ColumnInt64(0)))
				return nil
			},
		})
	if err != nil {
		return nil, wrapErr("get all guild ids", err)
	}

	return guildIDs, nil
}

// DeleteMember removes the record for (guildID, userID) if present.
// Deleting an absent key is a no-op that skips the commit.
func (m *ActivityModel) DeleteMember(ctx context.Context, guildID, userID uint64) error {
	var removed int

	err := m.runWrite(ctx, "delete member", func(conn *sqlite.Conn) (int, error) {
		err := sqlitex.Execute(conn,
			"DELETE FROM activity WHERE guild_id = ? AND user_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{int64(guildID), int64(userID)},
			})
		if err != nil {
			return 0, err
		}

		removed = conn.Changes()

		return removed, nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		m.logger.Debug("Deleted member activity",
			zap.Uint64("guildID", guildID),
			zap.Uint64("userID", userID))
	}

	return nil
}

// DeleteMembers removes the records for every given key. An empty batch is
// a no-op, and a batch that matches nothing skips the commit.
func (m *ActivityModel) DeleteMembers(ctx context.Context, pairs []types.MemberKey) error {
	if len(pairs) == 0 {
		return nil
	}

	var removed int

	err := m.runWrite(ctx, "delete members", func(conn *sqlite.Conn) (int, error) {
		for _, pair := range pairs {
			err := sqlitex.Execute(conn,
				"DELETE FROM activity WHERE guild_id = ? AND user_id = ?",
				&sqlitex.ExecOptions{
					Args: []any{int64(pair.GuildID), int64(pair.UserID)},
				})
			if err != nil {
				return 0, err
			}

			removed += conn.Changes()
		}

		return removed, nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Deleted member activities",
		zap.Int("batch", len(pairs)),
		zap.Int("removed", removed))

	return nil
}

// DeleteGuild removes every record under the guild.
func (m *ActivityModel) DeleteGuild(ctx context.Context, guildID uint64) error {
	var removed int

	err := m.runWrite(ctx, "delete guild", func(conn *sqlite.Conn) (int, error) {
		err := sqlitex.Execute(conn,
			"DELETE FROM activity WHERE guild_id = ?",
			&sqlitex.ExecOptions{
				Args: []any{int64(guildID)},
			})
		if err != nil {
			return 0, err
		}

		removed = conn.Changes()

		return removed, nil
	})
	if err != nil {
		return err
	}

	if removed > 0 {
		m.logger.Debug("Deleted guild activity",
			zap.Uint64("guildID", guildID),
			zap.Int("removed", removed))
	}

	return nil
}

// DeleteGuilds removes every record under each given guild. An empty batch
// is a no-op, and a batch that matches nothing skips the commit.
func (m *ActivityModel) DeleteGuilds(ctx context.Context, guildIDs []uint64) error {
	if len(guildIDs) == 0 {
		return nil
	}

	var removed int

	err := m.runWrite(ctx, "delete guilds", func(conn *sqlite.Conn) (int, error) {
		for _, guildID := range guildIDs {
			err := sqlitex.Execute(conn,
				"DELETE FROM activity WHERE guild_id = ?",
				&sqlitex.ExecOptions{
					Args: []any{int64(guildID)},
				})
			if err != nil {
				return 0, err
			}

			removed += conn.Changes()
		}

		return removed, nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Deleted guild activities",
		zap.Int("batch", len(guildIDs)),
		zap.Int("removed", removed))

	return nil
}

// take acquires a pooled connection bound to ctx and applies the bounded
// write-lock wait. The release func must be called on every path.
func (m *ActivityModel) take(ctx context.Context, op string) (*sqlite.Conn, func(), error) {
	conn, err := m.pool.Take(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to %s: %w: %w", op, types.ErrStorageUnavailable, err)
	}

	conn.SetBusyTimeout(m.busyTimeout)

	return conn, func() { m.pool.Put(conn) }, nil
}

// runWrite acquires a connection and runs fn under writeTx.
func (m *ActivityModel) runWrite(ctx context.Context, op string, fn func(conn *sqlite.Conn) (int, error)) error {
	conn, release, err := m.take(ctx, op)
	if err != nil {
		return err
	}
	defer release()

	return m.writeTx(conn, op, fn)
}

// writeTx runs fn inside an immediate transaction. The write lock is taken
// at BEGIN, inside the connection's busy timeout. The transaction commits
// only when fn reports affected rows; otherwise it is rolled back, which
// keeps zero-row writes a silent no-op without a durability sync.
func (m *ActivityModel) writeTx(conn *sqlite.Conn, op string, fn func(conn *sqlite.Conn) (int, error)) error {
	if err := sqlitex.Execute(conn, "BEGIN IMMEDIATE", nil); err != nil {
		return wrapErr(op, err)
	}

	affected, err := fn(conn)
	if err != nil {
		if rbErr := sqlitex.Execute(conn, "ROLLBACK", nil); rbErr != nil {
			m.logger.Error("Failed to roll back transaction",
				zap.String("op", op),
				zap.Error(rbErr))
		}

		return wrapErr(op, err)
	}

	end := "COMMIT"
	if affected == 0 {
		end = "ROLLBACK"
	}

	if err := sqlitex.Execute(conn, end, nil); err != nil {
		return wrapErr(op, err)
	}

	return nil
}

// isWhitelistedOn reads the whitelist flag for one key on an already
// acquired connection. A missing row reads as false.
func isWhitelistedOn(conn *sqlite.Conn, guildID, userID uint64) (bool, error) {
	var whitelisted bool

	err := sqlitex.Execute(conn,
		"SELECT whitelisted FROM activity WHERE guild_id = ? AND user_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(guildID), int64(userID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				whitelisted = stmt.ColumnInt64(0) != 0
				return nil
			},
		})
	if err != nil {
		return false, err
	}

	return whitelisted, nil
}

// classify maps a SQLite result code onto the storage error taxonomy.
// Anything that is not a caller mistake counts as the store being
// unavailable, which callers may retry for reads.
func classify(err error) error {
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultConstraint:
		return types.ErrConstraintViolation
	case sqlite.ResultMisuse, sqlite.ResultRange:
		return types.ErrInvalidArgument
	default:
		return types.ErrStorageUnavailable
	}
}

// wrapErr attaches the taxonomy sentinel and operation context to a SQLite
// error so callers can branch with errors.Is.
func wrapErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, classify(err), err)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}
