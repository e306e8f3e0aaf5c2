package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Yellow-Beans/Booty/internal/database/types"
	"github.com/Yellow-Beans/Booty/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func testStorageConfig(t *testing.T) *config.Storage {
	t.Helper()

	return &config.Storage{
		Path:        filepath.Join(t.TempDir(), "activity.db"),
		BusyTimeout: 1000,
		PoolSize:    2,
	}
}

func TestNewConnection(t *testing.T) {
	ctx := context.Background()
	cfg := testStorageConfig(t)

	client, err := NewConnection(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close()

	// The store file exists on disk
	_, err = os.Stat(cfg.Path)
	require.NoError(t, err)

	conn, err := client.Pool().Take(ctx)
	require.NoError(t, err)
	defer client.Pool().Put(conn)

	// Verify schema
	var columns []string
	err = sqlitex.ExecuteTransient(conn, "PRAGMA table_info(activity)", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			columns = append(columns, stmt.ColumnText(1)) // Column name is at index 1
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"guild_id", "user_id", "timestamp", "whitelisted"}, columns)

	// Verify the composite primary key
	var pkColumns []string
	err = sqlitex.ExecuteTransient(conn,
		"SELECT name FROM pragma_table_info('activity') WHERE pk > 0 ORDER BY pk",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				pkColumns = append(pkColumns, stmt.ColumnText(0))
				return nil
			},
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"guild_id", "user_id"}, pkColumns)
}

func TestNewConnectionExistingStore(t *testing.T) {
	ctx := context.Background()
	cfg := testStorageConfig(t)

	client, err := NewConnection(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, client.Model().Activity().UpsertActivity(ctx, 1, 10, 100, false))
	require.NoError(t, client.Close())

	// Reopening the same path keeps existing data; schema setup is idempotent
	client, err = NewConnection(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer client.Close()

	memberIDs, err := client.Model().Activity().GetMemberIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, memberIDs)
}

func TestNewConnectionBadPath(t *testing.T) {
	cfg := &config.Storage{
		Path:        filepath.Join(t.TempDir(), "missing", "activity.db"),
		BusyTimeout: 1000,
		PoolSize:    2,
	}

	// SQLite cannot create a store inside a directory that does not exist
	_, err := NewConnection(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStorageUnavailable)
}
