package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Yellow-Beans/Booty/internal/database/types"
	"github.com/Yellow-Beans/Booty/internal/setup/config"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema runs on every startup; IF NOT EXISTS keeps it idempotent. There are
// no further migrations.
const schema = `
	CREATE TABLE IF NOT EXISTS activity (
		guild_id    INTEGER NOT NULL,
		user_id     INTEGER NOT NULL,
		timestamp   INTEGER NOT NULL,
		whitelisted INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, user_id)
	)
`

// Client defines the methods that a database client must implement.
type Client interface {
	// Model returns the repository containing all model operations.
	Model() *Repository
	// Close gracefully shuts down the connection pool.
	Close() error
	// Pool returns the underlying connection pool.
	Pool() *sqlitex.Pool
}

// clientImpl represents the concrete implementation of the database client.
type clientImpl struct {
	pool   *sqlitex.Pool
	logger *zap.Logger
	repo   *Repository
}

// NewConnection opens the SQLite store at the configured path, ensures the
// activity table exists, and returns a Client instance.
func NewConnection(ctx context.Context, config *config.Storage, logger *zap.Logger) (Client, error) {
	pool, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL,
		PoolSize: config.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite store: %w: %w", types.ErrStorageUnavailable, err)
	}

	busyTimeout := time.Duration(config.BusyTimeout) * time.Millisecond

	if err := initSchema(ctx, pool, busyTimeout); err != nil {
		pool.Close()
		return nil, err
	}

	client := &clientImpl{
		pool:   pool,
		logger: logger,
		repo:   NewRepository(pool, busyTimeout, logger),
	}

	logger.Info("Database connection established", zap.String("path", config.Path))

	return client, nil
}

// initSchema creates the activity table if it is missing.
func initSchema(ctx context.Context, pool *sqlitex.Pool, busyTimeout time.Duration) error {
	conn, err := pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for schema init: %w: %w", types.ErrStorageUnavailable, err)
	}
	defer pool.Put(conn)

	conn.SetBusyTimeout(busyTimeout)

	if err := sqlitex.Execute(conn, schema, nil); err != nil {
		return fmt.Errorf("failed to create activity table: %w: %w", types.ErrStorageUnavailable, err)
	}

	return nil
}

// Close gracefully shuts down the connection pool.
func (c *clientImpl) Close() error {
	err := c.pool.Close()
	if err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}

// Model returns the repository containing all model operations.
func (c *clientImpl) Model() *Repository {
	return c.repo
}

// Pool returns the underlying connection pool.
func (c *clientImpl) Pool() *sqlitex.Pool {
	return c.pool
}
