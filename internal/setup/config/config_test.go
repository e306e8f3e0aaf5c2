package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCommon = `
version = 1

[debug]
log_level = "info"
max_logs_to_keep = 5

[storage]
path = "activity.db"
busy_timeout = 2500
pool_size = 4
`

const validBot = `
version = 1

[discord]
token = "test-token"
excluded_channels = [123, 456]
`

const validWorker = `
version = 1

[sweep]
schedule = "0 0 4 * * *"
inactive_days = 30
dry_run = true
max_concurrent_guilds = 4
max_concurrent_kicks = 2
kick_reason = "Inactivity sweep"
`

// writeConfigDir fills a .booty directory under the current working
// directory, the first path LoadConfig searches.
func writeConfigDir(t *testing.T, files map[string]string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(".booty", 0o755))

	for name, content := range files {
		path := filepath.Join(".booty", name+".toml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	writeConfigDir(t, map[string]string{
		"common": validCommon,
		"bot":    validBot,
		"worker": validWorker,
	})

	config, usedDir, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ".booty", usedDir)

	assert.Equal(t, "info", config.Common.Debug.LogLevel)
	assert.Equal(t, 5, config.Common.Debug.MaxLogsToKeep)
	assert.Equal(t, "activity.db", config.Common.Storage.Path)
	assert.Equal(t, 2500, config.Common.Storage.BusyTimeout)
	assert.Equal(t, 4, config.Common.Storage.PoolSize)

	assert.Equal(t, "test-token", config.Bot.Discord.Token)
	assert.Equal(t, []uint64{123, 456}, config.Bot.Discord.ExcludedChannels)

	assert.Equal(t, "0 0 4 * * *", config.Worker.Sweep.Schedule)
	assert.Equal(t, 30, config.Worker.Sweep.InactiveDays)
	assert.True(t, config.Worker.Sweep.DryRun)
	assert.Equal(t, 4, config.Worker.Sweep.MaxConcurrentGuilds)
	assert.Equal(t, int64(2), config.Worker.Sweep.MaxConcurrentKicks)
	assert.Equal(t, "Inactivity sweep", config.Worker.Sweep.KickReason)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	writeConfigDir(t, map[string]string{
		"common": validCommon,
		"worker": validWorker,
	})

	_, _, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigFileNotFound)
	assert.Contains(t, err.Error(), "bot.toml")
}

func TestLoadConfigVersionMismatch(t *testing.T) {
	t.Chdir(t.TempDir())
	writeConfigDir(t, map[string]string{
		"common": "version = 99\n",
		"bot":    validBot,
		"worker": validWorker,
	})

	_, _, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigVersionMismatch)
}

func TestLoadConfigVersionMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	writeConfigDir(t, map[string]string{
		"common": validCommon,
		"bot":    validBot,
		"worker": "[sweep]\ninactive_days = 30\n",
	})

	_, _, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigVersionMissing)
	assert.Contains(t, err.Error(), "worker.toml")
}
