package json_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exportJSON "github.com/Yellow-Beans/Booty/internal/export/json"
	"github.com/Yellow-Beans/Booty/internal/export/types"
)

func TestExporter_Export(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		records []*types.ExportRecord
	}{
		{
			name: "basic export",
			records: []*types.ExportRecord{
				{GuildID: 100, UserID: 1, Timestamp: 1700000000000, Whitelisted: false},
				{GuildID: 100, UserID: 2, Timestamp: 1700000000500, Whitelisted: true},
			},
		},
		{
			name:    "empty records",
			records: []*types.ExportRecord{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tempDir := t.TempDir()

			e := exportJSON.New(tempDir)

			err := e.Export(tt.records)
			require.NoError(t, err)

			// The file must decode back to exactly the exported records
			data, err := os.ReadFile(filepath.Join(tempDir, "activity.json"))
			require.NoError(t, err)

			var decoded []*types.ExportRecord
			require.NoError(t, sonic.Unmarshal(data, &decoded))

			assert.Equal(t, len(tt.records), len(decoded))

			for i, expected := range tt.records {
				assert.Equal(t, expected.GuildID, decoded[i].GuildID)
				assert.Equal(t, expected.UserID, decoded[i].UserID)
				assert.Equal(t, expected.Timestamp, decoded[i].Timestamp)
				assert.Equal(t, expected.Whitelisted, decoded[i].Whitelisted)
			}
		})
	}
}

func TestExporter_NilRecords(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	e := exportJSON.New(tempDir)

	// A nil slice still produces a valid JSON array
	err := e.Export(nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tempDir, "activity.json"))
	require.NoError(t, err)

	var decoded []*types.ExportRecord
	require.NoError(t, sonic.Unmarshal(data, &decoded))
	assert.Empty(t, decoded)
}
