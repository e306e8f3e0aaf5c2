package csv_test

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exportCSV "github.com/Yellow-Beans/Booty/internal/export/csv"
	"github.com/Yellow-Beans/Booty/internal/export/types"
)

// verifyCSVFile reads a CSV file and verifies its contents match the expected records.
func verifyCSVFile(t *testing.T, filepath string, expectedRecords []*types.ExportRecord) {
	t.Helper()

	file, err := os.Open(filepath)
	require.NoError(t, err)
	defer file.Close()

	reader := csv.NewReader(file)

	// Read and verify header
	header, err := reader.Read()
	require.NoError(t, err)
	assert.Equal(t, []string{"guild_id", "user_id", "timestamp", "whitelisted"}, header)

	// Read and verify each record
	for _, expected := range expectedRecords {
		record, err := reader.Read()
		require.NoError(t, err)
		assert.Equal(t, strconv.FormatUint(expected.GuildID, 10), record[0])
		assert.Equal(t, strconv.FormatUint(expected.UserID, 10), record[1])
		assert.Equal(t, strconv.FormatInt(expected.Timestamp, 10), record[2])
		assert.Equal(t, strconv.FormatBool(expected.Whitelisted), record[3])
	}

	// Verify we're at the end
	_, err = reader.Read()
	assert.Equal(t, io.EOF, err, "expected EOF after last record")
}

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
				{GuildID: 200, UserID: 3, Timestamp: 0, Whitelisted: false},
			},
		},
		{
			name:    "empty records",
			records: []*types.ExportRecord{},
		},
		{
			name: "negative timestamp",
			records: []*types.ExportRecord{
				{GuildID: 1, UserID: 1, Timestamp: -5, Whitelisted: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tempDir := t.TempDir()

			e := exportCSV.New(tempDir)

			err := e.Export(tt.records)
			require.NoError(t, err)

			verifyCSVFile(t, filepath.Join(tempDir, "activity.csv"), tt.records)
		})
	}
}

func TestExporter_ExistingFile(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	err := os.WriteFile(filepath.Join(tempDir, "activity.csv"), []byte("existing content"), 0o644)
	require.NoError(t, err)

	e := exportCSV.New(tempDir)

	records := []*types.ExportRecord{
		{GuildID: 42, UserID: 7, Timestamp: 1000, Whitelisted: true},
	}

	// Export should overwrite the existing file
	err = e.Export(records)
	require.NoError(t, err)

	verifyCSVFile(t, filepath.Join(tempDir, "activity.csv"), records)
}
