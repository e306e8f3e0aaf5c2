package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Yellow-Beans/Booty/internal/export/types"
)

// Exporter handles exporting activity records to a csv file.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes all records to activity.csv, overwriting any existing file.
func (e *Exporter) Export(records []*types.ExportRecord) error {
	file, err := os.Create(filepath.Join(e.outDir, "activity.csv"))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	if err := writer.Write([]string{"guild_id", "user_id", "timestamp", "whitelisted"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Write each record
	for _, record := range records {
		if err := writer.Write([]string{
			strconv.FormatUint(record.GuildID, 10),
			strconv.FormatUint(record.UserID, 10),
			strconv.FormatInt(record.Timestamp, 10),
			strconv.FormatBool(record.Whitelisted),
		}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	return nil
}
