package json

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/Yellow-Beans/Booty/internal/export/types"
)

// Exporter handles exporting activity records to a JSON file.
type Exporter struct {
	outDir string
}

// New creates a new json exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes all records to activity.json, overwriting any existing file.
func (e *Exporter) Export(records []*types.ExportRecord) error {
	// An empty store still produces a valid document
	if records == nil {
		records = []*types.ExportRecord{}
	}

	data, err := sonic.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}

	path := filepath.Join(e.outDir, "activity.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write json file: %w", err)
	}

	return nil
}
