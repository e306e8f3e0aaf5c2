package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"github.com/Yellow-Beans/Booty/internal/export/csv"
	"github.com/Yellow-Beans/Booty/internal/export/json"
	"github.com/Yellow-Beans/Booty/internal/export/types"
	"github.com/Yellow-Beans/Booty/internal/setup"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents a supported export format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// EngineVersion represents the version of the export engine.
// This should be updated when making breaking changes to the export format.
const EngineVersion = "1.0.0"

// Config holds the configuration for exports.
type Config struct {
	// GuildID restricts the export to one guild; zero exports every guild.
	GuildID     uint64 `json:"guildId"`
	Description string `json:"description"`
}

// Exporter handles exporting stored activity records.
type Exporter struct {
	app     *setup.App
	outDir  string
	config  *Config
	formats []Format
}

// New creates a new exporter instance.
func New(app *setup.App, outDir string, config *Config) *Exporter {
	return &Exporter{
		app:    app,
		outDir: outDir,
		config: config,
		formats: []Format{
			FormatJSON,
			FormatCSV,
		},
	}
}

// ExportAll exports all data in all supported formats.
func (e *Exporter) ExportAll(ctx context.Context) error {
	// Print export configuration
	fmt.Printf("Starting export with configuration:\n")

	if e.config.GuildID != 0 {
		fmt.Printf("  Guild: %d\n", e.config.GuildID)
	} else {
		fmt.Printf("  Guild: all\n")
	}

	fmt.Printf("  Output Directory: %s\n", e.outDir)
	fmt.Printf("  Engine Version: %s\n", EngineVersion)
	fmt.Printf("  Description: %s\n\n", e.config.Description)

	// Fetch the records to export
	fmt.Printf("Fetching data from store...\n")

	records, err := e.getActivityData(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d records to export\n\n", len(records))

	// Save config file
	fmt.Printf("Saving export configuration...\n")

	configPath := filepath.Join(e.outDir, "export_config.json")

	// Create config with engine version for JSON
	jsonConfig := struct {
		*Config

		EngineVersion string `json:"engineVersion"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
	}

	configData, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(configPath, configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	// Export each format
	fmt.Printf("Exporting data in %d formats...\n", len(e.formats))

	for _, format := range e.formats {
		fmt.Printf("  Writing %s format...\n", format)

		if err := e.export(format, records); err != nil {
			return fmt.Errorf("failed to export %s format: %w", format, err)
		}
	}

	fmt.Printf("\nExport completed successfully\n")
	fmt.Printf("Files written to: %s\n", e.outDir)

	return nil
}

// getActivityData reads the requested records through the store's own
// operations.
func (e *Exporter) getActivityData(ctx context.Context) ([]*types.ExportRecord, error) {
	activity := e.app.DB.Model().Activity()

	guildIDs := []uint64{e.config.GuildID}

	if e.config.GuildID == 0 {
		var err error

		guildIDs, err = activity.GetAllGuildIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get guilds: %w", err)
		}
	}

	var records []*types.ExportRecord

	for _, guildID := range guildIDs {
		guildRecords, err := activity.GetGuildRecords(ctx, guildID)
		if err != nil {
			return nil, fmt.Errorf("failed to get records for guild %d: %w", guildID, err)
		}

		for _, record := range guildRecords {
			records = append(records, &types.ExportRecord{
				GuildID:     record.GuildID,
				UserID:      record.UserID,
				Timestamp:   record.Timestamp,
				Whitelisted: record.Whitelisted,
			})
		}
	}

	return records, nil
}

// export handles exporting data in the specified format.
func (e *Exporter) export(format Format, records []*types.ExportRecord) error {
	var exporter interface {
		Export(records []*types.ExportRecord) error
	}

	switch format {
	case FormatJSON:
		exporter = json.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(records)
}
