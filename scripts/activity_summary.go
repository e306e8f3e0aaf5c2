// Command activity_summary prints per-guild totals from an exported
// activity.csv, for a quick look at a store snapshot without opening the
// database file.
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
)

var errEmptyExport = errors.New("export contains no data rows")

type guildSummary struct {
	members     int
	whitelisted int
	oldest      int64
	newest      int64
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	csvPath := "activity.csv"
	if len(os.Args) > 1 {
		csvPath = os.Args[1]
	}

	file, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	summaries := make(map[uint64]*guildSummary)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("failed to read row: %w", err)
		}

		guildID, err := strconv.ParseUint(row[0], 10, 64)
		if err != nil {
			return fmt.Errorf("bad guild_id %q: %w", row[0], err)
		}

		timestamp, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return fmt.Errorf("bad timestamp %q: %w", row[2], err)
		}

		summary, ok := summaries[guildID]
		if !ok {
			summary = &guildSummary{oldest: timestamp, newest: timestamp}
			summaries[guildID] = summary
		}

		summary.members++

		if row[3] == "true" {
			summary.whitelisted++
		}

		if timestamp < summary.oldest {
			summary.oldest = timestamp
		}

		if timestamp > summary.newest {
			summary.newest = timestamp
		}
	}

	if len(summaries) == 0 {
		return errEmptyExport
	}

	guildIDs := make([]uint64, 0, len(summaries))
	for guildID := range summaries {
		guildIDs = append(guildIDs, guildID)
	}

	slices.Sort(guildIDs)

	fmt.Printf("%-20s %10s %12s %15s %15s\n", "guild_id", "members", "whitelisted", "oldest", "newest")

	for _, guildID := range guildIDs {
		s := summaries[guildID]
		fmt.Printf("%-20d %10d %12d %15d %15d\n", guildID, s.members, s.whitelisted, s.oldest, s.newest)
	}

	return nil
}
