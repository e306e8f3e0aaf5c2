package types

// ExportRecord represents one activity record in the export files.
type ExportRecord struct {
	GuildID     uint64 `json:"guildId"`
	UserID      uint64 `json:"userId"`
	Timestamp   int64  `json:"timestamp"`
	Whitelisted bool   `json:"whitelisted"`
}
