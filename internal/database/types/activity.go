package types

import "errors"

// Storage error taxonomy. Every model operation wraps its failures with
// exactly one of these so callers can branch with errors.Is.
var (
	// ErrStorageUnavailable indicates the backing store could not be opened
	// or acquired: path or permission issues, a write lock held beyond the
	// bounded wait, or a corrupted database file.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConstraintViolation indicates a statement violated the table's
	// unique constraint, e.g. duplicate keys inside one bulk batch.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidArgument indicates caller input the store cannot bind or
	// execute. Empty bulk batches are not errors; they are no-ops.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ActivityRecord is one member's tracked state inside a guild.
// The timestamp is an opaque caller-defined integer; the store never
// interprets it or generates its own notion of "now".
type ActivityRecord struct {
	GuildID     uint64
	UserID      uint64
	Timestamp   int64
	Whitelisted bool
}

// MemberKey identifies a single activity record.
type MemberKey struct {
	GuildID uint64
	UserID  uint64
}

// MemberActivity pairs a member with their last recorded activity timestamp.
type MemberActivity struct {
	UserID    uint64
	Timestamp int64
}
