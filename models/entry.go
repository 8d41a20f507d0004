package models

import (
	"time"
)

// Entry represents a validated participation record for one user in one giveaway.
// Entries are append-only: they are never updated or deleted, so the reroll pool
// can always be recomputed for audit.
type Entry struct {
	ID         int64     `db:"id"`
	GiveawayID int64     `db:"giveaway_id"`
	GuildID    int64     `db:"guild_id"`
	DiscordID  int64     `db:"discord_id"`
	EnteredAt  time.Time `db:"entered_at"`
}
