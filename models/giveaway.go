package models

import (
	"time"
)

// GiveawayStatus represents the lifecycle state of a giveaway
type GiveawayStatus string

const (
	GiveawayStatusActive            GiveawayStatus = "active"
	GiveawayStatusEnded             GiveawayStatus = "ended"
	GiveawayStatusAwaitingClaim     GiveawayStatus = "awaiting_claim"
	GiveawayStatusCompleted         GiveawayStatus = "completed"
	GiveawayStatusExhaustedNoWinner GiveawayStatus = "exhausted_no_winner"
	GiveawayStatusCancelled         GiveawayStatus = "cancelled"
)

// Requirements holds the eligibility rules configured for a giveaway
type Requirements struct {
	RequiredRoleIDs       []int64 `db:"required_role_ids"`
	MinLevel              int     `db:"min_level"`
	MinAccountAgeDays     int     `db:"min_account_age_days"`
	BlacklistedDiscordIDs []int64 `db:"blacklisted_discord_ids"`
}

// IsBlacklisted checks whether a user is on the giveaway's blacklist
func (r *Requirements) IsBlacklisted(discordID int64) bool {
	for _, id := range r.BlacklistedDiscordIDs {
		if id == discordID {
			return true
		}
	}
	return false
}

// Giveaway represents a time-boxed prize drawing scoped to a guild
type Giveaway struct {
	ID                  int64          `db:"id"`
	GuildID             int64          `db:"guild_id"`
	ChannelID           int64          `db:"channel_id"`
	CreatorDiscordID    int64          `db:"creator_discord_id"`
	Prize               string         `db:"prize"`
	WinnerCount         int            `db:"winner_count"`
	Requirements        Requirements   `db:""`
	EndsAt              time.Time      `db:"ends_at"`
	ClaimTimeoutSeconds int            `db:"claim_timeout_seconds"`
	MaxRerollCount      int            `db:"max_reroll_count"`
	Status              GiveawayStatus `db:"status"`
	RerollCount         int            `db:"reroll_count"`
	AnnouncedWinnerID   *int64         `db:"announced_winner_id"`
	WinnerAnnouncedAt   *time.Time     `db:"winner_announced_at"`
	Version             int64          `db:"version"`
	MessageID           *int64         `db:"message_id"`
	CreatedAt           time.Time      `db:"created_at"`
	EndedAt             *time.Time     `db:"ended_at"`
	CompletedAt         *time.Time     `db:"completed_at"`
}

// GiveawayConfig holds the administrator-supplied configuration for a new giveaway
type GiveawayConfig struct {
	ChannelID           int64
	CreatorDiscordID    int64
	Prize               string
	WinnerCount         int
	Requirements        Requirements
	EndsAt              time.Time
	ClaimTimeoutSeconds int
	MaxRerollCount      int
}

// Defaults applied by CreateGiveaway when the config leaves them unset.
const (
	DefaultClaimTimeoutSeconds = 300
	DefaultMaxRerollCount      = 5
)

// IsActive checks if the giveaway is still accepting entries
func (g *Giveaway) IsActive() bool {
	return g.Status == GiveawayStatusActive
}

// IsAwaitingClaim checks if the giveaway has an announced winner waiting to claim
func (g *Giveaway) IsAwaitingClaim() bool {
	return g.Status == GiveawayStatusAwaitingClaim
}

// IsTerminal checks if the giveaway has reached a final state
func (g *Giveaway) IsTerminal() bool {
	switch g.Status {
	case GiveawayStatusCompleted, GiveawayStatusExhaustedNoWinner, GiveawayStatusCancelled:
		return true
	}
	return false
}

// HasExpired checks if the entry window has closed
func (g *Giveaway) HasExpired(now time.Time) bool {
	return !now.Before(g.EndsAt)
}

// CanBeCancelled checks if the giveaway can still be cancelled
func (g *Giveaway) CanBeCancelled() bool {
	return g.Status == GiveawayStatusActive
}

// ClaimWindow returns the duration an announced winner has to claim
func (g *Giveaway) ClaimWindow() time.Duration {
	return time.Duration(g.ClaimTimeoutSeconds) * time.Second
}

// ClaimDeadline returns when the current claim window closes, nil when no
// winner is announced. Each reroll opens a fresh window, so the deadline is
// measured from the current announcement rather than from the giveaway's end.
func (g *Giveaway) ClaimDeadline() *time.Time {
	if g.WinnerAnnouncedAt == nil {
		return nil
	}
	deadline := g.WinnerAnnouncedAt.Add(g.ClaimWindow())
	return &deadline
}

// HasRerollsRemaining checks if another reroll is permitted
func (g *Giveaway) HasRerollsRemaining() bool {
	return g.RerollCount < g.MaxRerollCount
}

// IsAnnouncedWinner checks whether a user is the currently announced winner
func (g *Giveaway) IsAnnouncedWinner(discordID int64) bool {
	return g.AnnouncedWinnerID != nil && *g.AnnouncedWinnerID == discordID
}
