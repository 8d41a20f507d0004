package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"raffle/database"
	"raffle/models"
	"raffle/service"
)

// GiveawayRepository implements the GiveawayRepository interface
type GiveawayRepository struct {
	q       queryable
	guildID int64
}

// NewGiveawayRepository creates a pool-backed repository for reads outside a
// unit of work. It is unscoped and reserved for job-driven code paths where
// the guild is taken from the job row, never from user input.
func NewGiveawayRepository(db *database.DB) *GiveawayRepository {
	return &GiveawayRepository{q: db.Pool}
}

// newGiveawayRepository creates a transaction-scoped repository bound to a guild
func newGiveawayRepository(tx queryable, guildID int64) service.GiveawayRepository {
	return &GiveawayRepository{q: tx, guildID: guildID}
}

const giveawayColumns = `
	id, guild_id, channel_id, creator_discord_id, prize, winner_count,
	required_role_ids, min_level, min_account_age_days, blacklisted_discord_ids,
	ends_at, claim_timeout_seconds, max_reroll_count,
	status, reroll_count, announced_winner_id, winner_announced_at, version, message_id,
	created_at, ended_at, completed_at`

func scanGiveaway(row pgx.Row) (*models.Giveaway, error) {
	var g models.Giveaway
	err := row.Scan(
		&g.ID,
		&g.GuildID,
		&g.ChannelID,
		&g.CreatorDiscordID,
		&g.Prize,
		&g.WinnerCount,
		&g.Requirements.RequiredRoleIDs,
		&g.Requirements.MinLevel,
		&g.Requirements.MinAccountAgeDays,
		&g.Requirements.BlacklistedDiscordIDs,
		&g.EndsAt,
		&g.ClaimTimeoutSeconds,
		&g.MaxRerollCount,
		&g.Status,
		&g.RerollCount,
		&g.AnnouncedWinnerID,
		&g.WinnerAnnouncedAt,
		&g.Version,
		&g.MessageID,
		&g.CreatedAt,
		&g.EndedAt,
		&g.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create persists a new giveaway and fills in its ID and CreatedAt
func (r *GiveawayRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	query := `
		INSERT INTO giveaways (
			guild_id, channel_id, creator_discord_id, prize, winner_count,
			required_role_ids, min_level, min_account_age_days, blacklisted_discord_ids,
			ends_at, claim_timeout_seconds, max_reroll_count, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, version, created_at
	`

	if r.guildID != 0 {
		giveaway.GuildID = r.guildID // use repository's guild scope
	}
	err := r.q.QueryRow(ctx, query,
		giveaway.GuildID,
		giveaway.ChannelID,
		giveaway.CreatorDiscordID,
		giveaway.Prize,
		giveaway.WinnerCount,
		giveaway.Requirements.RequiredRoleIDs,
		giveaway.Requirements.MinLevel,
		giveaway.Requirements.MinAccountAgeDays,
		giveaway.Requirements.BlacklistedDiscordIDs,
		giveaway.EndsAt,
		giveaway.ClaimTimeoutSeconds,
		giveaway.MaxRerollCount,
		giveaway.Status,
	).Scan(&giveaway.ID, &giveaway.Version, &giveaway.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create giveaway in guild %d: %w", giveaway.GuildID, err)
	}
	return nil
}

// GetByID retrieves a giveaway by its ID, nil if not found. A scoped
// repository never sees another guild's rows.
func (r *GiveawayRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE id = $1`
	args := []any{id}
	if r.guildID != 0 {
		query += ` AND guild_id = $2`
		args = append(args, r.guildID)
	}

	giveaway, err := scanGiveaway(r.q.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway %d: %w", id, err)
	}
	return giveaway, nil
}

// GetByMessageID retrieves a giveaway by its Discord message ID
func (r *GiveawayRepository) GetByMessageID(ctx context.Context, messageID int64) (*models.Giveaway, error) {
	query := `SELECT ` + giveawayColumns + ` FROM giveaways WHERE message_id = $1`
	args := []any{messageID}
	if r.guildID != 0 {
		query += ` AND guild_id = $2`
		args = append(args, r.guildID)
	}

	giveaway, err := scanGiveaway(r.q.QueryRow(ctx, query, args...))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway by message %d: %w", messageID, err)
	}
	return giveaway, nil
}

// UpdateIfStatus writes the giveaway's mutable fields, guarded by a
// compare-and-set on the stored status AND the version the caller read. The
// status alone cannot order two writers racing on the same status (a timeout
// job and a manual reroll both leave the row awaiting claim); the version
// predicate makes the loser's UPDATE match zero rows even then. The version
// is bumped on every successful write.
func (r *GiveawayRepository) UpdateIfStatus(ctx context.Context, giveaway *models.Giveaway, expected models.GiveawayStatus) error {
	query := `
		UPDATE giveaways
		SET status = $1,
		    reroll_count = $2,
		    announced_winner_id = $3,
		    winner_announced_at = $4,
		    ended_at = $5,
		    completed_at = $6,
		    version = version + 1
		WHERE id = $7 AND status = $8 AND version = $9`
	args := []any{
		giveaway.Status,
		giveaway.RerollCount,
		giveaway.AnnouncedWinnerID,
		giveaway.WinnerAnnouncedAt,
		giveaway.EndedAt,
		giveaway.CompletedAt,
		giveaway.ID,
		expected,
		giveaway.Version,
	}
	if r.guildID != 0 {
		query += ` AND guild_id = $10`
		args = append(args, r.guildID)
	}
	query += ` RETURNING version`

	err := r.q.QueryRow(ctx, query, args...).Scan(&giveaway.Version)

	if err == pgx.ErrNoRows {
		return service.ErrStatusConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update giveaway %d: %w", giveaway.ID, err)
	}
	return nil
}

// UpdateMessageID records the announcement message for a giveaway
func (r *GiveawayRepository) UpdateMessageID(ctx context.Context, giveawayID int64, messageID int64) error {
	query := `UPDATE giveaways SET message_id = $1 WHERE id = $2`
	args := []any{messageID, giveawayID}
	if r.guildID != 0 {
		query += ` AND guild_id = $3`
		args = append(args, r.guildID)
	}

	result, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update message ID for giveaway %d: %w", giveawayID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("giveaway %d not found", giveawayID)
	}
	return nil
}

// AddExclusion permanently excludes a user from winning this giveaway.
// Adding the same user twice is a no-op.
func (r *GiveawayRepository) AddExclusion(ctx context.Context, giveawayID int64, discordID int64) error {
	query := `
		INSERT INTO giveaway_exclusions (giveaway_id, guild_id, discord_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (giveaway_id, discord_id) DO NOTHING
	`

	_, err := r.q.Exec(ctx, query, giveawayID, r.guildID, discordID)
	if err != nil {
		return fmt.Errorf("failed to add exclusion for giveaway %d: %w", giveawayID, err)
	}
	return nil
}

// GetExclusions returns all excluded user IDs for a giveaway
func (r *GiveawayRepository) GetExclusions(ctx context.Context, giveawayID int64) ([]int64, error) {
	query := `SELECT discord_id FROM giveaway_exclusions WHERE giveaway_id = $1`
	args := []any{giveawayID}
	if r.guildID != 0 {
		query += ` AND guild_id = $2`
		args = append(args, r.guildID)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get exclusions for giveaway %d: %w", giveawayID, err)
	}
	defer rows.Close()

	var excluded []int64
	for rows.Next() {
		var discordID int64
		if err := rows.Scan(&discordID); err != nil {
			return nil, fmt.Errorf("failed to scan exclusion: %w", err)
		}
		excluded = append(excluded, discordID)
	}
	return excluded, rows.Err()
}
