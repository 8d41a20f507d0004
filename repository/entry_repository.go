package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"raffle/database"
	"raffle/models"
	"raffle/service"
)

// EntryRepository implements the EntryRepository interface
type EntryRepository struct {
	q       queryable
	guildID int64
}

// NewEntryRepository creates a pool-backed entry repository
func NewEntryRepository(db *database.DB) *EntryRepository {
	return &EntryRepository{q: db.Pool}
}

// newEntryRepository creates a transaction-scoped entry repository bound to a guild
func newEntryRepository(tx queryable, guildID int64) service.EntryRepository {
	return &EntryRepository{q: tx, guildID: guildID}
}

// Create inserts an entry. The unique constraint on (giveaway_id, discord_id)
// is the authority on duplicates; a violation surfaces as a DuplicateEntry
// rejection so concurrent double-clicks resolve the same way a pre-check would.
func (r *EntryRepository) Create(ctx context.Context, entry *models.Entry) error {
	query := `
		INSERT INTO giveaway_entries (giveaway_id, guild_id, discord_id)
		VALUES ($1, $2, $3)
		RETURNING id, entered_at
	`

	if r.guildID != 0 {
		entry.GuildID = r.guildID // use repository's guild scope
	}
	err := r.q.QueryRow(ctx, query,
		entry.GiveawayID,
		entry.GuildID,
		entry.DiscordID,
	).Scan(&entry.ID, &entry.EnteredAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return service.Reject(service.ReasonDuplicateEntry)
		}
		return fmt.Errorf("failed to create entry for giveaway %d: %w", entry.GiveawayID, err)
	}
	return nil
}

// GetByUser returns a user's entry for a giveaway, nil if absent
func (r *EntryRepository) GetByUser(ctx context.Context, giveawayID int64, discordID int64) (*models.Entry, error) {
	query := `
		SELECT id, giveaway_id, guild_id, discord_id, entered_at
		FROM giveaway_entries
		WHERE giveaway_id = $1 AND discord_id = $2`
	args := []any{giveawayID, discordID}
	if r.guildID != 0 {
		query += ` AND guild_id = $3`
		args = append(args, r.guildID)
	}

	var entry models.Entry
	err := r.q.QueryRow(ctx, query, args...).Scan(
		&entry.ID,
		&entry.GiveawayID,
		&entry.GuildID,
		&entry.DiscordID,
		&entry.EnteredAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry for user %d: %w", discordID, err)
	}
	return &entry, nil
}

// ListDiscordIDs returns the user IDs of all entries for a giveaway
func (r *EntryRepository) ListDiscordIDs(ctx context.Context, giveawayID int64) ([]int64, error) {
	query := `
		SELECT discord_id
		FROM giveaway_entries
		WHERE giveaway_id = $1`
	args := []any{giveawayID}
	if r.guildID != 0 {
		query += ` AND guild_id = $2`
		args = append(args, r.guildID)
	}
	query += ` ORDER BY entered_at, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for giveaway %d: %w", giveawayID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByGiveaway returns the number of entries for a giveaway
func (r *EntryRepository) CountByGiveaway(ctx context.Context, giveawayID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM giveaway_entries WHERE giveaway_id = $1`
	args := []any{giveawayID}
	if r.guildID != 0 {
		query += ` AND guild_id = $2`
		args = append(args, r.guildID)
	}

	var count int64
	if err := r.q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries for giveaway %d: %w", giveawayID, err)
	}
	return count, nil
}
