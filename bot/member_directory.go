package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"raffle/models"

	"github.com/bwmarrin/discordgo"
)

// LevelProvider resolves a member's level in a guild's progression system.
// Deployments without one treat every member as level 0.
type LevelProvider interface {
	Level(ctx context.Context, guildID int64, discordID int64) (int, error)
}

// MemberDirectory resolves current guild member state from Discord. It
// implements service.MemberDirectory; account age comes from the snowflake
// creation timestamp, so no extra API call is needed for it.
type MemberDirectory struct {
	session *discordgo.Session
	levels  LevelProvider
}

// NewMemberDirectory creates a Discord-backed member directory. levels may be nil.
func NewMemberDirectory(session *discordgo.Session, levels LevelProvider) *MemberDirectory {
	return &MemberDirectory{session: session, levels: levels}
}

func (d *MemberDirectory) GetMember(ctx context.Context, guildID int64, discordID int64) (*models.Member, error) {
	guild := strconv.FormatInt(guildID, 10)
	user := strconv.FormatInt(discordID, 10)

	member, err := d.session.GuildMember(guild, user, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			// Not (or no longer) a member of the guild
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch member %d in guild %d: %w", discordID, guildID, err)
	}

	roleIDs := make([]int64, 0, len(member.Roles))
	for _, role := range member.Roles {
		roleID, err := strconv.ParseInt(role, 10, 64)
		if err != nil {
			continue
		}
		roleIDs = append(roleIDs, roleID)
	}

	accountCreatedAt, err := discordgo.SnowflakeTimestamp(user)
	if err != nil {
		return nil, fmt.Errorf("failed to derive account age for %d: %w", discordID, err)
	}

	level := 0
	if d.levels != nil {
		level, err = d.levels.Level(ctx, guildID, discordID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve level for %d: %w", discordID, err)
		}
	}

	return &models.Member{
		DiscordID:        discordID,
		RoleIDs:          roleIDs,
		Level:            level,
		AccountCreatedAt: accountCreatedAt,
		JoinedAt:         member.JoinedAt,
	}, nil
}
