package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// Authorizer answers giveaway-management permission checks against Discord.
// Anyone with Manage Server may reroll or cancel giveaways.
type Authorizer struct {
	session *discordgo.Session
}

// NewAuthorizer creates a Discord-backed authorizer
func NewAuthorizer(session *discordgo.Session) *Authorizer {
	return &Authorizer{session: session}
}

func (a *Authorizer) CanManageGiveaways(ctx context.Context, guildID int64, actorID int64) (bool, error) {
	guild := strconv.FormatInt(guildID, 10)
	user := strconv.FormatInt(actorID, 10)

	member, err := a.session.GuildMember(guild, user, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to fetch member %d for permission check: %w", actorID, err)
	}
	g, err := a.session.Guild(guild, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("failed to fetch guild %d for permission check: %w", guildID, err)
	}
	if g.OwnerID == user {
		return true, nil
	}
	for _, roleID := range member.Roles {
		for _, role := range g.Roles {
			if role.ID == roleID && role.Permissions&(discordgo.PermissionManageServer|discordgo.PermissionAdministrator) != 0 {
				return true, nil
			}
		}
	}
	return false, nil
}
