package bot

import (
	"fmt"
	"strconv"

	"raffle/models"

	"github.com/bwmarrin/discordgo"
)

const (
	colorActive    = 0x5865F2
	colorAwaiting  = 0xFEE75C
	colorCompleted = 0x57F287
	colorEnded     = 0xED4245
)

// buildGiveawayEmbed renders the announcement message for a giveaway in any state
func buildGiveawayEmbed(giveaway *models.Giveaway) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎉 Giveaway: %s", giveaway.Prize),
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Giveaway #%d", giveaway.ID),
		},
	}

	switch giveaway.Status {
	case models.GiveawayStatusActive:
		embed.Color = colorActive
		embed.Description = fmt.Sprintf("Press the button to enter!\nEnds %s",
			FormatDiscordTimestamp(giveaway.EndsAt, "R"))
		if fields := requirementFields(giveaway.Requirements); len(fields) > 0 {
			embed.Fields = fields
		}
	case models.GiveawayStatusAwaitingClaim:
		embed.Color = colorAwaiting
		winner := "unknown"
		if giveaway.AnnouncedWinnerID != nil {
			winner = fmt.Sprintf("<@%d>", *giveaway.AnnouncedWinnerID)
		}
		embed.Description = fmt.Sprintf("🏆 Winner: %s\nClaim your prize before the window closes!", winner)
		if giveaway.RerollCount > 0 {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   "Rerolls",
				Value:  strconv.Itoa(giveaway.RerollCount),
				Inline: true,
			})
		}
	case models.GiveawayStatusCompleted:
		embed.Color = colorCompleted
		winner := "unknown"
		if giveaway.AnnouncedWinnerID != nil {
			winner = fmt.Sprintf("<@%d>", *giveaway.AnnouncedWinnerID)
		}
		embed.Description = fmt.Sprintf("✅ %s claimed the prize. Congratulations!", winner)
	case models.GiveawayStatusExhaustedNoWinner:
		embed.Color = colorEnded
		embed.Description = "😔 No eligible winner could be found."
	case models.GiveawayStatusCancelled:
		embed.Color = colorEnded
		embed.Description = "🚫 This giveaway was cancelled."
	default:
		embed.Color = colorEnded
		embed.Description = "This giveaway has ended."
	}

	return embed
}

// giveawayComponents returns the button row appropriate for the giveaway's state
func giveawayComponents(giveaway *models.Giveaway) []discordgo.MessageComponent {
	switch giveaway.Status {
	case models.GiveawayStatusActive:
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Enter",
						Style:    discordgo.PrimaryButton,
						CustomID: fmt.Sprintf("giveaway_enter:%d", giveaway.ID),
						Emoji:    &discordgo.ComponentEmoji{Name: "🎉"},
					},
				},
			},
		}
	case models.GiveawayStatusAwaitingClaim:
		return []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Claim",
						Style:    discordgo.SuccessButton,
						CustomID: fmt.Sprintf("giveaway_claim:%d", giveaway.ID),
						Emoji:    &discordgo.ComponentEmoji{Name: "🏆"},
					},
				},
			},
		}
	default:
		return nil
	}
}

func requirementFields(req models.Requirements) []*discordgo.MessageEmbedField {
	var fields []*discordgo.MessageEmbedField
	if len(req.RequiredRoleIDs) > 0 {
		var mentions string
		for i, roleID := range req.RequiredRoleIDs {
			if i > 0 {
				mentions += " "
			}
			mentions += fmt.Sprintf("<@&%d>", roleID)
		}
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Required roles", Value: mentions, Inline: true,
		})
	}
	if req.MinLevel > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Minimum level", Value: strconv.Itoa(req.MinLevel), Inline: true,
		})
	}
	if req.MinAccountAgeDays > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: "Minimum account age", Value: fmt.Sprintf("%d days", req.MinAccountAgeDays), Inline: true,
		})
	}
	return fields
}
