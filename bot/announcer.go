package bot

import (
	"context"
	"fmt"
	"strconv"

	"raffle/models"
	"raffle/service"

	"github.com/bwmarrin/discordgo"
)

// Announcer delivers lifecycle notifications to the giveaway's channel.
// It implements service.NotificationSink and is only invoked after the state
// change it announces has committed.
type Announcer struct {
	session *discordgo.Session
}

// NewAnnouncer creates a Discord-backed notification sink
func NewAnnouncer(session *discordgo.Session) *Announcer {
	return &Announcer{session: session}
}

func (a *Announcer) Announce(ctx context.Context, guildID int64, channelID int64, kind service.NotificationKind, giveaway *models.Giveaway) error {
	channel := strconv.FormatInt(channelID, 10)

	switch kind {
	case service.NotificationWinnerAnnounced:
		winner := int64(0)
		if giveaway.AnnouncedWinnerID != nil {
			winner = *giveaway.AnnouncedWinnerID
		}
		// After a reroll the replacement winner's window starts at reroll
		// time, not at the giveaway's end.
		deadline := giveaway.CreatedAt.Add(giveaway.ClaimWindow())
		if d := giveaway.ClaimDeadline(); d != nil {
			deadline = *d
		} else if giveaway.EndedAt != nil {
			deadline = giveaway.EndedAt.Add(giveaway.ClaimWindow())
		}
		content := fmt.Sprintf("🎉 <@%d> won **%s**! Claim your prize before %s or it will be rerolled.",
			winner, giveaway.Prize, FormatDiscordTimestamp(deadline, "R"))
		msg := &discordgo.MessageSend{
			Content:    content,
			Components: giveawayComponents(giveaway),
		}
		if _, err := a.session.ChannelMessageSendComplex(channel, msg); err != nil {
			return fmt.Errorf("failed to announce winner for giveaway %d: %w", giveaway.ID, err)
		}

	case service.NotificationClaimConfirmed:
		winner := int64(0)
		if giveaway.AnnouncedWinnerID != nil {
			winner = *giveaway.AnnouncedWinnerID
		}
		content := fmt.Sprintf("🏆 <@%d> claimed **%s**. Congratulations!", winner, giveaway.Prize)
		if _, err := a.session.ChannelMessageSend(channel, content); err != nil {
			return fmt.Errorf("failed to announce claim for giveaway %d: %w", giveaway.ID, err)
		}

	case service.NotificationNoWinner:
		content := fmt.Sprintf("😔 Giveaway **%s** ended with no eligible winner.", giveaway.Prize)
		if _, err := a.session.ChannelMessageSend(channel, content); err != nil {
			return fmt.Errorf("failed to announce exhaustion for giveaway %d: %w", giveaway.ID, err)
		}

	case service.NotificationCancelled:
		content := fmt.Sprintf("🚫 Giveaway **%s** was cancelled.", giveaway.Prize)
		if _, err := a.session.ChannelMessageSend(channel, content); err != nil {
			return fmt.Errorf("failed to announce cancellation for giveaway %d: %w", giveaway.ID, err)
		}
	}

	return nil
}
