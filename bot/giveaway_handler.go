package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"raffle/models"
	"raffle/service"

	"github.com/bwmarrin/discordgo"
)

// handleCommands dispatches slash command interactions
func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if i.ApplicationCommandData().Name != "giveaway" {
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		b.respondWithError(s, i, "Invalid command usage")
		return
	}

	switch options[0].Name {
	case "create":
		b.handleGiveawayCreate(s, i)
	case "reroll":
		b.handleGiveawayReroll(s, i)
	case "cancel":
		b.handleGiveawayCancel(s, i)
	case "status":
		b.handleGiveawayStatus(s, i)
	default:
		b.respondWithError(s, i, "Unknown subcommand")
	}
}

// handleGiveawayInteractions dispatches the enter/claim button presses
func (b *Bot) handleGiveawayInteractions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	customID := i.MessageComponentData().CustomID
	switch {
	case strings.HasPrefix(customID, "giveaway_enter:"):
		b.handleEnterButton(s, i, strings.TrimPrefix(customID, "giveaway_enter:"))
	case strings.HasPrefix(customID, "giveaway_claim:"):
		b.handleClaimButton(s, i, strings.TrimPrefix(customID, "giveaway_claim:"))
	}
}

func (b *Bot) handleGiveawayCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, creatorID, ok := b.interactionIDs(s, i)
	if !ok {
		return
	}
	channelID, err := strconv.ParseInt(i.ChannelID, 10, 64)
	if err != nil {
		b.respondWithError(s, i, "Invalid channel")
		return
	}

	cfg := models.GiveawayConfig{
		ChannelID:        channelID,
		CreatorDiscordID: creatorID,
		WinnerCount:      1,
	}
	for _, opt := range i.ApplicationCommandData().Options[0].Options {
		switch opt.Name {
		case "prize":
			cfg.Prize = opt.StringValue()
		case "duration":
			cfg.EndsAt = time.Now().Add(time.Duration(opt.IntValue()) * time.Minute)
		case "required_role":
			role := opt.RoleValue(s, i.GuildID)
			if role != nil {
				if roleID, err := strconv.ParseInt(role.ID, 10, 64); err == nil {
					cfg.Requirements.RequiredRoleIDs = append(cfg.Requirements.RequiredRoleIDs, roleID)
				}
			}
		case "min_account_age":
			cfg.Requirements.MinAccountAgeDays = int(opt.IntValue())
		case "claim_timeout":
			cfg.ClaimTimeoutSeconds = int(opt.IntValue())
		case "max_rerolls":
			cfg.MaxRerollCount = int(opt.IntValue())
		}
	}

	ctx := context.Background()
	giveaway, err := b.giveawayService.CreateGiveaway(ctx, guildID, cfg)
	if err != nil {
		b.respondWithError(s, i, userMessage(err))
		return
	}

	// Post the announcement and remember the message so buttons resolve back
	// to this giveaway.
	embed := buildGiveawayEmbed(giveaway)
	msg, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Embed:      embed,
		Components: giveawayComponents(giveaway),
	})
	if err != nil {
		b.respondWithError(s, i, "Giveaway created but the announcement could not be posted")
		return
	}
	if messageID, err := strconv.ParseInt(msg.ID, 10, 64); err == nil {
		if err := b.giveawayService.RecordMessageID(ctx, guildID, giveaway.ID, messageID); err != nil {
			log.WithFields(log.Fields{
				"giveawayID": giveaway.ID,
				"error":      err,
			}).Warn("Failed to record announcement message")
		}
	}

	b.respondEphemeral(s, i, fmt.Sprintf("🎉 Giveaway **#%d** created! Ends %s.",
		giveaway.ID, FormatDiscordTimestamp(giveaway.EndsAt, "R")))
}

func (b *Bot) handleGiveawayReroll(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, actorID, ok := b.interactionIDs(s, i)
	if !ok {
		return
	}
	giveawayID := i.ApplicationCommandData().Options[0].Options[0].IntValue()

	if err := b.giveawayService.ManualReroll(context.Background(), guildID, giveawayID, actorID); err != nil {
		b.respondWithError(s, i, userMessage(err))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("🎲 Rerolled giveaway **#%d**.", giveawayID))
}

func (b *Bot) handleGiveawayCancel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, actorID, ok := b.interactionIDs(s, i)
	if !ok {
		return
	}
	giveawayID := i.ApplicationCommandData().Options[0].Options[0].IntValue()

	if err := b.giveawayService.Cancel(context.Background(), guildID, giveawayID, actorID); err != nil {
		b.respondWithError(s, i, userMessage(err))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("🚫 Cancelled giveaway **#%d**.", giveawayID))
}

func (b *Bot) handleGiveawayStatus(s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, _, ok := b.interactionIDs(s, i)
	if !ok {
		return
	}
	giveawayID := i.ApplicationCommandData().Options[0].Options[0].IntValue()

	giveaway, err := b.giveawayService.GetState(context.Background(), guildID, giveawayID)
	if err != nil {
		b.respondWithError(s, i, userMessage(err))
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{buildGiveawayEmbed(giveaway)},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to send status response")
	}
}

func (b *Bot) handleEnterButton(s *discordgo.Session, i *discordgo.InteractionCreate, idStr string) {
	guildID, discordID, ok := b.interactionIDs(s, i)
	if !ok {
		return
	}
	giveawayID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.respondWithError(s, i, "Invalid giveaway")
		return
	}

	if err := b.giveawayService.Enter(context.Background(), guildID, giveawayID, discordID); err != nil {
		b.respondWithError(s, i, userMessage(err))
		return
	}
	b.respondEphemeral(s, i, "✅ You're in! Good luck.")
}

func (b *Bot) handleClaimButton(s *discordgo.Session, i *discordgo.InteractionCreate, idStr string) {
	guildID, discordID, ok := b.interactionIDs(s, i)
	if !ok {
		return
	}
	giveawayID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.respondWithError(s, i, "Invalid giveaway")
		return
	}

	giveaway, err := b.giveawayService.Claim(context.Background(), guildID, giveawayID, discordID)
	if err != nil {
		b.respondWithError(s, i, userMessage(err))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("🏆 Congratulations! You claimed **%s**.", giveaway.Prize))
}

// interactionIDs extracts the guild and acting user IDs from an interaction
func (b *Bot) interactionIDs(s *discordgo.Session, i *discordgo.InteractionCreate) (guildID int64, userID int64, ok bool) {
	if i.Member == nil || i.Member.User == nil {
		b.respondWithError(s, i, "This command only works in a server")
		return 0, 0, false
	}
	guildID, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		b.respondWithError(s, i, "Invalid server ID")
		return 0, 0, false
	}
	userID, err = strconv.ParseInt(i.Member.User.ID, 10, 64)
	if err != nil {
		b.respondWithError(s, i, "Invalid user ID")
		return 0, 0, false
	}
	return guildID, userID, true
}

// userMessage translates service errors into user-facing text
func userMessage(err error) string {
	var valErr *service.ValidationError
	if errors.As(err, &valErr) {
		return fmt.Sprintf("Invalid %s: %s.", valErr.Field, valErr.Message)
	}

	reason := service.RejectionReasonOf(err)
	if reason == "" {
		log.WithError(err).Error("Unexpected service error")
		return "Something went wrong. Please try again."
	}

	switch reason {
	case service.ReasonGiveawayNotFound:
		return "That giveaway doesn't exist."
	case service.ReasonGiveawayNotActive:
		return "That giveaway is no longer running."
	case service.ReasonGiveawayExpired:
		return "That giveaway has already ended."
	case service.ReasonDuplicateEntry:
		return "You've already entered this giveaway."
	case service.ReasonBlacklisted:
		return "You're not eligible for this giveaway."
	case service.ReasonMissingRole:
		return "You're missing a required role for this giveaway."
	case service.ReasonLevelTooLow:
		return "Your level is too low for this giveaway."
	case service.ReasonAccountTooNew:
		return "Your account is too new for this giveaway."
	case service.ReasonNotInGuild:
		return "You need to be a member of this server to enter."
	case service.ReasonNotWinner:
		return "Only the announced winner can claim this prize."
	case service.ReasonAlreadyResolved:
		return "This giveaway has already been resolved."
	case service.ReasonNotAwaitingClaim:
		return "There's no pending claim to reroll."
	case service.ReasonUnauthorized:
		return "You don't have permission to manage giveaways."
	default:
		return "Request rejected."
	}
}

func (b *Bot) respondWithError(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	b.respondEphemeral(s, i, fmt.Sprintf("❌ %s", message))
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, message string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: message,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to send interaction response")
	}
}
