package bot

import (
	"context"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"raffle/events"
	"raffle/service"

	"github.com/bwmarrin/discordgo"
)

// Config holds bot configuration
type Config struct {
	Token string
}

type Bot struct {
	config          Config
	session         *discordgo.Session
	giveawayService service.GiveawayService
	eventBus        *events.Bus
}

func New(config Config, giveawayService service.GiveawayService, eventBus *events.Bus) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildMessages

	bot := &Bot{
		config:          config,
		session:         dg,
		giveawayService: giveawayService,
		eventBus:        eventBus,
	}

	// Register slash command and component interaction handlers
	dg.AddHandler(bot.handleCommands)
	dg.AddHandler(bot.handleGiveawayInteractions)

	// Open websocket connection
	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	// Register slash commands with Discord
	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	// Keep announcement messages current as the lifecycle advances
	bot.subscribeLifecycleEvents()

	log.Info("Giveaway bot connected")
	return bot, nil
}

// Session exposes the underlying discord session for the adapters that need it
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Close shuts down the Discord connection
func (b *Bot) Close() error {
	return b.session.Close()
}

// subscribeLifecycleEvents refreshes the announcement message embed whenever
// the giveaway's state changes behind it.
func (b *Bot) subscribeLifecycleEvents() {
	refresh := func(ctx context.Context, giveawayID int64, guildID int64) {
		giveaway, err := b.giveawayService.GetState(ctx, guildID, giveawayID)
		if err != nil {
			log.WithFields(log.Fields{
				"giveawayID": giveawayID,
				"error":      err,
			}).Warn("Failed to load giveaway for message refresh")
			return
		}
		if giveaway.MessageID == nil {
			return
		}
		channelID := strconv.FormatInt(giveaway.ChannelID, 10)
		messageID := strconv.FormatInt(*giveaway.MessageID, 10)
		embed := buildGiveawayEmbed(giveaway)
		if _, err := b.session.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
			log.WithFields(log.Fields{
				"giveawayID": giveawayID,
				"error":      err,
			}).Warn("Failed to refresh giveaway message")
		}
	}

	b.eventBus.Subscribe(events.EventTypeWinnerAnnounced, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.WinnerAnnouncedEvent); ok {
			refresh(ctx, e.GiveawayID, e.GuildID)
		}
	})
	b.eventBus.Subscribe(events.EventTypeGiveawayCompleted, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.GiveawayCompletedEvent); ok {
			refresh(ctx, e.GiveawayID, e.GuildID)
		}
	})
	b.eventBus.Subscribe(events.EventTypeGiveawayExhausted, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.GiveawayExhaustedEvent); ok {
			refresh(ctx, e.GiveawayID, e.GuildID)
		}
	})
	b.eventBus.Subscribe(events.EventTypeGiveawayCancelled, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.GiveawayCancelledEvent); ok {
			refresh(ctx, e.GiveawayID, e.GuildID)
		}
	})
}
